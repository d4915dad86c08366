package config

import (
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalRequiredConfig provides database and Redis config needed for all tests
func minimalRequiredConfig() map[string]string {
	return map[string]string{
		"HERALD_DB_HOST":        "localhost",
		"HERALD_DB_PORT":        "5432",
		"HERALD_DB_NAME":        "herald_test",
		"HERALD_DB_USER":        "test_user",
		"HERALD_DB_PASSWORD":    "test_pass",
		"HERALD_REDIS_HOST":     "localhost",
		"HERALD_REDIS_PORT":     "6379",
		"HERALD_REDIS_PASSWORD": "redis_password_123",
	}
}

// mergeEnvVars merges additional env vars with minimal required config
func mergeEnvVars(additional map[string]string) map[string]string {
	result := minimalRequiredConfig()
	maps.Copy(result, additional)
	return result
}

// validProductionConfig returns a complete valid production configuration
// with all required database, Redis, and control plane settings for production tests
func validProductionConfig() map[string]string {
	return map[string]string{
		// App
		"HERALD_APP_ENV": "production",

		// Database
		"HERALD_DB_HOST":     "prod-db.example.com",
		"HERALD_DB_PORT":     "5432",
		"HERALD_DB_NAME":     "herald_prod",
		"HERALD_DB_USER":     "prod_user",
		"HERALD_DB_PASSWORD": "SuperSecure123!",
		"HERALD_DB_SSL_MODE": "require",

		// Redis
		"HERALD_REDIS_HOST":        "prod-redis.example.com",
		"HERALD_REDIS_PORT":        "6379",
		"HERALD_REDIS_PASSWORD":    "RedisSecure123!",
		"HERALD_REDIS_TLS_ENABLED": "true",

		// Control Plane
		"HERALD_SERVER_CONTROL_TLS_ENABLED":   "true",
		"HERALD_SERVER_CONTROL_TLS_CERT_FILE": "/certs/control-cert.pem",
		"HERALD_SERVER_CONTROL_TLS_KEY_FILE":  "/certs/control-key.pem",
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "Should use defaults when no env vars are set",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "herald", cfg.App.Name)
				assert.Equal(t, "dev", cfg.App.Version)
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "info", cfg.App.LogLevel)
				assert.Equal(t, "text", cfg.App.LogFormat)
				assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "8080", cfg.Server.Control.Port)
				assert.Equal(t, FallbackDriverSQLite, cfg.Fallback.Driver)
				assert.Equal(t, 7, cfg.Stats.WindowDays)
				assert.Equal(t, 8, cfg.Campaign.DispatchConcurrency)
				assert.False(t, cfg.Refresher.Enabled)
			},
			wantErr: false,
		},
		{
			name: "Should load all custom environment variables correctly",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_APP_NAME":             "test-app",
				"HERALD_APP_VERSION":          "1.0.0",
				"HERALD_APP_ENV":              "staging",
				"HERALD_APP_LOG_LEVEL":        "debug",
				"HERALD_APP_LOG_FORMAT":       "json",
				"HERALD_APP_SHUTDOWN_TIMEOUT": "60s",
				"HERALD_SERVER_CONTROL_PORT":  "9091",
				"HERALD_FALLBACK_DRIVER":      "redis",
				"HERALD_STATS_WINDOW_DAYS":    "14",
				"HERALD_STATS_TIMEZONE":       "America/Sao_Paulo",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "test-app", cfg.App.Name)
				assert.Equal(t, "1.0.0", cfg.App.Version)
				assert.Equal(t, "staging", cfg.App.Environment)
				assert.Equal(t, "debug", cfg.App.LogLevel)
				assert.Equal(t, "json", cfg.App.LogFormat)
				assert.Equal(t, 60*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "9091", cfg.Server.Control.Port)
				assert.Equal(t, FallbackDriverRedis, cfg.Fallback.Driver)
				assert.Equal(t, 14, cfg.Stats.WindowDays)
				assert.Equal(t, "America/Sao_Paulo", cfg.Stats.Location().String())
			},
			wantErr: false,
		},
		{
			name: "Should fail validation on invalid environment value",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_APP_ENV": "invalid",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on invalid log level",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_APP_LOG_LEVEL": "trace",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on invalid log format",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_APP_LOG_FORMAT": "xml",
			}),
			wantErr: true,
		},
		{
			name: "Should allow missing passwords in non-production environments",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_APP_ENV":        "development",
				"HERALD_DB_PASSWORD":    "",
				"HERALD_REDIS_PASSWORD": "",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "", cfg.Database.Password)
				assert.Equal(t, "", cfg.Redis.Password)
			},
			wantErr: false,
		},
		{
			name: "Should run without a database outside production",
			envVars: map[string]string{
				"HERALD_FALLBACK_DRIVER": "memory",
			},
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Database.IsConfigured())
				assert.False(t, cfg.Redis.IsConfigured())
				assert.Equal(t, FallbackDriverMemory, cfg.Fallback.Driver)
			},
			wantErr: false,
		},
		{
			name: "Should require a database in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				delete(cfg, "HERALD_DB_HOST")
				delete(cfg, "HERALD_DB_PORT")
				delete(cfg, "HERALD_DB_NAME")
				delete(cfg, "HERALD_DB_USER")
				delete(cfg, "HERALD_DB_PASSWORD")
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "Should require redis settings when the fallback driver is redis",
			envVars: map[string]string{
				"HERALD_FALLBACK_DRIVER": "redis",
			},
			wantErr: true,
		},
		{
			name: "Should fail validation on unknown fallback driver",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_FALLBACK_DRIVER": "etcd",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on unknown stats timezone",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_STATS_TIMEZONE": "Mars/Olympus_Mons",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on zero dispatch concurrency",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_CAMPAIGN_DISPATCH_CONCURRENCY": "0",
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// t.Setenv automatically prevents parallel execution and cleans up after the test
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}

func TestVendorConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "Should verify simulation defaults",
			envVars: mergeEnvVars(map[string]string{}),
			want: func(t *testing.T, cfg *Config) {
				assert.InDelta(t, 0.1, cfg.Vendor.FailureRate, 1e-9)
				assert.Zero(t, cfg.Vendor.BounceRate)
				assert.Equal(t, 1*time.Second, cfg.Vendor.ReceiptMinDelay)
				assert.Equal(t, 3*time.Second, cfg.Vendor.ReceiptMaxDelay)
				assert.Equal(t, 4, cfg.Vendor.ReceiptWorkers)
				assert.Equal(t, 5, cfg.Vendor.ReceiptAttempts)
			},
		},
		{
			name: "Should accept a zero failure rate",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_VENDOR_FAILURE_RATE": "0",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Zero(t, cfg.Vendor.FailureRate)
			},
		},
		{
			name: "Should fail validation when failure rate exceeds one",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_VENDOR_FAILURE_RATE": "1.5",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation when max delay is below min delay",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_VENDOR_RECEIPT_MIN_DELAY": "5s",
				"HERALD_VENDOR_RECEIPT_MAX_DELAY": "1s",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation with zero receipt workers",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_VENDOR_RECEIPT_WORKERS": "0",
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}
