package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/herald/internal/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	t.Run("Should emit JSON lines with identity attributes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&config.AppConfig{
			Name:        "herald-test",
			Version:     "1.2.3",
			Environment: config.EnvironmentProduction,
			LogLevel:    "info",
			LogFormat:   "json",
		}, &buf)

		log.Info("campaign delivered", slog.Int("sent_count", 3))

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "campaign delivered", line["msg"])
		assert.Equal(t, "herald-test", line["service"])
		assert.Equal(t, "1.2.3", line["version"])
		assert.Equal(t, "production", line["env"])
		assert.EqualValues(t, 3, line["sent_count"])
		assert.NotContains(t, line, "source", "production logs must not carry source locations")
	})

	t.Run("Should drop records below the configured level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&config.AppConfig{Name: "svc", LogLevel: "warn", LogFormat: "text"}, &buf)

		log.Info("hidden")
		log.Warn("visible")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("Should panic on nil config", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { NewWithWriter(nil, &bytes.Buffer{}) })
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "Warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "super-critical", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	parent := slog.New(slog.NewTextHandler(&buf, nil))

	Component(parent, "dispatcher").Info("hello")

	assert.Contains(t, buf.String(), "component=dispatcher")
	assert.NotNil(t, Component(nil, "x"))
}
