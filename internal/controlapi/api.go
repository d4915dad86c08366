// Package controlapi implements the REST API for Herald: segments, campaigns,
// the vendor boundary and delivery statistics.
package controlapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/herald/internal/campaign"
	"github.com/rafaeljc/herald/internal/gateway"
	"github.com/rafaeljc/herald/internal/segment"
	"github.com/rafaeljc/herald/internal/stats"
	"github.com/rafaeljc/herald/internal/store"
	"github.com/rafaeljc/herald/internal/validation"
)

// Dependencies are the services the API routes to. Every field is required
// except MaxBodyBytes and StatsWindowDays, which fall back to defaults.
type Dependencies struct {
	Segments  *segment.Materializer
	Campaigns *campaign.Dispatcher
	Gateway   gateway.Gateway
	Receipts  gateway.ReceiptHandler
	Logs      store.LogRepository
	Stats     *stats.Aggregator

	// MaxBodyBytes caps request bodies. Zero means defaultMaxBodyBytes.
	MaxBodyBytes int64
	// StatsWindowDays is the hourly histogram window when ?days is absent.
	StatsWindowDays int
}

const defaultMaxBodyBytes = 1 << 20

// API is the main struct that holds dependencies and the router.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	segments  *segment.Materializer
	campaigns *campaign.Dispatcher
	gateway   gateway.Gateway
	receipts  gateway.ReceiptHandler
	logs      store.LogRepository
	stats     *stats.Aggregator

	maxBodyBytes int64
	statsWindow  int
}

// NewAPI creates the API and registers its routes. It panics on missing
// dependencies.
func NewAPI(deps Dependencies) *API {
	validation.AssertNotNil("controlapi", deps.Segments, "segment materializer")
	validation.AssertNotNil("controlapi", deps.Campaigns, "campaign dispatcher")
	validation.AssertNotNil("controlapi", deps.Stats, "stats aggregator")
	validation.AssertPresent("controlapi", deps.Gateway, "vendor gateway")
	validation.AssertPresent("controlapi", deps.Receipts, "receipt handler")
	validation.AssertPresent("controlapi", deps.Logs, "log repository")

	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	if deps.StatsWindowDays <= 0 {
		deps.StatsWindowDays = stats.DefaultWindowDays
	}

	api := &API{
		Router:       chi.NewRouter(),
		segments:     deps.Segments,
		campaigns:    deps.Campaigns,
		gateway:      deps.Gateway,
		receipts:     deps.Receipts,
		logs:         deps.Logs,
		stats:        deps.Stats,
		maxBodyBytes: deps.MaxBodyBytes,
		statsWindow:  deps.StatsWindowDays,
	}

	api.configureRoutes()
	return api
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	// RequestID: Adds a unique ID to each request context (essential for tracing).
	a.Router.Use(middleware.RequestID)
	// RealIP: correctly sets the IP if behind a proxy/LB.
	a.Router.Use(middleware.RealIP)
	// Metrics wraps everything below so panics are still counted as 500s.
	a.Router.Use(Metrics)
	a.Router.Use(RequestLogger)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.RequestSize(a.maxBodyBytes))
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", a.handleListCustomers)
			r.Post("/", a.handleImportCustomers)
		})

		r.Route("/segments", func(r chi.Router) {
			r.Post("/", a.handleCreateSegment)
			r.Get("/", a.handleListSegments)
			r.Post("/preview", a.handlePreviewSegment)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetSegment)
				r.Delete("/", a.handleDeleteSegment)
				r.Post("/refresh", a.handleRefreshSegment)
				r.Get("/customers", a.handleSegmentCustomers)
			})
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/deliver", a.handleDeliverCampaign)
			r.Get("/", a.handleListCampaigns)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetCampaign)
				r.Get("/logs", a.handleCampaignLogs)
			})
		})

		r.Post("/vendor/send", a.handleVendorSend)
		r.Post("/delivery-receipt", a.handleDeliveryReceipt)

		r.Route("/email/sent-messages", func(r chi.Router) {
			r.Get("/", a.handleListSentMessages)
			r.Get("/stats", a.handleEmailStats)
			r.Get("/stats/hourly", a.handleHourlyStats)
		})
	})
}

// handleHealthCheck reports that the API is serving. Dependency checks live
// on the observability server's readiness probe.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
