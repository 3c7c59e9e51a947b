package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/pageserver-go/internal/server/httpserver/handler"
	"github.com/yndnr/pageserver-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Ready reports repository initialization. *registry.Registry
	// implements it.
	Ready handler.Readiness

	// Status reports server status. *pageservice.Service implements it.
	Status handler.StatusReporter

	// Metrics is served on /metrics and records request counts. Optional.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// RateLimit is the per-client rate limit (requests/second). Zero
	// disables it.
	RateLimit float64
	RateBurst int
}

// NewRouter creates the admin router with all routes and middleware.
//
// Order: Recover -> RequestID -> AccessLog -> RateLimit -> Handler.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := handler.New(cfg.Ready, cfg.Status, logger)
	limit := RateLimit(cfg.RateLimit, cfg.RateBurst)

	wrap := func(route string, next http.Handler) http.Handler {
		return Chain(next,
			Recover(logger),
			RequestID(),
			AccessLog(route, logger, cfg.Metrics),
			limit,
		)
	}

	mux := http.NewServeMux()

	// Probes are never rate limited.
	mux.Handle("GET /health", Chain(h, Recover(logger), RequestID(), AccessLog("health", logger, cfg.Metrics)))
	mux.Handle("GET /ready", Chain(h, Recover(logger), RequestID(), AccessLog("ready", logger, cfg.Metrics)))

	mux.Handle("GET /v1/status", wrap("status", h))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", wrap("metrics", cfg.Metrics.Handler()))
	}

	return mux
}
