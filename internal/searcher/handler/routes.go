package handler

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/auth/apikey"
	authmw "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/auth/middleware"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/middleware"
)

// RouteConfig configures the middleware around the API.
type RouteConfig struct {
	// Keys guards the admin routes. Nil leaves them open, which is only
	// meant for local development.
	Keys    apikey.Source
	Limiter *ratelimit.Limiter
	Rate    float64
	Burst   int

	Health         *health.Checker
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	RequestTimeout time.Duration
	SlowRequest    time.Duration
}

// Routes builds the searcher's HTTP handler.
//
// Route table:
//
//	POST /api/v1/search                 search with aggregates and first page
//	POST /api/v1/aggregates             aggregates only
//	POST /api/v1/suppliers              every supplier group
//	POST /api/v1/institutions           every institution group
//	POST /api/v1/contracts/page         one page of rows
//	POST /api/v1/search/export          xlsx workbook
//	GET  /api/v1/stats                  registry statistics
//	GET  /api/v1/cache/stats            response cache counters
//	POST /api/v1/admin/cache/invalidate drop caches           (admin key)
//	POST /api/v1/admin/dedupe           remove duplicates     (admin key)
//	GET  /health/live, /health/ready    probes
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → CORS → Timeout → [Auth] → RateLimit → handler
func (h *Handler) Routes(cfg RouteConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("GET /health/live", cfg.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", cfg.Health.ReadyHandler())
	}

	public := func(fn http.HandlerFunc) http.Handler {
		return h.limit(cfg, fn)
	}
	mux.Handle("POST /api/v1/search", public(h.Search))
	mux.Handle("POST /api/v1/aggregates", public(h.Aggregates))
	mux.Handle("POST /api/v1/suppliers", public(h.Suppliers))
	mux.Handle("POST /api/v1/institutions", public(h.Institutions))
	mux.Handle("POST /api/v1/contracts/page", public(h.Page))
	mux.Handle("POST /api/v1/search/export", public(h.Export))
	mux.Handle("GET /api/v1/stats", public(h.Stats))
	mux.Handle("GET /api/v1/cache/stats", public(h.CacheStats))

	admin := func(fn http.HandlerFunc) http.Handler {
		var next http.Handler = h.limit(cfg, fn)
		if cfg.Keys != nil {
			next = authmw.Auth(cfg.Keys, apikey.RoleAdmin)(next)
		}
		return next
	}
	mux.Handle("POST /api/v1/admin/cache/invalidate", admin(h.CacheInvalidate))
	mux.Handle("POST /api/v1/admin/dedupe", admin(h.Dedupe))

	mws := []func(http.Handler) http.Handler{pkgmw.RequestID}
	if cfg.Metrics != nil {
		mws = append(mws, pkgmw.Metrics(cfg.Metrics, cfg.SlowRequest))
	}
	mws = append(mws,
		authmw.CORS(authmw.DefaultCORSConfig(cfg.AllowedOrigins)),
		pkgmw.Timeout(cfg.RequestTimeout),
	)
	return pkgmw.Chain(mux, mws...)
}

func (h *Handler) limit(cfg RouteConfig, next http.Handler) http.Handler {
	if cfg.Limiter == nil {
		return next
	}
	return authmw.RateLimit(cfg.Limiter, cfg.Rate, cfg.Burst)(next)
}
