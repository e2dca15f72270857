package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.metrics != nil {
		r.Handle("/metrics", g.metrics.Handler())
	}

	// Webhooks carry their own HMAC auth per source.
	r.Post("/webhooks/{source}", g.webhooks.ServeHTTP)

	// Everything else requires auth. Not mounted if no auth configured.
	if !g.config.Auth.IsConfigured() {
		g.logger.Warn("gateway: no auth configured, API endpoints disabled")
		return r
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(g.config.Auth, g.logger))
		r.Get("/status", g.handleStatus())
		r.Get("/ws/incidents", g.feed.ServeHTTP)
		if g.config.mcpEnabled() && g.monitor != nil {
			r.Handle("/mcp", newMCPHandler(g.monitor, g.version))
		}
		r.Route("/api", func(r chi.Router) {
			r.Get("/jobs", g.handleListJobs())
			r.Get("/jobs/*", g.handleGetJob())
			r.Post("/jobs/*", g.handleCheckJob())
			r.Get("/incidents/recent", g.handleRecentIncidents())
			r.Get("/modules", g.handleGetAllModules())
			r.Get("/sinks", g.handleListSinks())
			r.Post("/sinks/{name}/test", g.handleTestSink())
			r.Get("/config", g.handleGetConfig())
			r.Post("/config/reload", g.handleReloadConfig())
		})
	})

	return r
}
