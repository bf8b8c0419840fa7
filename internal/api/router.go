package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// Routes match the paths the cloud backend is configured with, so they
// live at the root rather than under a versioned prefix. Health is open,
// the WebSocket authenticates with a single-use ticket, everything else
// requires the shared API key, and the order endpoints are rate limited
// per client IP.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check (no auth, never rate limited; used by uptime monitors)
	r.Get("/health", s.handleHealth)

	// System metrics (no auth required for basic local monitoring)
	r.Get("/metrics", s.handleMetrics)

	// WebSocket upgrade. Browsers cannot set headers on the upgrade
	// request, so auth happens via the single-use ticket issued by
	// /auth/ws-ticket rather than the API-key middleware.
	r.Get("/ws", s.handleWebSocket)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Order endpoints share the per-IP rate limit budget
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)

			r.Post("/test", s.handleTest)
			r.Post("/order-notification", s.handleOrderNotification)
		})

		// Issuing a WS ticket still requires the API key.
		r.Post("/auth/ws-ticket", s.handleWSTicket)
	})

	return r
}
