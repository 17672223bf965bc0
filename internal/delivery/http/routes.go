package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
)

// NewRouter mounts the chat actions under /api/v1/actions behind bearer
// auth. Every path not matched by a named route is a hit.
func NewRouter(h *HTTPHandler, jwtSecret string, l logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logger.HTTPLogger(l))

	r.Get("/healthz", h.HealthCheck)
	r.Get("/status", h.Status)

	r.Route("/api/v1/actions", func(r chi.Router) {
		r.Use(Authenticate([]byte(jwtSecret), h.validator, l))
		r.Post("/start_session", h.StartSession)
		r.Post("/end_session", h.EndSession)
		r.Get("/rank", h.Rank)
		r.Get("/queue_position", h.QueuePosition)
	})

	r.Get("/*", h.Hit)

	return r
}
