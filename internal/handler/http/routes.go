package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID, h.withLogging)

	router.Get("/api/health", h.getHealth)
	router.Get("/api/version", h.getVersion)

	// sync coordinator
	router.Post("/api/sync", h.requestSync)
	router.Get("/api/sync/status", h.getSyncStatus)
	router.Put("/api/connectivity", h.setConnectivity)

	// session token used for uploads
	router.With(h.bearerToken).Put("/api/session", h.setSession)
	router.Delete("/api/session", h.dropSession)

	router.MethodNotAllowed(CheckHTTPMethod(router))

	return router
}
