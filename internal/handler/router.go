package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	verifyHandler "github.com/wenqianl/facegate/backend/internal/handler/verify"
	middlewarePkg "github.com/wenqianl/facegate/backend/internal/middleware"
	"github.com/wenqianl/facegate/backend/internal/service/extract"
	"github.com/wenqianl/facegate/backend/internal/service/hub"
	verifyService "github.com/wenqianl/facegate/backend/internal/service/verify"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(verifySvc *verifyService.Service, h *hub.Hub, extractor extract.Extractor) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	healthHandler := verifyHandler.New(verifySvc)
	wsHandler := verifyHandler.NewWebSocketHandler(verifySvc, h, extractor)

	r.Route("/api", func(api chi.Router) {
		healthHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
