package verify

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	verifyservice "github.com/wenqianl/facegate/backend/internal/service/verify"
	"github.com/wenqianl/facegate/backend/pkg/utils"
)

// Handler serves the synchronous read-only surface.
type Handler struct {
	verifySvc *verifyservice.Service
}

// New creates the HTTP handler.
func New(verifySvc *verifyservice.Service) *Handler {
	return &Handler{verifySvc: verifySvc}
}

// RegisterRoutes mounts the health endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.verifySvc.SessionCount(),
	})
}
