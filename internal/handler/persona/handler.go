// Package persona lists the registry, filtered to what the caller may address.
package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/virtualhq/agenthq/backend/internal/middleware"
	personamodel "github.com/virtualhq/agenthq/backend/internal/model/persona"
	"github.com/virtualhq/agenthq/backend/pkg/utils"
)

// Handler serves persona listing.
type Handler struct {
	personas personamodel.Store
}

// New creates the persona handler.
func New(personas personamodel.Store) *Handler {
	return &Handler{personas: personas}
}

// RegisterRoutes mounts the persona endpoints on an authenticated router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	accessible := make([]personamodel.Persona, 0)
	for _, p := range h.personas.List() {
		if user.CanAccessPersona(p.ID) {
			accessible = append(accessible, p)
		}
	}
	utils.RespondJSON(w, http.StatusOK, accessible)
}
