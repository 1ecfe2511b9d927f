// Package conversation exposes the conversation engine over HTTP.
package conversation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/virtualhq/agenthq/backend/internal/middleware"
	conversationservice "github.com/virtualhq/agenthq/backend/internal/service/conversation"
	"github.com/virtualhq/agenthq/backend/pkg/utils"
)

// Handler carries the engine dependency.
type Handler struct {
	engine *conversationservice.Service
}

// New creates the conversation handler.
func New(engine *conversationservice.Service) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes mounts the conversation endpoints on an authenticated router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/conversations", h.handleStart)
	r.Get("/conversations", h.handleList)
	r.Get("/conversations/{conversationID}", h.handleGet)
	r.Post("/conversations/{conversationID}/messages", h.handleSendMessage)
	r.Post("/conversations/{conversationID}/end", h.handleEnd)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	var payload struct {
		PersonaID string `json:"personaId"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.PersonaID == "" {
		utils.RespondError(w, http.StatusBadRequest, "personaId is required")
		return
	}

	conv, err := h.engine.StartConversation(r.Context(), user.ID, payload.PersonaID, payload.Message)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := h.engine.ListConversations(r.Context(), user.ID, limit, offset)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	conv, err := h.engine.GetConversation(r.Context(), user.ID, chi.URLParam(r, "conversationID"))
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.engine.SendMessage(r.Context(), user.ID, chi.URLParam(r, "conversationID"), payload.Text)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	conv, err := h.engine.EndConversation(r.Context(), user.ID, chi.URLParam(r, "conversationID"))
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}
