// Package ws upgrades authenticated requests to websocket connections and
// attaches them to the realtime hub.
package ws

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/virtualhq/agenthq/backend/internal/middleware"
	"github.com/virtualhq/agenthq/backend/internal/realtime"
	"github.com/virtualhq/agenthq/backend/pkg/logger"
	"github.com/virtualhq/agenthq/backend/pkg/utils"
)

// Handler owns the upgrader and the hub reference.
type Handler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(hub *realtime.Hub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the upgrade endpoint on an authenticated router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleConnect)
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log := logger.Named("ws")
		log.Debug().Err(err).Msg("upgrade failed")
		return
	}

	client := h.hub.Register(user.ID, conn)

	// The read loop exists to observe the close handshake; inbound frames
	// carry no protocol, all traffic flows server to client.
	go func() {
		defer client.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
