package handlers

import (
	"net/http"

	ws "github.com/gorilla/websocket"
	"github.com/jovywahba/jovnumbergames/internal/service"
	"github.com/jovywahba/jovnumbergames/internal/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

type WebSocketHandler struct {
	hub         *websocket.Hub
	authService *service.AuthService
}

func NewWebSocketHandler(hub *websocket.Hub, authService *service.AuthService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		authService: authService,
	}
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on a WebSocket handshake
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	who, err := h.authService.Identify(r.Context(), token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("user", who.ID.String()).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn, who)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
