package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/jovywahba/jovnumbergames/internal/api/middleware"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/game"
	"github.com/jovywahba/jovnumbergames/internal/service"
	"github.com/jovywahba/jovnumbergames/internal/session"
	"github.com/rs/zerolog/log"
)

type RoomHandler struct {
	roomService *service.RoomService
	authService *service.AuthService
	clock       clockwork.Clock
}

func NewRoomHandler(roomService *service.RoomService, authService *service.AuthService, clock clockwork.Clock) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		authService: authService,
		clock:       clock,
	}
}

type JoinRoomResponse struct {
	View         session.View `json:"view"`
	YourSeat     domain.Seat  `json:"yourSeat"`
	WebsocketURL string       `json:"websocketUrl"`
}

// Get returns the room as the caller would see it in a session.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomID, err := game.NormalizeRoomID(chi.URLParam(r, "roomId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	room, err := h.roomService.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("room", roomID).Msg("failed to load room")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	view := session.DeriveView(room, userID, h.clock.Now(), h.roomService.Machine().ExpiresAt(room))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

// Join opens or joins the room and tells the caller which seat they hold.
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	room, seat, err := h.roomService.Join(r.Context(), chi.URLParam(r, "roomId"), domain.Identity{ID: user.ID, Name: user.DisplayName})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRoomID):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrRoomClosed):
			http.Error(w, "Room is closed", http.StatusGone)
		default:
			log.Error().Err(err).Str("user", userID.String()).Msg("failed to join room")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := JoinRoomResponse{
		View:         session.DeriveView(room, userID, h.clock.Now(), h.roomService.Machine().ExpiresAt(room)),
		YourSeat:     seat,
		WebsocketURL: "/api/v1/ws",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
