package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jovywahba/jovnumbergames/internal/api/middleware"
	"github.com/jovywahba/jovnumbergames/internal/service"
	"github.com/rs/zerolog/log"
)

type ProfileHandler struct {
	profileService *service.ProfileService
}

func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// GetProfile returns the current user's totals and recent games
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := h.profileService.Stats(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user", userID.String()).Msg("failed to load stats")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// GetMatchup returns the head-to-head record against one opponent
func (h *ProfileHandler) GetMatchup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	opponentID, err := uuid.Parse(chi.URLParam(r, "opponentId"))
	if err != nil {
		http.Error(w, "Invalid opponent ID", http.StatusBadRequest)
		return
	}
	if opponentID == userID {
		http.Error(w, "Opponent must be another player", http.StatusBadRequest)
		return
	}

	matchup, err := h.profileService.Matchup(r.Context(), userID, opponentID)
	if err != nil {
		log.Error().Err(err).Str("user", userID.String()).Str("opponent", opponentID.String()).Msg("failed to load matchup")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(matchup)
}
