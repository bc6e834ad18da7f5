package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/repository"
)

const recentGamesLimit = 20

type ProfileService struct {
	store   repository.Store
	retrier *Retrier
}

func NewProfileService(store repository.Store, retrier *Retrier) *ProfileService {
	return &ProfileService{store: store, retrier: retrier}
}

// EnsureProfile creates the caller's profile or refreshes its display name.
func (s *ProfileService) EnsureProfile(ctx context.Context, who domain.Identity) error {
	return s.retrier.Do(ctx, "ensure_profile", func() error {
		return s.store.RunTransaction(ctx, func(tx repository.Tx) error {
			p, err := tx.GetProfile(who.ID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				p = &domain.Profile{UserID: who.ID}
			case err != nil:
				return err
			case p.Name == who.Name:
				return nil
			}
			p.Name = who.Name
			return tx.SetProfile(p)
		})
	})
}

// StatsResponse is a player's lifetime record and most recent games,
// newest first.
type StatsResponse struct {
	UserID      uuid.UUID           `json:"userId"`
	Name        string              `json:"name"`
	TotalGames  int                 `json:"totalGames"`
	TotalWins   int                 `json:"totalWins"`
	TotalLosses int                 `json:"totalLosses"`
	Recent      []domain.GameRecord `json:"recent"`
}

// Stats returns the player's statistics. Profiles whose counters were
// never written are totalled from the games log instead.
func (s *ProfileService) Stats(ctx context.Context, userID uuid.UUID) (*StatsResponse, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &StatsResponse{UserID: userID, Recent: []domain.GameRecord{}}, nil
	}
	if err != nil {
		return nil, err
	}

	resp := &StatsResponse{
		UserID:      userID,
		Name:        p.Name,
		TotalGames:  p.TotalGames,
		TotalWins:   p.TotalWins,
		TotalLosses: p.TotalLosses,
		Recent:      make([]domain.GameRecord, 0, recentGamesLimit),
	}
	if resp.TotalGames == 0 && len(p.Games) > 0 {
		resp.TotalGames = len(p.Games)
		for _, g := range p.Games {
			if g.MeWon {
				resp.TotalWins++
			} else if g.WinnerID != nil {
				resp.TotalLosses++
			}
		}
	}
	for i := len(p.Games) - 1; i >= 0 && len(resp.Recent) < recentGamesLimit; i-- {
		resp.Recent = append(resp.Recent, p.Games[i])
	}
	return resp, nil
}

// MatchupResponse is the head-to-head record between the caller and one
// opponent.
type MatchupResponse struct {
	Key          string            `json:"key"`
	GamesPlayed  int               `json:"gamesPlayed"`
	MyWins       int               `json:"myWins"`
	OpponentWins int               `json:"opponentWins"`
	Draws        int               `json:"draws"`
	Players      map[string]string `json:"players"`
}

func (s *ProfileService) Matchup(ctx context.Context, me, opponent uuid.UUID) (*MatchupResponse, error) {
	key := domain.PairKey(me, opponent)
	m, err := s.store.GetMatchup(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return &MatchupResponse{Key: key, Players: map[string]string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	players := m.Players.Data()
	if players == nil {
		players = map[string]string{}
	}
	return &MatchupResponse{
		Key:          key,
		GamesPlayed:  m.GamesPlayed,
		MyWins:       m.WinsFor(me),
		OpponentWins: m.WinsFor(opponent),
		Draws:        m.Draws,
		Players:      players,
	}, nil
}
