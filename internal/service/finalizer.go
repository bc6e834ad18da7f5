package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/game"
	"github.com/jovywahba/jovnumbergames/internal/repository"
	"github.com/rs/zerolog/log"
)

// Finalizer commits a finished match's result to the matchup and both
// profiles exactly once. The resultsLogged flag is checked and set in the
// same transaction as the statistics writes, so racing callers either win
// outright or find the flag already set.
type Finalizer struct {
	store      repository.Store
	retrier    *Retrier
	historyCap int
}

func NewFinalizer(store repository.Store, retrier *Retrier, historyCap int) *Finalizer {
	if historyCap <= 0 {
		historyCap = domain.DefaultHistoryCap
	}
	return &Finalizer{store: store, retrier: retrier, historyCap: historyCap}
}

// Finalize records the room's result. It reports whether this call did the
// recording; a room that is not finished or already logged is a no-op.
func (f *Finalizer) Finalize(ctx context.Context, roomID string) (bool, error) {
	var recorded bool
	err := f.retrier.Do(ctx, "finalize", func() error {
		recorded = false
		return f.store.RunTransaction(ctx, func(tx repository.Tx) error {
			room, err := getRoom(tx, roomID)
			if err != nil {
				return err
			}
			if room.Status != domain.RoomStatusFinished {
				return domain.ErrWrongStatus
			}
			if room.ResultsLogged {
				return domain.ErrAlreadyLogged
			}

			now := tx.Now()
			room.ResultsLogged = true
			room.ResultsLoggedAt = &now
			if err := tx.SetRoom(room); err != nil {
				return err
			}

			if outcome, ok := game.OutcomeOf(room, now); ok {
				if err := f.recordMatchup(tx, outcome); err != nil {
					return err
				}
				if err := f.recordProfile(tx, outcome, outcome.P1ID, domain.SeatP1); err != nil {
					return err
				}
				if err := f.recordProfile(tx, outcome, outcome.P2ID, domain.SeatP2); err != nil {
					return err
				}
			}
			recorded = true
			return nil
		})
	})
	if domain.IsPrecondition(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	log.Info().Str("room", roomID).Msg("Match results recorded")
	return recorded, nil
}

func (f *Finalizer) recordMatchup(tx repository.Tx, o game.Outcome) error {
	key := domain.PairKey(o.P1ID, o.P2ID)
	m, err := tx.GetMatchup(key)
	if errors.Is(err, repository.ErrNotFound) {
		m = domain.NewMatchup(key)
	} else if err != nil {
		return err
	}
	game.RecordMatchup(m, o)
	return tx.SetMatchup(m)
}

func (f *Finalizer) recordProfile(tx repository.Tx, o game.Outcome, userID uuid.UUID, seat domain.Seat) error {
	p, err := tx.GetProfile(userID)
	if errors.Is(err, repository.ErrNotFound) {
		p = &domain.Profile{UserID: userID}
	} else if err != nil {
		return err
	}
	game.RecordOutcome(p, o, seat, f.historyCap)
	return tx.SetProfile(p)
}
