package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/game"
	"github.com/jovywahba/jovnumbergames/internal/repository"
	"github.com/rs/zerolog/log"
)

// RoomService runs every room transition as a conditional transaction.
// Each attempt re-reads the room and re-checks the transition's guard, so
// a retried or stale request either applies cleanly or fails the guard.
type RoomService struct {
	store     repository.Store
	machine   *game.Machine
	retrier   *Retrier
	finalizer *Finalizer
}

func NewRoomService(store repository.Store, machine *game.Machine, retrier *Retrier, finalizer *Finalizer) *RoomService {
	return &RoomService{
		store:     store,
		machine:   machine,
		retrier:   retrier,
		finalizer: finalizer,
	}
}

func (s *RoomService) Machine() *game.Machine {
	return s.machine
}

// GetRoom returns the committed room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrRoomNotFound
	}
	return room, err
}

// Join opens the room if it does not exist yet and seats the caller.
func (s *RoomService) Join(ctx context.Context, rawID string, who domain.Identity) (*domain.Room, domain.Seat, error) {
	roomID, err := game.NormalizeRoomID(rawID)
	if err != nil {
		return nil, domain.SeatNone, err
	}

	var (
		joined *domain.Room
		seat   domain.Seat
	)
	err = s.retrier.Do(ctx, "join", func() error {
		return s.store.RunTransaction(ctx, func(tx repository.Tx) error {
			room, err := tx.GetRoom(roomID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				room = s.machine.NewRoom(roomID, who, tx.Now())
				seat = domain.SeatP1
			case err != nil:
				return err
			default:
				if seat, err = s.machine.Join(room, who, tx.Now()); err != nil {
					return err
				}
			}
			joined = room
			return tx.SetRoom(room)
		})
	})
	if err != nil {
		return nil, domain.SeatNone, err
	}

	log.Debug().
		Str("room", roomID).
		Str("user", who.ID.String()).
		Str("seat", string(seat)).
		Str("status", string(joined.Status)).
		Msg("Joined room")
	return joined, seat, nil
}

func (s *RoomService) SetSecret(ctx context.Context, roomID string, userID uuid.UUID, code string) error {
	_, err := s.mutate(ctx, "set_secret", roomID, func(room *domain.Room, _ time.Time) error {
		return s.machine.SetSecret(room, userID, code)
	})
	return err
}

func (s *RoomService) StartCountdown(ctx context.Context, roomID string, userID uuid.UUID) error {
	_, err := s.mutate(ctx, "start_countdown", roomID, func(room *domain.Room, _ time.Time) error {
		return s.machine.StartCountdown(room, userID)
	})
	return err
}

func (s *RoomService) StepCountdown(ctx context.Context, roomID string, userID uuid.UUID, n int) error {
	_, err := s.mutate(ctx, "step_countdown", roomID, func(room *domain.Room, _ time.Time) error {
		return s.machine.StepCountdown(room, userID, n)
	})
	return err
}

func (s *RoomService) BeginPlay(ctx context.Context, roomID string, userID uuid.UUID) error {
	_, err := s.mutate(ctx, "begin_play", roomID, func(room *domain.Room, now time.Time) error {
		return s.machine.BeginPlay(room, userID, now)
	})
	return err
}

// Tick runs one authoritative clock step. It is not retried: a contended
// tick is superseded by whatever won, and the next tick re-reads.
func (s *RoomService) Tick(ctx context.Context, roomID string, userID uuid.UUID) (game.TickResult, error) {
	var res game.TickResult
	err := s.store.RunTransaction(ctx, func(tx repository.Tx) error {
		room, err := getRoom(tx, roomID)
		if err != nil {
			return err
		}
		if res, err = s.machine.Tick(room, userID, tx.Now()); err != nil {
			return err
		}
		return tx.SetRoom(room)
	})
	if err != nil {
		return game.TickResult{}, err
	}

	if res.TookOver {
		log.Info().Str("room", roomID).Str("user", userID.String()).Msg("Took over tick driver")
	}
	if res.Outcome == game.TickTimedOut {
		log.Debug().Str("room", roomID).Str("seat", string(res.Move.By)).Msg("Turn timed out")
	}
	return res, nil
}

// SubmitGuess scores a guess. A winning guess triggers finalization right
// away; failure there is only logged since every observer retries it.
func (s *RoomService) SubmitGuess(ctx context.Context, roomID string, userID uuid.UUID, guess string) (domain.Move, error) {
	var move domain.Move
	room, err := s.mutate(ctx, "guess", roomID, func(room *domain.Room, now time.Time) error {
		m, err := s.machine.Guess(room, userID, guess, now)
		move = m
		return err
	})
	if err != nil {
		return domain.Move{}, err
	}

	if room.Status == domain.RoomStatusFinished {
		if _, err := s.finalizer.Finalize(ctx, roomID); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("Finalization after winning guess failed")
		}
	}
	return move, nil
}

// Reset starts a fresh match. A finished match is finalized first so its
// result is never lost.
func (s *RoomService) Reset(ctx context.Context, roomID string, userID uuid.UUID) error {
	s.finalizePending(ctx, roomID)
	_, err := s.mutate(ctx, "reset", roomID, func(room *domain.Room, _ time.Time) error {
		return s.machine.Reset(room, userID)
	})
	return err
}

// Leave vacates the caller's seat, closing the room if the caller is
// player 1.
func (s *RoomService) Leave(ctx context.Context, roomID string, userID uuid.UUID) (domain.Seat, error) {
	s.finalizePending(ctx, roomID)
	var seat domain.Seat
	_, err := s.mutate(ctx, "leave", roomID, func(room *domain.Room, now time.Time) error {
		var err error
		seat, err = s.machine.Leave(room, userID, now)
		return err
	})
	if err != nil {
		return domain.SeatNone, err
	}
	log.Debug().Str("room", roomID).Str("seat", string(seat)).Msg("Left room")
	return seat, nil
}

// Expire closes a room whose lifetime is over.
func (s *RoomService) Expire(ctx context.Context, roomID string, userID uuid.UUID) error {
	_, err := s.mutate(ctx, "expire", roomID, func(room *domain.Room, now time.Time) error {
		return s.machine.Expire(room, userID, now)
	})
	if err == nil {
		log.Info().Str("room", roomID).Msg("Room expired")
	}
	return err
}

func (s *RoomService) finalizePending(ctx context.Context, roomID string) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil || room.Status != domain.RoomStatusFinished || room.ResultsLogged {
		return
	}
	if _, err := s.finalizer.Finalize(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("Finalization before leaving match failed")
	}
}

// mutate applies fn to the room inside a retried transaction and returns
// the room as written.
func (s *RoomService) mutate(ctx context.Context, op, roomID string, fn func(room *domain.Room, now time.Time) error) (*domain.Room, error) {
	var written *domain.Room
	err := s.retrier.Do(ctx, op, func() error {
		return s.store.RunTransaction(ctx, func(tx repository.Tx) error {
			room, err := getRoom(tx, roomID)
			if err != nil {
				return err
			}
			if err := fn(room, tx.Now()); err != nil {
				return err
			}
			written = room
			return tx.SetRoom(room)
		})
	})
	if err != nil {
		if domain.IsPrecondition(err) {
			log.Debug().Err(err).Str("room", roomID).Str("op", op).Msg("Transition skipped")
		}
		return nil, err
	}
	return written, nil
}

func getRoom(tx repository.Tx, roomID string) (*domain.Room, error) {
	room, err := tx.GetRoom(roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrRoomNotFound
	}
	return room, err
}
