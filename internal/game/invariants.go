package game

import (
	"errors"
	"fmt"

	"github.com/jovywahba/jovnumbergames/internal/domain"
)

var ErrInvariant = errors.New("room invariant violated")

// CheckInvariants verifies the structural rules every committed room must
// satisfy.
func CheckInvariants(r *domain.Room) error {
	switch r.Status {
	case domain.RoomStatusPlaying:
		if r.Turn != domain.SeatP1 && r.Turn != domain.SeatP2 {
			return fmt.Errorf("%w: playing room has turn %q", ErrInvariant, r.Turn)
		}
		if r.TurnDeadlineMs == nil {
			return fmt.Errorf("%w: playing room has no deadline", ErrInvariant)
		}
	case domain.RoomStatusWaiting, domain.RoomStatusClosed:
		if r.Turn != domain.SeatNone {
			return fmt.Errorf("%w: %s room has turn %q", ErrInvariant, r.Status, r.Turn)
		}
	case domain.RoomStatusFinished:
		if r.Winner == domain.WinnerNone {
			return fmt.Errorf("%w: finished room has no winner", ErrInvariant)
		}
	}

	if r.P2ID != nil && r.P1ID == nil {
		return fmt.Errorf("%w: p2 seated without p1", ErrInvariant)
	}
	for i, m := range r.History {
		if m.Step != i+1 {
			return fmt.Errorf("%w: history entry %d has step %d", ErrInvariant, i, m.Step)
		}
		if m.Timeout != (m.Bulls == nil) {
			return fmt.Errorf("%w: history entry %d mixes timeout and score", ErrInvariant, i)
		}
	}
	return nil
}
