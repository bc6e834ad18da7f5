package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/game"
	"github.com/jovywahba/jovnumbergames/internal/repository"
	"github.com/jovywahba/jovnumbergames/internal/repository/memory"
	"github.com/jovywahba/jovnumbergames/internal/service"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	clock     *clockwork.FakeClock
	store     *memory.Store
	rooms     *service.RoomService
	finalizer *service.Finalizer
	profiles  *service.ProfileService
	alice     domain.Identity
	bob       domain.Identity
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	store := memory.NewStore(clock)
	t.Cleanup(store.Close)

	retrier := service.NewRetrier(service.RetryPolicy{Attempts: 5})
	finalizer := service.NewFinalizer(store, retrier, domain.DefaultHistoryCap)
	return &harness{
		clock:     clock,
		store:     store,
		rooms:     service.NewRoomService(store, game.NewMachine(game.DefaultRules()), retrier, finalizer),
		finalizer: finalizer,
		profiles:  service.NewProfileService(store, retrier),
		alice:     domain.Identity{ID: uuid.New(), Name: "Alice"},
		bob:       domain.Identity{ID: uuid.New(), Name: "Bob"},
	}
}

// seat opens roomID with alice as p1 and bob as p2.
func (h *harness) seat(t *testing.T, roomID string) {
	t.Helper()
	ctx := context.Background()
	_, seat, err := h.rooms.Join(ctx, roomID, h.alice)
	require.NoError(t, err)
	require.Equal(t, domain.SeatP1, seat)
	_, seat, err = h.rooms.Join(ctx, roomID, h.bob)
	require.NoError(t, err)
	require.Equal(t, domain.SeatP2, seat)
}

// play seats both players, sets secrets 123/489 and starts the match.
func (h *harness) play(t *testing.T, roomID string) {
	t.Helper()
	ctx := context.Background()
	h.seat(t, roomID)
	require.NoError(t, h.rooms.SetSecret(ctx, roomID, h.alice.ID, "123"))
	require.NoError(t, h.rooms.SetSecret(ctx, roomID, h.bob.ID, "489"))
	require.NoError(t, h.rooms.StartCountdown(ctx, roomID, h.alice.ID))
	for _, n := range []int{2, 1, 0} {
		require.NoError(t, h.rooms.StepCountdown(ctx, roomID, h.alice.ID, n))
	}
	require.NoError(t, h.rooms.BeginPlay(ctx, roomID, h.alice.ID))
}

// finishWithoutLogging writes a p1 win straight to the store so nothing
// has finalized it yet.
func (h *harness) finishWithoutLogging(t *testing.T, roomID string) {
	t.Helper()
	h.play(t, roomID)
	err := h.store.RunTransaction(context.Background(), func(tx repository.Tx) error {
		room, err := tx.GetRoom(roomID)
		if err != nil {
			return err
		}
		if _, err := game.NewMachine(game.DefaultRules()).Guess(room, h.alice.ID, "489", tx.Now()); err != nil {
			return err
		}
		return tx.SetRoom(room)
	})
	require.NoError(t, err)
}

func (h *harness) room(t *testing.T, roomID string) *domain.Room {
	t.Helper()
	room, err := h.rooms.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	return room
}
