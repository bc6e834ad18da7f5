package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/game"
	"github.com/jovywahba/jovnumbergames/internal/repository/memory"
	"github.com/jovywahba/jovnumbergames/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatchdog(t *testing.T, ttl time.Duration) (*service.ExpiryWatchdog, *service.RoomService) {
	t.Helper()
	clock := clockwork.NewRealClock()
	store := memory.NewStore(clock)
	t.Cleanup(store.Close)

	rules := game.DefaultRules()
	rules.RoomTTL = ttl
	retrier := service.NewRetrier(service.RetryPolicy{Attempts: 5})
	rooms := service.NewRoomService(store, game.NewMachine(rules), retrier, service.NewFinalizer(store, retrier, rules.HistoryCap))

	scheduler, err := gocron.NewScheduler()
	require.NoError(t, err)
	scheduler.Start()
	t.Cleanup(func() { _ = scheduler.Shutdown() })

	return service.NewExpiryWatchdog(scheduler, rooms, clock), rooms
}

func TestExpiryWatchdog_ClosesAtExpiry(t *testing.T) {
	watchdog, rooms := newWatchdog(t, 300*time.Millisecond)
	ctx := context.Background()
	admin := domain.Identity{ID: uuid.New(), Name: "Admin"}

	room, _, err := rooms.Join(ctx, "short", admin)
	require.NoError(t, err)

	closed, err := watchdog.Arm(ctx, uuid.New(), room, admin.ID)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.True(t, watchdog.Armed("short"))

	assert.Eventually(t, func() bool {
		r, err := rooms.GetRoom(ctx, "short")
		return err == nil && r.Status == domain.RoomStatusClosed
	}, 5*time.Second, 50*time.Millisecond)
	assert.False(t, watchdog.Armed("short"))
}

func TestExpiryWatchdog_AlreadyExpired(t *testing.T) {
	watchdog, rooms := newWatchdog(t, 50*time.Millisecond)
	ctx := context.Background()
	admin := domain.Identity{ID: uuid.New(), Name: "Admin"}

	room, _, err := rooms.Join(ctx, "stale", admin)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	closed, err := watchdog.Arm(ctx, uuid.New(), room, admin.ID)
	require.NoError(t, err)
	assert.True(t, closed)

	r, err := rooms.GetRoom(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusClosed, r.Status)
}

func TestExpiryWatchdog_Disarm(t *testing.T) {
	watchdog, rooms := newWatchdog(t, 200*time.Millisecond)
	ctx := context.Background()
	admin := domain.Identity{ID: uuid.New(), Name: "Admin"}
	guest := domain.Identity{ID: uuid.New(), Name: "Guest"}

	room, _, err := rooms.Join(ctx, "kept", admin)
	require.NoError(t, err)

	holder := uuid.New()
	_, err = watchdog.Arm(ctx, holder, room, guest.ID)
	require.NoError(t, err)
	assert.False(t, watchdog.Armed("kept"), "only the admin arms expiry")

	_, err = watchdog.Arm(ctx, holder, room, admin.ID)
	require.NoError(t, err)
	watchdog.Disarm("kept", holder)
	assert.False(t, watchdog.Armed("kept"))

	time.Sleep(400 * time.Millisecond)
	r, err := rooms.GetRoom(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusWaiting, r.Status)
}

func TestExpiryWatchdog_SharedByAdminSessions(t *testing.T) {
	watchdog, rooms := newWatchdog(t, 400*time.Millisecond)
	ctx := context.Background()
	admin := domain.Identity{ID: uuid.New(), Name: "Admin"}

	room, _, err := rooms.Join(ctx, "shared", admin)
	require.NoError(t, err)

	// the admin is connected from two tabs
	first, second := uuid.New(), uuid.New()
	_, err = watchdog.Arm(ctx, first, room, admin.ID)
	require.NoError(t, err)
	_, err = watchdog.Arm(ctx, second, room, admin.ID)
	require.NoError(t, err)
	_, err = watchdog.Arm(ctx, second, room, admin.ID)
	require.NoError(t, err)

	watchdog.Disarm("shared", first)
	assert.True(t, watchdog.Armed("shared"), "the second tab still relies on expiry")

	assert.Eventually(t, func() bool {
		r, err := rooms.GetRoom(ctx, "shared")
		return err == nil && r.Status == domain.RoomStatusClosed
	}, 5*time.Second, 50*time.Millisecond)

	t.Run("last holder cancels", func(t *testing.T) {
		room, _, err := rooms.Join(ctx, "released", admin)
		require.NoError(t, err)
		holder := uuid.New()
		_, err = watchdog.Arm(ctx, holder, room, admin.ID)
		require.NoError(t, err)
		_, err = watchdog.Arm(ctx, holder, room, admin.ID)
		require.NoError(t, err)

		watchdog.Disarm("released", holder)
		assert.False(t, watchdog.Armed("released"))
	})
}
