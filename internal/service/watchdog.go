package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	expireTimeout  = 10 * time.Second
	expireAttempts = 3
)

// ExpiryWatchdog closes rooms when their lifetime runs out. It acts on
// behalf of the room's admin and only while that admin is connected.
type ExpiryWatchdog struct {
	scheduler gocron.Scheduler
	rooms     *RoomService
	clock     clockwork.Clock

	mu    sync.Mutex
	armed map[string]armedJob
}

type armedJob struct {
	jobID     uuid.UUID
	adminID   uuid.UUID
	expiresAt time.Time
	holders   map[uuid.UUID]struct{}
}

func NewExpiryWatchdog(scheduler gocron.Scheduler, rooms *RoomService, clock clockwork.Clock) *ExpiryWatchdog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ExpiryWatchdog{
		scheduler: scheduler,
		rooms:     rooms,
		clock:     clock,
		armed:     make(map[string]armedJob),
	}
}

// Arm makes sure room is closed at its expiry and records holder as relying
// on it. A room that is already past expiry is closed immediately and Arm
// reports true.
func (w *ExpiryWatchdog) Arm(ctx context.Context, holder uuid.UUID, room *domain.Room, adminID uuid.UUID) (bool, error) {
	if room.Status == domain.RoomStatusClosed || !room.IsAdmin(adminID) {
		return false, nil
	}
	expiresAt := w.rooms.Machine().ExpiresAt(room)

	if !w.clock.Now().Before(expiresAt) {
		w.cancel(room.ID)
		err := w.rooms.Expire(ctx, room.ID, adminID)
		if err != nil && !domain.IsPrecondition(err) {
			return false, err
		}
		return err == nil, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	holders := map[uuid.UUID]struct{}{holder: {}}
	if cur, ok := w.armed[room.ID]; ok {
		cur.holders[holder] = struct{}{}
		if cur.expiresAt.Equal(expiresAt) && cur.adminID == adminID {
			return false, nil
		}
		// rescheduled: the room was reopened with a new lifetime
		holders = cur.holders
		w.removeLocked(room.ID, cur)
	}

	roomID := room.ID
	job, err := w.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(expiresAt)),
		gocron.NewTask(w.expire, roomID, adminID),
		gocron.WithName("expire:"+roomID),
	)
	if err != nil {
		return false, err
	}
	w.armed[roomID] = armedJob{jobID: job.ID(), adminID: adminID, expiresAt: expiresAt, holders: holders}

	log.Debug().Str("room", roomID).Time("expiresAt", expiresAt).Int("holders", len(holders)).Msg("Expiry armed")
	return false, nil
}

// Disarm releases holder's interest in the room's expiry. The pending job
// is cancelled once no holder is left.
func (w *ExpiryWatchdog) Disarm(roomID string, holder uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur, ok := w.armed[roomID]
	if !ok {
		return
	}
	delete(cur.holders, holder)
	if len(cur.holders) == 0 {
		w.removeLocked(roomID, cur)
	}
}

func (w *ExpiryWatchdog) cancel(roomID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.armed[roomID]; ok {
		w.removeLocked(roomID, cur)
	}
}

// removeLocked drops the job for roomID. w.mu must be held.
func (w *ExpiryWatchdog) removeLocked(roomID string, cur armedJob) {
	if err := w.scheduler.RemoveJob(cur.jobID); err != nil {
		log.Debug().Err(err).Str("room", roomID).Msg("Expiry job already gone")
	}
	delete(w.armed, roomID)
}

// Armed reports whether an expiry is pending for roomID.
func (w *ExpiryWatchdog) Armed(roomID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.armed[roomID]
	return ok
}

func (w *ExpiryWatchdog) expire(roomID string, adminID uuid.UUID) {
	w.mu.Lock()
	if cur, ok := w.armed[roomID]; ok && cur.adminID == adminID {
		delete(w.armed, roomID)
	}
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()
	for attempt := 0; attempt < expireAttempts; attempt++ {
		err := w.rooms.Expire(ctx, roomID, adminID)
		if err == nil {
			return
		}
		if !errors.Is(err, domain.ErrWrongStatus) {
			if !domain.IsPrecondition(err) {
				log.Warn().Err(err).Str("room", roomID).Msg("Failed to expire room")
			}
			return
		}

		// the store clock may trail ours; stop if the room was closed or
		// reopened with a later expiry
		room, err := w.rooms.GetRoom(ctx, roomID)
		if err != nil || room.Status == domain.RoomStatusClosed || w.clock.Now().Before(w.rooms.Machine().ExpiresAt(room)) {
			return
		}
		w.clock.Sleep(time.Second)
	}
}
