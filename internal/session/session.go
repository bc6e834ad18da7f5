package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/game"
	"github.com/jovywahba/jovnumbergames/internal/repository"
	"github.com/jovywahba/jovnumbergames/internal/service"
	"github.com/rs/zerolog/log"
)

// Sink receives everything a session wants its player to see. Methods are
// called from several goroutines.
type Sink interface {
	State(v View)
	TimerTick(turn domain.Seat, secondsLeft int)
	Notice(code, message string)
	Closed(reason string)
}

type Options struct {
	// TickInterval paces the authoritative tick and the advisory clock.
	TickInterval time.Duration
	// CountdownInterval is the delay between countdown steps.
	CountdownInterval time.Duration
}

func DefaultOptions() Options {
	return Options{TickInterval: time.Second, CountdownInterval: time.Second}
}

// Deps are the services a session drives. Watchdog is optional.
type Deps struct {
	Store     repository.Store
	Rooms     *service.RoomService
	Profiles  *service.ProfileService
	Finalizer *service.Finalizer
	Watchdog  *service.ExpiryWatchdog
	Clock     clockwork.Clock
}

// Session is one player's connection to one room. It renders every
// snapshot and runs whichever protocol its role currently owns: the
// countdown and tick as driver, finalization as observer, expiry as admin.
type Session struct {
	deps Deps
	opts Options
	who  domain.Identity
	sink Sink

	// armID identifies this session to the expiry watchdog
	armID uuid.UUID

	wg sync.WaitGroup

	mu           sync.Mutex
	roomID       string
	last         *domain.Room
	cancel       context.CancelFunc
	countingDown bool
	finalizing   bool
	playing      context.CancelFunc
	armed        bool
	leaving      bool
	closed       bool
}

func New(deps Deps, who domain.Identity, sink Sink, opts Options) *Session {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	def := DefaultOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.CountdownInterval <= 0 {
		opts.CountdownInterval = def.CountdownInterval
	}
	return &Session{deps: deps, opts: opts, who: who, sink: sink, armID: uuid.New()}
}

// RoomID is the normalized id of the joined room, empty before Join.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Run joins the room and follows it until ctx is done, the player leaves,
// or the room closes.
func (s *Session) Run(ctx context.Context, rawRoomID string) error {
	if err := s.deps.Profiles.EnsureProfile(ctx, s.who); err != nil {
		log.Warn().Err(err).Str("user", s.who.ID.String()).Msg("Failed to ensure profile")
		s.sink.Notice(ErrorCode(err), err.Error())
	}

	room, _, err := s.deps.Rooms.Join(ctx, rawRoomID, s.who)
	if err != nil {
		if errors.Is(err, domain.ErrRoomClosed) {
			s.close(ReasonClosed)
		}
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.roomID = room.ID
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.wg.Wait()
		s.disarm()
	}()

	snapshots, err := s.deps.Store.Subscribe(ctx, room.ID)
	if err != nil {
		return err
	}

	log.Debug().Str("room", room.ID).Str("user", s.who.ID.String()).Msg("Session started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if snap.Err != nil {
				log.Warn().Err(snap.Err).Str("room", room.ID).Msg("Room feed interrupted")
				s.sink.Notice(CodeStoreUnavailable, snap.Err.Error())
				continue
			}
			if done := s.observe(ctx, snap.Room); done {
				return nil
			}
		}
	}
}

// observe renders one snapshot and starts or stops the protocols it calls
// for. It reports whether the session is over.
func (s *Session) observe(ctx context.Context, room *domain.Room) bool {
	now := s.deps.Clock.Now()
	machine := s.deps.Rooms.Machine()
	me := s.who.ID

	s.mu.Lock()
	s.last = room
	s.mu.Unlock()

	s.sink.State(DeriveView(room, me, now, machine.ExpiresAt(room)))

	if room.Status == domain.RoomStatusClosed {
		s.mu.Lock()
		reason := ReasonClosed
		if s.leaving {
			reason = ReasonLeft
		}
		s.mu.Unlock()
		s.close(reason)
		return true
	}
	if s.watch(ctx, room, now) {
		s.close(ReasonExpired)
		return true
	}

	seat := room.SeatOf(me)
	switch {
	case room.Status == domain.RoomStatusReady && seat == domain.SeatP1:
		s.startCountdown(ctx, room.ID, nil)
	case room.Status == domain.RoomStatusCountdown && isDriver(room, s.who):
		from := machine.Rules().CountdownFrom
		if room.Countdown != nil {
			from = *room.Countdown
		}
		s.startCountdown(ctx, room.ID, &from)
	}

	s.syncPlayLoop(ctx, room)

	if room.Status == domain.RoomStatusFinished && !room.ResultsLogged {
		s.startFinalize(ctx, room.ID)
	}
	return false
}

// watch arms the expiry watchdog for the admin. Other viewers stop
// following a room once it is past its lifetime.
func (s *Session) watch(ctx context.Context, room *domain.Room, now time.Time) bool {
	if !room.IsAdmin(s.who.ID) {
		return s.deps.Rooms.Machine().Expired(room, now)
	}
	if s.deps.Watchdog == nil {
		return false
	}
	closed, err := s.deps.Watchdog.Arm(ctx, s.armID, room, s.who.ID)
	if err != nil {
		s.report("arm_expiry", err)
		return false
	}
	s.mu.Lock()
	s.armed = !closed
	s.mu.Unlock()
	return closed
}

func (s *Session) disarm() {
	s.mu.Lock()
	armed, roomID := s.armed, s.roomID
	s.armed = false
	s.mu.Unlock()
	if armed && s.deps.Watchdog != nil {
		s.deps.Watchdog.Disarm(roomID, s.armID)
	}
}

// startCountdown drives the pre-game countdown. A nil from starts a new
// one; otherwise the countdown resumes at *from.
func (s *Session) startCountdown(ctx context.Context, roomID string, from *int) {
	s.mu.Lock()
	if s.countingDown {
		s.mu.Unlock()
		return
	}
	s.countingDown = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.countingDown = false
			s.mu.Unlock()
		}()

		var n int
		if from == nil {
			if err := s.deps.Rooms.StartCountdown(ctx, roomID, s.who.ID); err != nil {
				s.report("start_countdown", err)
				return
			}
			n = s.deps.Rooms.Machine().Rules().CountdownFrom
		} else {
			n = *from
			log.Debug().Str("room", roomID).Int("from", n).Msg("Resuming countdown")
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.deps.Clock.After(s.opts.CountdownInterval):
			}
			n--
			if n > 0 {
				if err := s.deps.Rooms.StepCountdown(ctx, roomID, s.who.ID, n); err != nil {
					s.report("step_countdown", err)
					return
				}
				continue
			}
			s.report("begin_play", s.deps.Rooms.BeginPlay(ctx, roomID, s.who.ID))
			return
		}
	}()
}

// syncPlayLoop runs the play loop exactly while the room is playing.
func (s *Session) syncPlayLoop(ctx context.Context, room *domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room.Status != domain.RoomStatusPlaying {
		if s.playing != nil {
			s.playing()
			s.playing = nil
		}
		return
	}
	if s.playing != nil {
		return
	}

	loopCtx, stop := context.WithCancel(ctx)
	s.playing = stop
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.playLoop(loopCtx, room.ID)
	}()
}

// playLoop paints the advisory clock on every beat. Seated players also
// tick the authoritative clock when they drive it or when the driver's
// lease has lapsed.
func (s *Session) playLoop(ctx context.Context, roomID string) {
	ticker := s.deps.Clock.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		s.mu.Lock()
		room := s.last
		s.mu.Unlock()
		if room == nil || room.Status != domain.RoomStatusPlaying {
			continue
		}

		now := s.deps.Clock.Now()
		s.sink.TimerTick(room.Turn, SecondsLeft(room, now))

		if room.SeatOf(s.who.ID) == domain.SeatNone {
			continue
		}
		if !isDriver(room, s.who) && !game.LeaseExpired(room, now) {
			continue
		}
		_, err := s.deps.Rooms.Tick(ctx, roomID, s.who.ID)
		if repository.IsContention(err) {
			// whatever won the race is already on the feed
			log.Debug().Err(err).Str("room", roomID).Msg("Tick lost a race")
			continue
		}
		s.report("tick", err)
	}
}

func (s *Session) startFinalize(ctx context.Context, roomID string) {
	s.mu.Lock()
	if s.finalizing {
		s.mu.Unlock()
		return
	}
	s.finalizing = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, err := s.deps.Finalizer.Finalize(ctx, roomID)
		s.report("finalize", err)

		s.mu.Lock()
		s.finalizing = false
		s.mu.Unlock()
	}()
}

// SetSecret stores the player's secret code.
func (s *Session) SetSecret(ctx context.Context, code string) error {
	return s.act(ctx, "set_secret", func(roomID string) error {
		return s.deps.Rooms.SetSecret(ctx, roomID, s.who.ID, code)
	})
}

// SubmitGuess plays the player's turn.
func (s *Session) SubmitGuess(ctx context.Context, guess string) error {
	return s.act(ctx, "guess", func(roomID string) error {
		_, err := s.deps.Rooms.SubmitGuess(ctx, roomID, s.who.ID, guess)
		return err
	})
}

// Reset starts a new match in the same room.
func (s *Session) Reset(ctx context.Context) error {
	return s.act(ctx, "reset", func(roomID string) error {
		return s.deps.Rooms.Reset(ctx, roomID, s.who.ID)
	})
}

// Leave gives up the player's seat and ends the session.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	s.leaving = true
	s.mu.Unlock()

	err := s.act(ctx, "leave", func(roomID string) error {
		_, err := s.deps.Rooms.Leave(ctx, roomID, s.who.ID)
		if errors.Is(err, domain.ErrNotSeated) {
			return nil
		}
		return err
	})
	if err != nil {
		s.mu.Lock()
		s.leaving = false
		s.mu.Unlock()
		return err
	}
	s.close(ReasonLeft)
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// act runs a player action. Stale-state guard failures are swallowed;
// anything else is returned for the caller to surface.
func (s *Session) act(ctx context.Context, op string, fn func(roomID string) error) error {
	roomID := s.RoomID()
	if roomID == "" {
		return ErrNotInRoom
	}
	err := fn(roomID)
	if ignorable(err) {
		return nil
	}
	log.Debug().Err(err).Str("room", roomID).Str("op", op).Msg("Action rejected")
	return err
}

// report surfaces background failures as notices.
func (s *Session) report(op string, err error) {
	if ignorable(err) {
		return
	}
	log.Warn().Err(err).Str("room", s.RoomID()).Str("op", op).Msg("Room operation failed")
	s.sink.Notice(ErrorCode(err), err.Error())
}

func (s *Session) close(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.sink.Closed(reason)
}

func isDriver(r *domain.Room, who domain.Identity) bool {
	return r.TickDriverID != nil && *r.TickDriverID == who.ID
}
