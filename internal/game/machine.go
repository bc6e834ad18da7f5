package game

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"gorm.io/datatypes"
)

// MaxRoomIDLength is how much of a caller-supplied room token is kept.
const MaxRoomIDLength = 24

// Rules are the constants new rooms are created with and the timing knobs
// of the cooperative drivers.
type Rules struct {
	CodeLen       int
	TurnTimeSec   int
	RoomTTL       time.Duration
	HistoryCap    int
	CountdownFrom int
	DriverLease   time.Duration
}

// DefaultRules mirrors the values rooms are created with when nothing is
// configured.
func DefaultRules() Rules {
	return Rules{
		CodeLen:       3,
		TurnTimeSec:   20,
		RoomTTL:       20 * time.Minute,
		HistoryCap:    domain.DefaultHistoryCap,
		CountdownFrom: 3,
		DriverLease:   5 * time.Second,
	}
}

// Machine applies guarded transitions to a room value. It never talks to a
// store: callers load the room inside a transaction, call one method, and
// write the room back only when the method returns nil.
type Machine struct {
	rules Rules
}

func NewMachine(rules Rules) *Machine {
	return &Machine{rules: rules}
}

func (m *Machine) Rules() Rules {
	return m.rules
}

// NormalizeRoomID trims the caller token to the stored id length.
func NormalizeRoomID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if len(id) > MaxRoomIDLength {
		id = id[:MaxRoomIDLength]
	}
	if id == "" {
		return "", domain.ErrInvalidRoomID
	}
	return id, nil
}

// NewRoom builds the document for a room opened by creator.
func (m *Machine) NewRoom(id string, creator domain.Identity, now time.Time) *domain.Room {
	createdBy := creator.ID
	p1 := creator.ID
	return &domain.Room{
		ID:          id,
		Status:      domain.RoomStatusWaiting,
		CreatedByID: &createdBy,
		P1ID:        &p1,
		P1Name:      creator.Name,
		CodeLen:     m.rules.CodeLen,
		TurnTimeSec: m.rules.TurnTimeSec,
		TimeLeft:    m.rules.TurnTimeSec,
		History:     datatypes.JSONSlice[domain.Move]{},
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.rules.RoomTTL),
	}
}

// Join seats who in the room. Creators reopen closed rooms; anyone else is
// refused. A caller who finds both seats taken becomes a spectator.
func (m *Machine) Join(r *domain.Room, who domain.Identity, now time.Time) (domain.Seat, error) {
	if r.Status == domain.RoomStatusClosed {
		if r.CreatedByID == nil || *r.CreatedByID != who.ID {
			return domain.SeatNone, domain.ErrRoomClosed
		}
		m.reopen(r, now)
	}

	seat := r.SeatOf(who.ID)
	switch {
	case seat != domain.SeatNone:
		setName(r, seat, who.Name)
	case r.P1ID == nil:
		id := who.ID
		r.P1ID = &id
		r.P1Name = who.Name
		seat = domain.SeatP1
	case r.P2ID == nil:
		id := who.ID
		r.P2ID = &id
		r.P2Name = who.Name
		seat = domain.SeatP2
	}

	if r.BothSeated() && r.Status == domain.RoomStatusWaiting {
		r.Status = domain.RoomStatusIdle
		m.clearMatch(r)
	}
	return seat, nil
}

// SetSecret stores the caller's code once per match and moves idle rooms to
// ready when both players have chosen.
func (m *Machine) SetSecret(r *domain.Room, userID uuid.UUID, code string) error {
	if r.Status != domain.RoomStatusIdle {
		return domain.ErrWrongStatus
	}
	seat := r.SeatOf(userID)
	if seat == domain.SeatNone {
		return domain.ErrNotSeated
	}
	if err := domain.ValidateCode(code, r.CodeLen); err != nil {
		return err
	}

	switch seat {
	case domain.SeatP1:
		if r.P1Ready {
			return domain.ErrSecretLocked
		}
		r.P1Secret, r.P1Ready = code, true
	case domain.SeatP2:
		if r.P2Ready {
			return domain.ErrSecretLocked
		}
		r.P2Secret, r.P2Ready = code, true
	}

	if r.P1Ready && r.P2Ready {
		r.Status = domain.RoomStatusReady
	}
	return nil
}

// StartCountdown moves a ready room into its pre-game countdown and makes
// player 1 the tick driver.
func (m *Machine) StartCountdown(r *domain.Room, userID uuid.UUID) error {
	if r.Status != domain.RoomStatusReady {
		return domain.ErrWrongStatus
	}
	if r.SeatOf(userID) != domain.SeatP1 {
		return domain.ErrNotAdmin
	}
	if r.P1Secret == "" || r.P2Secret == "" {
		return domain.ErrMissingSecrets
	}
	n := m.rules.CountdownFrom
	driver := userID
	r.Status = domain.RoomStatusCountdown
	r.Countdown = &n
	r.TickDriverID = &driver
	return nil
}

// StepCountdown records the next countdown value. Values never increase.
func (m *Machine) StepCountdown(r *domain.Room, userID uuid.UUID, n int) error {
	if r.Status != domain.RoomStatusCountdown {
		return domain.ErrWrongStatus
	}
	if !isDriver(r, userID) {
		return domain.ErrNotDriver
	}
	if n < 0 || (r.Countdown != nil && n > *r.Countdown) {
		return domain.ErrWrongStatus
	}
	r.Countdown = &n
	return nil
}

// BeginPlay ends the countdown and hands the first turn to player 1.
func (m *Machine) BeginPlay(r *domain.Room, userID uuid.UUID, now time.Time) error {
	if r.Status != domain.RoomStatusCountdown && r.Status != domain.RoomStatusReady {
		return domain.ErrWrongStatus
	}
	if r.TickDriverID != nil {
		if *r.TickDriverID != userID {
			return domain.ErrNotDriver
		}
	} else if r.SeatOf(userID) != domain.SeatP1 {
		return domain.ErrNotDriver
	}

	driver := userID
	r.Status = domain.RoomStatusPlaying
	r.Turn = domain.SeatP1
	r.History = datatypes.JSONSlice[domain.Move]{}
	r.Winner = domain.WinnerNone
	r.ResultsLogged = false
	r.ResultsLoggedAt = nil
	r.Countdown = nil
	r.TickDriverID = &driver
	m.armDeadline(r, now)
	m.renewLease(r, now)
	return nil
}

// TickOutcome describes what an authoritative tick did.
type TickOutcome int

const (
	// TickRemaining means time remains and only the display cache moved.
	TickRemaining TickOutcome = iota
	// TickHealed means a missing deadline was re-established.
	TickHealed
	// TickTimedOut means a sentinel move was recorded and the turn flipped.
	TickTimedOut
)

type TickResult struct {
	Outcome     TickOutcome
	SecondsLeft int
	TookOver    bool
	Move        *domain.Move
}

// Tick advances the authoritative clock. Only the tick driver may tick,
// unless the driver's lease has lapsed, in which case a seated player takes
// the role over.
func (m *Machine) Tick(r *domain.Room, userID uuid.UUID, now time.Time) (TickResult, error) {
	var res TickResult
	if r.Status != domain.RoomStatusPlaying {
		return res, domain.ErrWrongStatus
	}
	if !isDriver(r, userID) {
		if r.SeatOf(userID) == domain.SeatNone || !LeaseExpired(r, now) {
			return res, domain.ErrNotDriver
		}
		driver := userID
		r.TickDriverID = &driver
		res.TookOver = true
	}
	m.renewLease(r, now)

	if r.TurnDeadlineMs == nil {
		m.armDeadline(r, now)
		res.Outcome = TickHealed
		res.SecondsLeft = r.TurnTimeSec
		return res, nil
	}

	remaining := CeilSeconds(*r.TurnDeadlineMs - now.UnixMilli())
	if remaining > 0 {
		r.TimeLeft = remaining
		res.Outcome = TickRemaining
		res.SecondsLeft = remaining
		return res, nil
	}

	move := domain.Move{
		Step:    len(r.History) + 1,
		By:      r.Turn,
		Guess:   domain.TimeoutGuess,
		Timeout: true,
	}
	r.History = append(r.History, move)
	r.Turn = r.Turn.Other()
	m.armDeadline(r, now)

	res.Outcome = TickTimedOut
	res.SecondsLeft = r.TurnTimeSec
	res.Move = &move
	return res, nil
}

// Guess scores a submission from the player whose turn it is. A full match
// finishes the game; anything else passes the turn.
func (m *Machine) Guess(r *domain.Room, userID uuid.UUID, guess string, now time.Time) (domain.Move, error) {
	if r.Status != domain.RoomStatusPlaying {
		return domain.Move{}, domain.ErrWrongStatus
	}
	seat := r.SeatOf(userID)
	if seat == domain.SeatNone {
		return domain.Move{}, domain.ErrNotSeated
	}
	if r.Turn != seat {
		return domain.Move{}, domain.ErrNotYourTurn
	}
	if err := domain.ValidateCode(guess, r.CodeLen); err != nil {
		return domain.Move{}, err
	}

	bulls := domain.Score(guess, r.SecretOf(seat.Other()))
	move := domain.Move{
		Step:  len(r.History) + 1,
		By:    seat,
		Guess: guess,
		Bulls: &bulls,
	}
	r.History = append(r.History, move)

	if bulls == r.CodeLen {
		r.Status = domain.RoomStatusFinished
		r.Winner = domain.Winner(seat)
		r.Turn = domain.SeatNone
		r.TurnDeadlineMs = nil
		r.TickLeaseUntilMs = nil
		r.TimeLeft = 0
		return move, nil
	}

	r.Turn = seat.Other()
	m.armDeadline(r, now)
	return move, nil
}

// Reset returns the room to the pre-secret phase. Player 1 only.
func (m *Machine) Reset(r *domain.Room, userID uuid.UUID) error {
	if r.SeatOf(userID) != domain.SeatP1 {
		return domain.ErrNotAdmin
	}
	switch r.Status {
	case domain.RoomStatusFinished, domain.RoomStatusIdle, domain.RoomStatusPlaying:
	default:
		return domain.ErrWrongStatus
	}
	if r.BothSeated() {
		r.Status = domain.RoomStatusIdle
	} else {
		r.Status = domain.RoomStatusWaiting
	}
	m.clearMatch(r)
	return nil
}

// Leave vacates the caller's seat. Player 1 leaving closes the room.
func (m *Machine) Leave(r *domain.Room, userID uuid.UUID, now time.Time) (domain.Seat, error) {
	if r.Status == domain.RoomStatusClosed {
		return domain.SeatNone, domain.ErrWrongStatus
	}
	seat := r.SeatOf(userID)
	switch seat {
	case domain.SeatP1:
		m.close(r, now)
	case domain.SeatP2:
		r.P2ID = nil
		r.P2Name = ""
		r.P2Secret = ""
		r.P2Ready = false
		r.Status = domain.RoomStatusWaiting
		r.Turn = domain.SeatNone
		r.Countdown = nil
		r.TickDriverID = nil
		r.TurnDeadlineMs = nil
		r.TickLeaseUntilMs = nil
		r.TimeLeft = r.TurnTimeSec
	default:
		return domain.SeatNone, domain.ErrNotSeated
	}
	return seat, nil
}

// Expire closes a room whose lifetime has run out. Only the admin does this.
func (m *Machine) Expire(r *domain.Room, userID uuid.UUID, now time.Time) error {
	if r.Status == domain.RoomStatusClosed {
		return domain.ErrWrongStatus
	}
	if !r.IsAdmin(userID) {
		return domain.ErrNotAdmin
	}
	if !m.Expired(r, now) {
		return domain.ErrWrongStatus
	}
	m.close(r, now)
	return nil
}

// ExpiresAt is the instant the room's lifetime ends.
func (m *Machine) ExpiresAt(r *domain.Room) time.Time {
	if !r.ExpiresAt.IsZero() {
		return r.ExpiresAt
	}
	return r.CreatedAt.Add(m.rules.RoomTTL)
}

func (m *Machine) Expired(r *domain.Room, now time.Time) bool {
	return !now.Before(m.ExpiresAt(r))
}

// LeaseExpired reports whether the tick driver has stopped renewing.
func LeaseExpired(r *domain.Room, now time.Time) bool {
	if r.TickDriverID == nil || r.TickLeaseUntilMs == nil {
		return true
	}
	return now.UnixMilli() >= *r.TickLeaseUntilMs
}

// CeilSeconds converts a millisecond span into whole seconds, rounding up
// and clamping at zero.
func CeilSeconds(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}

func (m *Machine) armDeadline(r *domain.Room, now time.Time) {
	deadline := now.Add(time.Duration(r.TurnTimeSec) * time.Second).UnixMilli()
	r.TurnDeadlineMs = &deadline
	r.TimeLeft = r.TurnTimeSec
}

func (m *Machine) renewLease(r *domain.Room, now time.Time) {
	until := now.Add(m.rules.DriverLease).UnixMilli()
	r.TickLeaseUntilMs = &until
}

func (m *Machine) clearMatch(r *domain.Room) {
	r.P1Secret, r.P2Secret = "", ""
	r.P1Ready, r.P2Ready = false, false
	r.Turn = domain.SeatNone
	r.History = datatypes.JSONSlice[domain.Move]{}
	r.Winner = domain.WinnerNone
	r.TimeLeft = r.TurnTimeSec
	r.Countdown = nil
	r.TickDriverID = nil
	r.TurnDeadlineMs = nil
	r.TickLeaseUntilMs = nil
	r.ResultsLogged = false
	r.ResultsLoggedAt = nil
}

func (m *Machine) reopen(r *domain.Room, now time.Time) {
	r.Status = domain.RoomStatusWaiting
	r.P2ID = nil
	r.P2Name = ""
	r.ClosedAt = nil
	r.ExpiresAt = now.Add(m.rules.RoomTTL)
	m.clearMatch(r)
}

func (m *Machine) close(r *domain.Room, now time.Time) {
	closedAt := now
	r.Status = domain.RoomStatusClosed
	r.ClosedAt = &closedAt
	r.Turn = domain.SeatNone
	r.TurnDeadlineMs = nil
	r.TickLeaseUntilMs = nil
	r.Countdown = nil
}

func isDriver(r *domain.Room, userID uuid.UUID) bool {
	return r.TickDriverID != nil && *r.TickDriverID == userID
}

func setName(r *domain.Room, seat domain.Seat, name string) {
	if name == "" {
		return
	}
	switch seat {
	case domain.SeatP1:
		r.P1Name = name
	case domain.SeatP2:
		r.P2Name = name
	}
}
