package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RoomStatus is the single source of truth for a room's phase.
type RoomStatus string

const (
	RoomStatusWaiting   RoomStatus = "waiting"
	RoomStatusIdle      RoomStatus = "idle"
	RoomStatusReady     RoomStatus = "ready"
	RoomStatusCountdown RoomStatus = "countdown"
	RoomStatusPlaying   RoomStatus = "playing"
	RoomStatusFinished  RoomStatus = "finished"
	RoomStatusClosed    RoomStatus = "closed"
)

// Seat is the p1/p2 role within a room. SeatNone stands for "nobody".
type Seat string

const (
	SeatNone Seat = ""
	SeatP1   Seat = "p1"
	SeatP2   Seat = "p2"
)

// Other returns the opposing seat.
func (s Seat) Other() Seat {
	switch s {
	case SeatP1:
		return SeatP2
	case SeatP2:
		return SeatP1
	}
	return SeatNone
}

type Winner string

const (
	WinnerNone Winner = ""
	WinnerP1   Winner = "p1"
	WinnerP2   Winner = "p2"
	WinnerDraw Winner = "draw"
)

// Seat returns the winning seat, or SeatNone for draws and unfinished games.
func (w Winner) Seat() Seat {
	switch w {
	case WinnerP1:
		return SeatP1
	case WinnerP2:
		return SeatP2
	}
	return SeatNone
}

// TimeoutGuess is the placeholder guess recorded for a sentinel move.
const TimeoutGuess = "—"

// Move is one entry of a room's guess history.
type Move struct {
	Step    int    `json:"step"`
	By      Seat   `json:"by"`
	Guess   string `json:"guess"`
	Bulls   *int   `json:"bulls"` // nil for timeouts
	Timeout bool   `json:"timeout,omitempty"`
}

// Room is the shared document describing one match. Every mutation goes
// through a store transaction that checks Version.
type Room struct {
	ID      string `json:"id" gorm:"primaryKey;size:24"`
	Version int64  `json:"version" gorm:"not null;default:0"`

	Status      RoomStatus `json:"status" gorm:"type:varchar(16);not null;default:'waiting'"`
	CreatedByID *uuid.UUID `json:"createdById" gorm:"type:uuid"`
	P1ID        *uuid.UUID `json:"p1Id" gorm:"type:uuid"`
	P2ID        *uuid.UUID `json:"p2Id" gorm:"type:uuid"`
	P1Name      string     `json:"p1Name"`
	P2Name      string     `json:"p2Name"`

	CodeLen     int `json:"codeLen" gorm:"not null;default:3"`
	TurnTimeSec int `json:"turnTimeSec" gorm:"not null;default:20"`

	P1Secret string `json:"p1Secret"`
	P2Secret string `json:"p2Secret"`
	P1Ready  bool   `json:"p1Ready" gorm:"not null;default:false"`
	P2Ready  bool   `json:"p2Ready" gorm:"not null;default:false"`

	Turn             Seat       `json:"turn" gorm:"type:varchar(4)"`
	TurnDeadlineMs   *int64     `json:"turnDeadlineMs"`
	TimeLeft         int        `json:"timeLeft"`
	TickDriverID     *uuid.UUID `json:"tickDriverId" gorm:"type:uuid"`
	TickLeaseUntilMs *int64     `json:"tickLeaseUntilMs"`
	Countdown        *int       `json:"countdown"`

	History datatypes.JSONSlice[Move] `json:"history" gorm:"type:jsonb;not null;default:'[]'"`
	Winner  Winner                    `json:"winner" gorm:"type:varchar(8)"`

	ResultsLogged   bool       `json:"resultsLogged" gorm:"not null;default:false"`
	ResultsLoggedAt *time.Time `json:"resultsLoggedAt"`

	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	ClosedAt  *time.Time `json:"closedAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// SeatOf reports which seat the user occupies.
func (r *Room) SeatOf(userID uuid.UUID) Seat {
	if r.P1ID != nil && *r.P1ID == userID {
		return SeatP1
	}
	if r.P2ID != nil && *r.P2ID == userID {
		return SeatP2
	}
	return SeatNone
}

// Occupant returns the identity seated at s.
func (r *Room) Occupant(s Seat) *uuid.UUID {
	switch s {
	case SeatP1:
		return r.P1ID
	case SeatP2:
		return r.P2ID
	}
	return nil
}

// NameOf returns the denormalized display name for a seat.
func (r *Room) NameOf(s Seat) string {
	switch s {
	case SeatP1:
		return r.P1Name
	case SeatP2:
		return r.P2Name
	}
	return ""
}

// SecretOf returns the code chosen by the player in seat s.
func (r *Room) SecretOf(s Seat) string {
	switch s {
	case SeatP1:
		return r.P1Secret
	case SeatP2:
		return r.P2Secret
	}
	return ""
}

// IsAdmin reports whether the user administers the room. Rooms without a
// recorded creator fall back to their first seat.
func (r *Room) IsAdmin(userID uuid.UUID) bool {
	if r.CreatedByID != nil {
		return *r.CreatedByID == userID
	}
	return r.SeatOf(userID) == SeatP1
}

// BothSeated reports whether both seats are occupied.
func (r *Room) BothSeated() bool {
	return r.P1ID != nil && r.P2ID != nil
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.CreatedByID = cloneUUID(r.CreatedByID)
	c.P1ID = cloneUUID(r.P1ID)
	c.P2ID = cloneUUID(r.P2ID)
	c.TickDriverID = cloneUUID(r.TickDriverID)
	c.TurnDeadlineMs = cloneInt64(r.TurnDeadlineMs)
	c.TickLeaseUntilMs = cloneInt64(r.TickLeaseUntilMs)
	c.ResultsLoggedAt = cloneTime(r.ResultsLoggedAt)
	c.ClosedAt = cloneTime(r.ClosedAt)
	if r.Countdown != nil {
		v := *r.Countdown
		c.Countdown = &v
	}
	if r.History != nil {
		c.History = make(datatypes.JSONSlice[Move], len(r.History))
		for i, m := range r.History {
			if m.Bulls != nil {
				b := *m.Bulls
				m.Bulls = &b
			}
			c.History[i] = m
		}
	}
	return &c
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
