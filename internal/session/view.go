package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/game"
)

// Role is how the viewer relates to the room.
type Role string

const (
	RoleP1        Role = "p1"
	RoleP2        Role = "p2"
	RoleSpectator Role = "spectator"
)

// View is everything a client renders for one room snapshot. It is derived
// from the room alone and never written back.
type View struct {
	RoomID        string            `json:"roomId"`
	Version       int64             `json:"version"`
	Status        domain.RoomStatus `json:"status"`
	Role          Role              `json:"role"`
	IsAdmin       bool              `json:"isAdmin"`
	IsDriver      bool              `json:"isDriver"`
	CodeLen       int               `json:"codeLen"`
	TurnTimeSec   int               `json:"turnTimeSec"`
	Players       int               `json:"players"`
	P1            Board             `json:"p1"`
	P2            Board             `json:"p2"`
	Turn          domain.Seat       `json:"turn,omitempty"`
	TurnName      string            `json:"turnName,omitempty"`
	SecondsLeft   *int              `json:"secondsLeft"`
	Countdown     *int              `json:"countdown"`
	Winner        domain.Winner     `json:"winner,omitempty"`
	WinnerName    string            `json:"winnerName,omitempty"`
	CanSetSecret  bool              `json:"canSetSecret"`
	CanGuess      bool              `json:"canGuess"`
	CanReset      bool              `json:"canReset"`
	ResultsLogged bool              `json:"resultsLogged"`
	ExpiresAt     time.Time         `json:"expiresAt"`
}

// Board is one seat's side of the table.
type Board struct {
	UserID *uuid.UUID  `json:"userId"`
	Name   string      `json:"name"`
	Ready  bool        `json:"ready"`
	Secret string      `json:"secret,omitempty"`
	Moves  []BoardMove `json:"moves"`
}

// BoardMove is a history entry numbered within its seat.
type BoardMove struct {
	Step    int    `json:"step"`
	Guess   string `json:"guess"`
	Bulls   *int   `json:"bulls"`
	Timeout bool   `json:"timeout,omitempty"`
}

// DeriveView computes what viewer sees of r at now. A seat's secret is
// shown to its owner, and to everyone once the match is finished.
func DeriveView(r *domain.Room, viewer uuid.UUID, now time.Time, expiresAt time.Time) View {
	seat := r.SeatOf(viewer)
	v := View{
		RoomID:        r.ID,
		Version:       r.Version,
		Status:        r.Status,
		Role:          roleOf(seat),
		IsAdmin:       r.IsAdmin(viewer),
		IsDriver:      r.TickDriverID != nil && *r.TickDriverID == viewer,
		CodeLen:       r.CodeLen,
		TurnTimeSec:   r.TurnTimeSec,
		Countdown:     r.Countdown,
		ResultsLogged: r.ResultsLogged,
		ExpiresAt:     expiresAt,
	}
	if r.P1ID != nil {
		v.Players++
	}
	if r.P2ID != nil {
		v.Players++
	}

	finished := r.Status == domain.RoomStatusFinished
	v.P1 = board(r, domain.SeatP1, seat == domain.SeatP1 || finished)
	v.P2 = board(r, domain.SeatP2, seat == domain.SeatP2 || finished)

	if r.Status == domain.RoomStatusPlaying {
		v.Turn = r.Turn
		v.TurnName = displayName(r, r.Turn)
		left := SecondsLeft(r, now)
		v.SecondsLeft = &left
		v.CanGuess = seat != domain.SeatNone && seat == r.Turn
	}
	if finished {
		v.Winner = r.Winner
		if r.Winner == domain.WinnerDraw {
			v.WinnerName = "Draw"
		} else {
			v.WinnerName = displayName(r, r.Winner.Seat())
		}
	}

	v.CanSetSecret = r.Status == domain.RoomStatusIdle && seat != domain.SeatNone && r.SecretOf(seat) == ""
	v.CanReset = seat == domain.SeatP1 && (finished || r.Status == domain.RoomStatusIdle || r.Status == domain.RoomStatusPlaying)
	return v
}

// SecondsLeft is the advisory time remaining in the current turn, derived
// from the deadline. Rooms without a deadline report the cached value.
func SecondsLeft(r *domain.Room, now time.Time) int {
	if r.TurnDeadlineMs == nil {
		return r.TimeLeft
	}
	return game.CeilSeconds(*r.TurnDeadlineMs - now.UnixMilli())
}

func roleOf(s domain.Seat) Role {
	switch s {
	case domain.SeatP1:
		return RoleP1
	case domain.SeatP2:
		return RoleP2
	}
	return RoleSpectator
}

func displayName(r *domain.Room, s domain.Seat) string {
	if name := r.NameOf(s); name != "" {
		return name
	}
	switch s {
	case domain.SeatP1:
		return "Player 1"
	case domain.SeatP2:
		return "Player 2"
	}
	return ""
}

func board(r *domain.Room, s domain.Seat, reveal bool) Board {
	b := Board{
		UserID: r.Occupant(s),
		Name:   displayName(r, s),
		Moves:  []BoardMove{},
	}
	if s == domain.SeatP1 {
		b.Ready = r.P1Ready
	} else {
		b.Ready = r.P2Ready
	}
	if reveal {
		b.Secret = r.SecretOf(s)
	}
	for _, m := range r.History {
		if m.By != s {
			continue
		}
		b.Moves = append(b.Moves, BoardMove{
			Step:    len(b.Moves) + 1,
			Guess:   m.Guess,
			Bulls:   m.Bulls,
			Timeout: m.Timeout,
		})
	}
	return b
}
