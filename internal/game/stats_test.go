package game_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishedRoom(t *testing.T, winner domain.Winner) *domain.Room {
	t.Helper()
	f := playing(t)
	f.room.Status = domain.RoomStatusFinished
	f.room.Winner = winner
	f.room.Turn = domain.SeatNone
	return f.room
}

func TestOutcomeOf(t *testing.T) {
	room := finishedRoom(t, domain.WinnerP2)
	o, ok := game.OutcomeOf(room, t0)
	require.True(t, ok)
	assert.Equal(t, *room.P2ID, *o.WinnerID())
	assert.Equal(t, "Alice", o.P1Name)

	room.Status = domain.RoomStatusPlaying
	_, ok = game.OutcomeOf(room, t0)
	assert.False(t, ok)

	draw := finishedRoom(t, domain.WinnerDraw)
	o, ok = game.OutcomeOf(draw, t0)
	require.True(t, ok)
	assert.Nil(t, o.WinnerID())
}

func TestRecordMatchup(t *testing.T) {
	room := finishedRoom(t, domain.WinnerP2)
	o, _ := game.OutcomeOf(room, t0)
	m := domain.NewMatchup(domain.PairKey(o.P1ID, o.P2ID))

	game.RecordMatchup(m, o)
	game.RecordMatchup(m, o)
	o.Winner = domain.WinnerDraw
	game.RecordMatchup(m, o)

	assert.Equal(t, 0, m.WinsFor(o.P1ID))
	assert.Equal(t, 2, m.WinsFor(o.P2ID))
	assert.Equal(t, 1, m.Draws)
	assert.Equal(t, 3, m.GamesPlayed)
	assert.Equal(t, "Bob", m.Players.Data()[o.P2ID.String()])
}

func TestRecordOutcome(t *testing.T) {
	room := finishedRoom(t, domain.WinnerP1)
	o, _ := game.OutcomeOf(room, t0)

	winner := &domain.Profile{UserID: o.P1ID}
	loser := &domain.Profile{UserID: o.P2ID}
	game.RecordOutcome(winner, o, domain.SeatP1, 10)
	game.RecordOutcome(loser, o, domain.SeatP2, 10)

	assert.Equal(t, 1, winner.TotalGames)
	assert.Equal(t, 1, winner.TotalWins)
	assert.Zero(t, winner.TotalLosses)
	assert.Equal(t, "Alice", winner.Name)
	require.Len(t, winner.Games, 1)
	assert.True(t, winner.Games[0].MeWon)
	assert.Equal(t, o.P2ID, winner.Games[0].OpponentID)
	assert.Equal(t, room.ID, winner.Games[0].RoomID)

	assert.Equal(t, 1, loser.TotalLosses)
	assert.False(t, loser.Games[0].MeWon)
	assert.Equal(t, "Alice", loser.Games[0].OpponentName)

	t.Run("draw counts as neither", func(t *testing.T) {
		p := &domain.Profile{UserID: o.P1ID}
		d := o
		d.Winner = domain.WinnerDraw
		game.RecordOutcome(p, d, domain.SeatP1, 10)
		assert.Equal(t, 1, p.TotalGames)
		assert.Zero(t, p.TotalWins)
		assert.Zero(t, p.TotalLosses)
	})
}

func TestRecordOutcomeRefreshesName(t *testing.T) {
	room := finishedRoom(t, domain.WinnerP1)
	o, _ := game.OutcomeOf(room, t0)
	p := &domain.Profile{UserID: o.P1ID}

	game.RecordOutcome(p, o, domain.SeatP1, 10)
	assert.Equal(t, "Alice", p.Name)

	o.P1Name = "Alicia"
	game.RecordOutcome(p, o, domain.SeatP1, 10)
	assert.Equal(t, "Alicia", p.Name)
}

func TestRecordOutcomeDropsOldest(t *testing.T) {
	room := finishedRoom(t, domain.WinnerP1)
	o, _ := game.OutcomeOf(room, t0)
	p := &domain.Profile{UserID: o.P1ID}

	const historyCap = 5
	for i := 0; i < historyCap+3; i++ {
		o.RoomID = "room-" + string(rune('a'+i))
		o.At = t0.Add(time.Duration(i) * time.Minute)
		game.RecordOutcome(p, o, domain.SeatP1, historyCap)
	}

	require.Len(t, p.Games, historyCap)
	assert.Equal(t, "room-d", p.Games[0].RoomID)
	assert.Equal(t, "room-h", p.Games[historyCap-1].RoomID)
	assert.Equal(t, historyCap+3, p.TotalGames)
}

func TestCheckInvariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *domain.Room)
	}{
		{name: "playing without turn", mutate: func(r *domain.Room) { r.Turn = domain.SeatNone }},
		{name: "playing without deadline", mutate: func(r *domain.Room) { r.TurnDeadlineMs = nil }},
		{name: "waiting with turn", mutate: func(r *domain.Room) { r.Status = domain.RoomStatusWaiting }},
		{name: "finished without winner", mutate: func(r *domain.Room) {
			r.Status = domain.RoomStatusFinished
			r.Turn = domain.SeatNone
		}},
		{name: "p2 without p1", mutate: func(r *domain.Room) { r.P1ID = nil }},
		{name: "step gap", mutate: func(r *domain.Room) {
			r.History = append(r.History, domain.Move{Step: 2, By: domain.SeatP1, Guess: "123", Bulls: intPtr(1)})
		}},
		{name: "timeout with score", mutate: func(r *domain.Room) {
			r.History = append(r.History, domain.Move{Step: 1, By: domain.SeatP1, Guess: domain.TimeoutGuess, Bulls: intPtr(0), Timeout: true})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := playing(t)
			require.NoError(t, game.CheckInvariants(f.room))
			tt.mutate(f.room)
			assert.ErrorIs(t, game.CheckInvariants(f.room), game.ErrInvariant)
		})
	}

	t.Run("spectator id is irrelevant", func(t *testing.T) {
		f := playing(t)
		f.room.CreatedByID = ptr(uuid.New())
		assert.NoError(t, game.CheckInvariants(f.room))
	})
}

func ptr[T any](v T) *T { return &v }
