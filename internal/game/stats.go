package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"gorm.io/datatypes"
)

// Outcome is the result of one finished match from the room's point of view.
type Outcome struct {
	RoomID string
	P1ID   uuid.UUID
	P2ID   uuid.UUID
	P1Name string
	P2Name string
	Winner domain.Winner
	At     time.Time
}

// OutcomeOf extracts the finished match result. Rooms without two seated
// players have nothing to record.
func OutcomeOf(r *domain.Room, at time.Time) (Outcome, bool) {
	if r.Status != domain.RoomStatusFinished || !r.BothSeated() {
		return Outcome{}, false
	}
	return Outcome{
		RoomID: r.ID,
		P1ID:   *r.P1ID,
		P2ID:   *r.P2ID,
		P1Name: displayName(r.P1Name, "P1"),
		P2Name: displayName(r.P2Name, "P2"),
		Winner: r.Winner,
		At:     at,
	}, true
}

// WinnerID returns the identity that won, or nil for a draw.
func (o Outcome) WinnerID() *uuid.UUID {
	var id uuid.UUID
	switch o.Winner {
	case domain.WinnerP1:
		id = o.P1ID
	case domain.WinnerP2:
		id = o.P2ID
	default:
		return nil
	}
	return &id
}

// RecordMatchup adds the outcome to the pair's aggregate.
func RecordMatchup(m *domain.Matchup, o Outcome) {
	wins := m.Wins.Data()
	if wins == nil {
		wins = map[string]int{}
	}
	p1, p2 := o.P1ID.String(), o.P2ID.String()
	if _, ok := wins[p1]; !ok {
		wins[p1] = 0
	}
	if _, ok := wins[p2]; !ok {
		wins[p2] = 0
	}
	if w := o.WinnerID(); w != nil {
		wins[w.String()]++
	} else if o.Winner == domain.WinnerDraw {
		m.Draws++
	}
	m.GamesPlayed = wins[p1] + wins[p2] + m.Draws
	m.Wins = datatypes.NewJSONType(wins)

	players := m.Players.Data()
	if players == nil {
		players = map[string]string{}
	}
	players[p1] = o.P1Name
	players[p2] = o.P2Name
	m.Players = datatypes.NewJSONType(players)
}

// RecordOutcome appends the outcome to the profile of the player in seat
// and updates lifetime totals and the display name. The games log keeps at
// most historyCap entries, dropping the oldest.
func RecordOutcome(p *domain.Profile, o Outcome, seat domain.Seat, historyCap int) {
	if historyCap <= 0 {
		historyCap = domain.DefaultHistoryCap
	}
	opponentID, opponentName := o.P2ID, o.P2Name
	myName := o.P1Name
	if seat == domain.SeatP2 {
		opponentID, opponentName = o.P1ID, o.P1Name
		myName = o.P2Name
	}
	meWon := o.Winner.Seat() == seat

	games := p.Games
	if len(games) >= historyCap {
		games = games[len(games)-historyCap+1:]
	}
	next := make(datatypes.JSONSlice[domain.GameRecord], 0, len(games)+1)
	next = append(next, games...)
	next = append(next, domain.GameRecord{
		OpponentID:   opponentID,
		OpponentName: opponentName,
		RoomID:       o.RoomID,
		MeWon:        meWon,
		WinnerID:     o.WinnerID(),
		At:           o.At,
	})
	p.Games = next

	p.TotalGames++
	switch {
	case meWon:
		p.TotalWins++
	case o.Winner != domain.WinnerDraw:
		p.TotalLosses++
	}
	p.Name = myName
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
