package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Matchup aggregates results for one unordered pair of identities.
type Matchup struct {
	Key         string                                `json:"key" gorm:"primaryKey;size:80"`
	Version     int64                                 `json:"version" gorm:"not null;default:0"`
	Wins        datatypes.JSONType[map[string]int]    `json:"wins" gorm:"type:jsonb;not null;default:'{}'"`
	Draws       int                                   `json:"draws" gorm:"not null;default:0"`
	GamesPlayed int                                   `json:"gamesPlayed" gorm:"not null;default:0"`
	Players     datatypes.JSONType[map[string]string] `json:"players" gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt   time.Time                             `json:"createdAt"`
	UpdatedAt   time.Time                             `json:"updatedAt"`
}

// PairKey is the order-independent matchup key for two identities.
func PairKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// NewMatchup returns an empty record for key.
func NewMatchup(key string) *Matchup {
	return &Matchup{
		Key:     key,
		Wins:    datatypes.NewJSONType(map[string]int{}),
		Players: datatypes.NewJSONType(map[string]string{}),
	}
}

// WinsFor returns the number of wins recorded for the identity.
func (m *Matchup) WinsFor(id uuid.UUID) int {
	return m.Wins.Data()[id.String()]
}

func (m *Matchup) Clone() *Matchup {
	if m == nil {
		return nil
	}
	c := *m
	wins := make(map[string]int, len(m.Wins.Data()))
	for k, v := range m.Wins.Data() {
		wins[k] = v
	}
	players := make(map[string]string, len(m.Players.Data()))
	for k, v := range m.Players.Data() {
		players[k] = v
	}
	c.Wins = datatypes.NewJSONType(wins)
	c.Players = datatypes.NewJSONType(players)
	return &c
}
