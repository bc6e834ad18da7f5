package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PasswordHash string    `json:"-" gorm:"not null"`
	DisplayName  string    `json:"displayName" gorm:"uniqueIndex;not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type UserSession struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID           uuid.UUID `json:"userId" gorm:"type:uuid;not null"`
	RefreshTokenHash string    `json:"-" gorm:"not null"`
	ExpiresAt        time.Time `json:"expiresAt" gorm:"not null"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Identity is what the identity provider hands to a client: a stable id and
// the current display name.
type Identity struct {
	ID   uuid.UUID
	Name string
}

// DefaultHistoryCap bounds Profile.Games.
const DefaultHistoryCap = 200

// GameRecord is one line of a player's rolling outcome log.
type GameRecord struct {
	OpponentID   uuid.UUID  `json:"opponentId"`
	OpponentName string     `json:"opponentName"`
	RoomID       string     `json:"roomId"`
	MeWon        bool       `json:"meWon"`
	WinnerID     *uuid.UUID `json:"winnerId"`
	At           time.Time  `json:"at"`
}

// Profile holds per-identity aggregate statistics.
type Profile struct {
	UserID      uuid.UUID                       `json:"userId" gorm:"type:uuid;primaryKey"`
	Version     int64                           `json:"version" gorm:"not null;default:0"`
	Name        string                          `json:"name"`
	TotalWins   int                             `json:"totalWins" gorm:"not null;default:0"`
	TotalLosses int                             `json:"totalLosses" gorm:"not null;default:0"`
	TotalGames  int                             `json:"totalGames" gorm:"not null;default:0"`
	Games       datatypes.JSONSlice[GameRecord] `json:"games" gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt   time.Time                       `json:"createdAt"`
	UpdatedAt   time.Time                       `json:"updatedAt"`
}

// TableName keeps profiles apart from the credential table.
func (Profile) TableName() string {
	return "user_profiles"
}

func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Games != nil {
		c.Games = make(datatypes.JSONSlice[GameRecord], len(p.Games))
		for i, g := range p.Games {
			g.WinnerID = cloneUUID(g.WinnerID)
			c.Games[i] = g
		}
	}
	return &c
}
