package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jovywahba/jovnumbergames/internal/domain"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrContention marks a transaction rejected because a document it
	// writes changed after it was read.
	ErrContention = errors.New("transaction contention")
)

// IsContention reports whether err is a conditional-write rejection.
func IsContention(err error) bool {
	return errors.Is(err, ErrContention)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.UserSession) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// Tx is one optimistic transaction. Reads see the transaction's own writes.
// Writes are buffered and applied at commit only if every written document
// still carries the Version it was read at; new documents carry Version 0.
type Tx interface {
	// Now is the store clock, fixed for the life of the transaction.
	Now() time.Time

	GetRoom(id string) (*domain.Room, error)
	SetRoom(room *domain.Room) error

	GetMatchup(key string) (*domain.Matchup, error)
	SetMatchup(m *domain.Matchup) error

	GetProfile(userID uuid.UUID) (*domain.Profile, error)
	SetProfile(p *domain.Profile) error
}

// Snapshot is one delivery of a room subscription: either the latest
// committed room or a feed error.
type Snapshot struct {
	Room *domain.Room
	Err  error
}

// Store is the transactional document store shared by every client.
type Store interface {
	// RunTransaction runs fn and commits its writes atomically. If fn
	// returns an error nothing is written and that error is returned. A
	// conflicting concurrent commit yields an error wrapping ErrContention.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	GetRoom(ctx context.Context, id string) (*domain.Room, error)
	GetMatchup(ctx context.Context, key string) (*domain.Matchup, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)

	// Subscribe delivers the current room and every later committed state
	// until ctx is done, then closes the channel. Slow readers only see the
	// latest snapshot; versions never go backwards.
	Subscribe(ctx context.Context, roomID string) (<-chan Snapshot, error)
}

type Repositories struct {
	User    UserRepository
	Session SessionRepository
	Store   Store
}
