package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/game"
	"github.com/jovywahba/jovnumbergames/internal/repository"
)

// Store is an in-process optimistic document store. It keeps one version
// counter per document and validates written versions and room
// invariants at commit.
type Store struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	rooms    map[string]*domain.Room
	matchups map[string]*domain.Matchup
	profiles map[uuid.UUID]*domain.Profile
	feed     *repository.Feed

	// beforeCommit runs after fn and before validation. Tests use it to
	// interleave transactions.
	beforeCommit func()
}

func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:    clock,
		rooms:    make(map[string]*domain.Room),
		matchups: make(map[string]*domain.Matchup),
		profiles: make(map[uuid.UUID]*domain.Profile),
		feed:     repository.NewFeed(),
	}
}

func (s *Store) RunTransaction(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		store:    s,
		now:      s.clock.Now(),
		rooms:    make(map[string]*domain.Room),
		matchups: make(map[string]*domain.Matchup),
		profiles: make(map[uuid.UUID]*domain.Profile),
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	hook := s.beforeCommit
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	committed, err := s.commit(tx)
	if err != nil {
		return err
	}
	for _, room := range committed {
		s.feed.Publish(room)
	}
	return nil
}

func (s *Store) commit(tx *memTx) ([]*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, room := range tx.rooms {
		var current int64
		cur, ok := s.rooms[id]
		if ok {
			current = cur.Version
		}
		if err := checkVersion(ok, current, room.Version); err != nil {
			return nil, fmt.Errorf("room %s: %w", id, err)
		}
	}
	for id, room := range tx.rooms {
		if err := game.CheckInvariants(room); err != nil {
			return nil, fmt.Errorf("room %s: %w", id, err)
		}
	}
	for key, m := range tx.matchups {
		var current int64
		cur, ok := s.matchups[key]
		if ok {
			current = cur.Version
		}
		if err := checkVersion(ok, current, m.Version); err != nil {
			return nil, fmt.Errorf("matchup %s: %w", key, err)
		}
	}
	for id, p := range tx.profiles {
		var current int64
		cur, ok := s.profiles[id]
		if ok {
			current = cur.Version
		}
		if err := checkVersion(ok, current, p.Version); err != nil {
			return nil, fmt.Errorf("profile %s: %w", id, err)
		}
	}

	committed := make([]*domain.Room, 0, len(tx.rooms))
	for id, room := range tx.rooms {
		next := room.Clone()
		next.Version++
		if next.CreatedAt.IsZero() {
			next.CreatedAt = tx.now
		}
		next.UpdatedAt = tx.now
		s.rooms[id] = next
		committed = append(committed, next.Clone())
	}
	for key, m := range tx.matchups {
		next := m.Clone()
		next.Version++
		if next.CreatedAt.IsZero() {
			next.CreatedAt = tx.now
		}
		next.UpdatedAt = tx.now
		s.matchups[key] = next
	}
	for id, p := range tx.profiles {
		next := p.Clone()
		next.Version++
		if next.CreatedAt.IsZero() {
			next.CreatedAt = tx.now
		}
		next.UpdatedAt = tx.now
		s.profiles[id] = next
	}
	return committed, nil
}

func checkVersion(exists bool, current, base int64) error {
	if !exists {
		if base != 0 {
			return repository.ErrContention
		}
		return nil
	}
	if base == 0 || current != base {
		return repository.ErrContention
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return room.Clone(), nil
}

func (s *Store) GetMatchup(ctx context.Context, key string) (*domain.Matchup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matchups[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) Subscribe(ctx context.Context, roomID string) (<-chan repository.Snapshot, error) {
	ch := s.feed.Subscribe(ctx, roomID)
	room, err := s.GetRoom(ctx, roomID)
	switch {
	case err == nil:
		s.feed.Publish(room)
	case err != repository.ErrNotFound:
		return nil, err
	}
	return ch, nil
}

// Close ends every subscription.
func (s *Store) Close() {
	s.feed.Close()
}

// SetBeforeCommit installs a hook that runs between a transaction body and
// its commit.
func (s *Store) SetBeforeCommit(hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCommit = hook
}

type memTx struct {
	store    *Store
	now      time.Time
	rooms    map[string]*domain.Room
	matchups map[string]*domain.Matchup
	profiles map[uuid.UUID]*domain.Profile
}

func (t *memTx) Now() time.Time {
	return t.now
}

func (t *memTx) GetRoom(id string) (*domain.Room, error) {
	if room, ok := t.rooms[id]; ok {
		return room.Clone(), nil
	}
	return t.store.GetRoom(context.Background(), id)
}

func (t *memTx) SetRoom(room *domain.Room) error {
	t.rooms[room.ID] = room.Clone()
	return nil
}

func (t *memTx) GetMatchup(key string) (*domain.Matchup, error) {
	if m, ok := t.matchups[key]; ok {
		return m.Clone(), nil
	}
	return t.store.GetMatchup(context.Background(), key)
}

func (t *memTx) SetMatchup(m *domain.Matchup) error {
	t.matchups[m.Key] = m.Clone()
	return nil
}

func (t *memTx) GetProfile(userID uuid.UUID) (*domain.Profile, error) {
	if p, ok := t.profiles[userID]; ok {
		return p.Clone(), nil
	}
	return t.store.GetProfile(context.Background(), userID)
}

func (t *memTx) SetProfile(p *domain.Profile) error {
	t.profiles[p.UserID] = p.Clone()
	return nil
}
