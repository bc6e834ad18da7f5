package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RoomChannel is the LISTEN/NOTIFY channel carrying committed room ids.
const RoomChannel = "room_updates"

// Postgres error codes treated as contention.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Store keeps rooms, matchups and profiles as versioned rows. Writes are
// conditional on the version read, so a stale transaction updates zero rows
// and is rejected.
type Store struct {
	db   *gorm.DB
	feed *repository.Feed
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, feed: repository.NewFeed()}
}

func (s *Store) RunTransaction(ctx context.Context, fn func(tx repository.Tx) error) error {
	var committed []*domain.Room
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		tx := &pgTx{
			db:       gtx,
			rooms:    make(map[string]*domain.Room),
			matchups: make(map[string]*domain.Matchup),
			profiles: make(map[uuid.UUID]*domain.Profile),
		}
		if err := fn(tx); err != nil {
			return err
		}
		rooms, err := tx.commit()
		if err != nil {
			return err
		}
		committed = rooms
		return nil
	})
	if err != nil {
		return classify(err)
	}
	for _, room := range committed {
		s.feed.Publish(room)
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	if err := s.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (s *Store) GetMatchup(ctx context.Context, key string) (*domain.Matchup, error) {
	var m domain.Matchup
	if err := s.db.WithContext(ctx).First(&m, "key = ?", key).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile
	if err := s.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) Subscribe(ctx context.Context, roomID string) (<-chan repository.Snapshot, error) {
	ch := s.feed.Subscribe(ctx, roomID)
	room, err := s.GetRoom(ctx, roomID)
	switch {
	case err == nil:
		s.feed.Publish(room)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	return ch, nil
}

// Refresh re-reads a room and delivers it to local subscribers. The
// listener calls it for every notification.
func (s *Store) Refresh(ctx context.Context, roomID string) error {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	s.feed.Publish(room)
	return nil
}

// Feed exposes the subscription fan-out so the listener can report errors.
func (s *Store) Feed() *repository.Feed {
	return s.feed
}

func (s *Store) Close() {
	s.feed.Close()
}

func classify(err error) error {
	if errors.Is(err, repository.ErrContention) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %s", repository.ErrContention, pgErr.Message)
		}
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}

type pgTx struct {
	db       *gorm.DB
	now      *time.Time
	rooms    map[string]*domain.Room
	matchups map[string]*domain.Matchup
	profiles map[uuid.UUID]*domain.Profile
}

// Now reads the database clock once; Postgres keeps now() fixed for the
// rest of the transaction.
func (t *pgTx) Now() time.Time {
	if t.now != nil {
		return *t.now
	}
	var now time.Time
	if err := t.db.Raw("SELECT now()").Row().Scan(&now); err != nil {
		log.Warn().Err(err).Msg("Failed to read database clock")
		now = time.Now()
	}
	now = now.UTC()
	t.now = &now
	return now
}

func (t *pgTx) GetRoom(id string) (*domain.Room, error) {
	if room, ok := t.rooms[id]; ok {
		return room.Clone(), nil
	}
	var room domain.Room
	if err := t.db.First(&room, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (t *pgTx) SetRoom(room *domain.Room) error {
	t.rooms[room.ID] = room.Clone()
	return nil
}

func (t *pgTx) GetMatchup(key string) (*domain.Matchup, error) {
	if m, ok := t.matchups[key]; ok {
		return m.Clone(), nil
	}
	var m domain.Matchup
	if err := t.db.First(&m, "key = ?", key).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (t *pgTx) SetMatchup(m *domain.Matchup) error {
	t.matchups[m.Key] = m.Clone()
	return nil
}

func (t *pgTx) GetProfile(userID uuid.UUID) (*domain.Profile, error) {
	if p, ok := t.profiles[userID]; ok {
		return p.Clone(), nil
	}
	var p domain.Profile
	if err := t.db.First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (t *pgTx) SetProfile(p *domain.Profile) error {
	t.profiles[p.UserID] = p.Clone()
	return nil
}

func (t *pgTx) commit() ([]*domain.Room, error) {
	committed := make([]*domain.Room, 0, len(t.rooms))
	for id, room := range t.rooms {
		if room.History == nil {
			room.History = datatypes.JSONSlice[domain.Move]{}
		}
		if room.CreatedAt.IsZero() {
			room.CreatedAt = t.Now()
		}
		if err := t.write(room, room.Version, fmt.Sprintf("room %s", id)); err != nil {
			return nil, err
		}
		if err := t.db.Exec("SELECT pg_notify(?, ?)", RoomChannel, id).Error; err != nil {
			return nil, err
		}
		committed = append(committed, room)
	}
	for key, m := range t.matchups {
		if err := t.write(m, m.Version, fmt.Sprintf("matchup %s", key)); err != nil {
			return nil, err
		}
	}
	for id, p := range t.profiles {
		if p.Games == nil {
			p.Games = datatypes.JSONSlice[domain.GameRecord]{}
		}
		if err := t.write(p, p.Version, fmt.Sprintf("profile %s", id)); err != nil {
			return nil, err
		}
	}
	return committed, nil
}

// write inserts a new document or updates an existing one only if its
// version is still base, then bumps the version on doc.
func (t *pgTx) write(doc any, base int64, label string) error {
	setVersion(doc, base+1)
	if base == 0 {
		if err := t.db.Create(doc).Error; err != nil {
			setVersion(doc, base)
			return fmt.Errorf("%s: %w", label, err)
		}
		return nil
	}

	res := t.db.Model(doc).
		Where("version = ?", base).
		Select("*").
		Omit("created_at").
		Updates(doc)
	if res.Error != nil {
		setVersion(doc, base)
		return fmt.Errorf("%s: %w", label, res.Error)
	}
	if res.RowsAffected == 0 {
		setVersion(doc, base)
		return fmt.Errorf("%s: %w", label, repository.ErrContention)
	}
	return nil
}

func setVersion(doc any, v int64) {
	switch d := doc.(type) {
	case *domain.Room:
		d.Version = v
	case *domain.Matchup:
		d.Version = v
	case *domain.Profile:
		d.Version = v
	}
}
