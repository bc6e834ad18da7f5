package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/repository"
)

var ErrDuplicateDisplayName = errors.New("display name already taken")

type userRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func NewUserRepository() *userRepository {
	return &userRepository{users: make(map[uuid.UUID]*domain.User)}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.DisplayName == user.DisplayName {
			return ErrDuplicateDisplayName
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *userRepository) GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.DisplayName == displayName {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, u := range r.users {
		if id != user.ID && u.DisplayName == user.DisplayName {
			return ErrDuplicateDisplayName
		}
	}
	c := *user
	r.users[user.ID] = &c
	return nil
}

type sessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.UserSession
}

func NewSessionRepository() *sessionRepository {
	return &sessionRepository{sessions: make(map[uuid.UUID]*domain.UserSession)}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.UserSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	c := *session
	r.sessions[session.ID] = &c
	return nil
}

func (r *sessionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID {
			c := *s
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

// NewRepositories wires an in-process store with memory user and session
// repositories.
func NewRepositories(store *Store) *repository.Repositories {
	return &repository.Repositories{
		User:    NewUserRepository(),
		Session: NewSessionRepository(),
		Store:   store,
	}
}
