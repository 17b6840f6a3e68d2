// Package memory provides an in-process UserStore for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// UserStore keeps users in maps guarded by a single mutex, so the uniqueness
// check and the insert happen atomically.
type UserStore struct {
	mu         sync.RWMutex
	byID       map[string]*domain.User
	byUsername map[string]string
	byEmail    map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:       make(map[string]*domain.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (s *UserStore) InsertUser(ctx context.Context, username, email, passwordHash, avatarURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[email]; taken {
		return "", &domain.DuplicateKeyError{Field: domain.FieldEmail}
	}
	if _, taken := s.byUsername[username]; taken {
		return "", &domain.DuplicateKeyError{Field: domain.FieldUsername}
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		AvatarURL:    avatarURL,
		CreatedAt:    time.Now().UTC(),
	}
	s.byID[user.ID] = user
	s.byUsername[username] = user.ID
	s.byEmail[email] = user.ID
	return user.ID, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.lookup(ctx, s.byEmail, email)
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.lookup(ctx, s.byUsername, username)
}

func (s *UserStore) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *UserStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *UserStore) lookup(ctx context.Context, index map[string]string, key string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *s.byID[id]
	return &clone, nil
}
