package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// dummyPassword is hashed once and verified against on unknown-username
// logins so both rejection paths cost one bcrypt compare.
const dummyPassword = "auth-service/unknown-user"

// AuthService implements registration, login, availability and profile lookup.
type AuthService struct {
	store  ports.UserStore
	hasher ports.PasswordHasher
	log    zerolog.Logger

	dummyMu     sync.Mutex
	dummyDigest string
}

func NewAuthService(store ports.UserStore, hasher ports.PasswordHasher, log zerolog.Logger) *AuthService {
	return &AuthService{store: store, hasher: hasher, log: log}
}

// CheckAvailability looks up each non-empty field once. An empty field is not
// checked and is reported available.
func (s *AuthService) CheckAvailability(ctx context.Context, username, email string) (domain.Availability, error) {
	avail := domain.Availability{EmailAvailable: true, UsernameAvailable: true}

	if email != "" {
		taken, err := exists(ctx, s.store.GetUserByEmail, email)
		if err != nil {
			return domain.Availability{}, fmt.Errorf("check email availability: %w", err)
		}
		avail.EmailAvailable = !taken
	}

	if username != "" {
		taken, err := exists(ctx, s.store.GetUserByUsername, username)
		if err != nil {
			return domain.Availability{}, fmt.Errorf("check username availability: %w", err)
		}
		avail.UsernameAvailable = !taken
	}

	return avail, nil
}

// Register creates an account and returns its id.
//
// The availability check only produces friendly errors; the store's unique
// constraints decide races between concurrent registrations.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (string, error) {
	if blank(username) || blank(email) || blank(password) {
		return "", domain.ValidationError("username, email and password are required")
	}

	avail, err := s.CheckAvailability(ctx, username, email)
	if err != nil {
		return "", err
	}
	if err := availabilityErr(avail); err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return "", err
	}

	userID, err := s.store.InsertUser(ctx, username, email, hash, domain.AvatarURL(username))
	if err != nil {
		var dup *domain.DuplicateKeyError
		if errors.As(err, &dup) {
			return "", s.resolveDuplicate(ctx, dup, username, email)
		}
		return "", fmt.Errorf("insert user: %w", err)
	}

	s.log.Info().Str("user_id", userID).Str("username", username).Msg("user registered")
	return userID, nil
}

// Login returns the user id for a matching username and password. Unknown
// usernames and wrong passwords are both ErrInvalidCredentials; the reason is
// only logged.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if blank(username) || password == "" {
		return "", domain.ValidationError("username and password are required")
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.verifyDummy(ctx, password)
			s.log.Debug().Str("username", username).Msg("login rejected: unknown username")
			return "", domain.ErrInvalidCredentials
		}
		return "", fmt.Errorf("login: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if !ok {
		s.log.Debug().Str("user_id", user.ID).Msg("login rejected: password mismatch")
		return "", domain.ErrInvalidCredentials
	}

	return user.ID, nil
}

func (s *AuthService) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// resolveDuplicate maps a store uniqueness violation onto the same errors the
// pre-check produces, keeping email ahead of username.
func (s *AuthService) resolveDuplicate(ctx context.Context, dup *domain.DuplicateKeyError, username, email string) error {
	if avail, err := s.CheckAvailability(ctx, username, email); err == nil {
		if err := availabilityErr(avail); err != nil {
			return err
		}
	} else {
		s.log.Warn().Err(err).Msg("availability re-check after duplicate key failed")
	}

	switch dup.Field {
	case domain.FieldEmail:
		return domain.ErrDuplicateEmail
	case domain.FieldUsername:
		return domain.ErrDuplicateUsername
	}
	return fmt.Errorf("insert user: %w", dup)
}

// verifyDummy spends one bcrypt compare against a lazily built digest. A
// failed build is retried on the next call.
func (s *AuthService) verifyDummy(ctx context.Context, password string) {
	s.dummyMu.Lock()
	digest := s.dummyDigest
	if digest == "" {
		var err error
		digest, err = s.hasher.Hash(ctx, dummyPassword)
		if err != nil {
			s.dummyMu.Unlock()
			s.log.Warn().Err(err).Msg("dummy digest unavailable")
			return
		}
		s.dummyDigest = digest
	}
	s.dummyMu.Unlock()

	_, _ = s.hasher.Verify(ctx, password, digest)
}

func availabilityErr(a domain.Availability) error {
	if !a.EmailAvailable {
		return domain.ErrDuplicateEmail
	}
	if !a.UsernameAvailable {
		return domain.ErrDuplicateUsername
	}
	return nil
}

func exists(ctx context.Context, lookup func(context.Context, string) (*domain.User, error), key string) (bool, error) {
	_, err := lookup(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return false, nil
	default:
		return false, err
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
