package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// UserStore defines the persistence contract for user records.
//
// Lookups return domain.ErrUserNotFound on a miss. InsertUser must enforce
// username and email uniqueness atomically and report a violation as a
// *domain.DuplicateKeyError.
type UserStore interface {
	InsertUser(ctx context.Context, username, email, passwordHash, avatarURL string) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	Ping(ctx context.Context) error
}
