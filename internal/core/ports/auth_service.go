package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

type AuthService interface {
	CheckAvailability(ctx context.Context, username, email string) (domain.Availability, error)
	Register(ctx context.Context, username, email, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	GetByID(ctx context.Context, userID string) (*domain.User, error)
}
