package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// BcryptCost is the work factor for every stored password digest.
const BcryptCost = 10

// BcryptHasher implements ports.PasswordHasher with bcrypt. Each Hash call
// draws a fresh salt, so two digests of the same password never compare equal.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: BcryptCost}
}

func (h *BcryptHasher) Hash(_ context.Context, plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.ValidationError("password must be at most 72 bytes")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify compares in constant time using the salt embedded in digest.
// A malformed digest is a mismatch, not an error.
func (h *BcryptHasher) Verify(_ context.Context, plaintext, digest string) (bool, error) {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil, nil
}
