package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("invalid input")
	ErrDuplicateEmail     = errors.New("user with this email already exists")
	ErrDuplicateUsername  = errors.New("user with this username already exists")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrStoreUnavailable   = errors.New("user store unavailable")
)

// Fields a UserStore reports in a DuplicateKeyError.
const (
	FieldEmail    = "email"
	FieldUsername = "username"
)

// DuplicateKeyError is returned by a UserStore when an insert violates a
// uniqueness constraint. Field is empty when the store cannot tell which
// constraint fired.
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Field == "" {
		return ErrDuplicateKey.Error()
	}
	return fmt.Sprintf("%s: %s", ErrDuplicateKey.Error(), e.Field)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

// ValidationError wraps ErrValidation with a caller-facing message.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
