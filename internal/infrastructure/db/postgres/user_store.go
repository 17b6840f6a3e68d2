package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/99minutos/auth-service/internal/core/domain"
)

const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

// poolIface is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type poolIface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// UserStore implements ports.UserStore using PostgreSQL.
type UserStore struct {
	pool poolIface
}

func NewUserStore(pool poolIface) *UserStore {
	return &UserStore{pool: pool}
}

const selectUser = `
	SELECT id::text, username, email, password_hash, avatar_url, created_at
	FROM users
`

// InsertUser relies on the table's unique constraints so concurrent inserts
// of the same username or email resolve to exactly one winner.
func (s *UserStore) InsertUser(ctx context.Context, username, email, passwordHash, avatarURL string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, avatar_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text
	`, username, email, passwordHash, avatarURL).Scan(&id)
	if err == nil {
		return id, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return "", &domain.DuplicateKeyError{Field: constraintField(pgErr.ConstraintName), Err: err}
	}
	return "", oops.Code("USER_CREATE_FAILED").
		With("operation", "insert user").
		With("username", username).
		Wrap(storeError(err))
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, selectUser+`WHERE email = $1`, email)
	return scanUser(row, "USER_GET_BY_EMAIL_FAILED", "email", email)
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, selectUser+`WHERE username = $1`, username)
	return scanUser(row, "USER_GET_BY_USERNAME_FAILED", "username", username)
}

func (s *UserStore) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	// Ids that are not UUIDs cannot match; skip the round trip and the cast error.
	if _, err := uuid.Parse(userID); err != nil {
		return nil, domain.ErrUserNotFound
	}
	row := s.pool.QueryRow(ctx, selectUser+`WHERE id = $1::uuid`, userID)
	return scanUser(row, "USER_GET_BY_ID_FAILED", "id", userID)
}

func (s *UserStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("POSTGRES_PING_FAILED").Wrap(storeError(err))
	}
	return nil
}

func scanUser(row pgx.Row, code, key, value string) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AvatarURL, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, oops.Code(code).With(key, value).Wrap(storeError(err))
	}
	return &u, nil
}

func constraintField(name string) string {
	switch name {
	case usernameConstraint:
		return domain.FieldUsername
	case emailConstraint:
		return domain.FieldEmail
	default:
		return ""
	}
}

// storeError tags errors that did not come back from the server as
// connectivity failures.
func storeError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Join(domain.ErrStoreUnavailable, err)
}
