package ports

import "context"

// PasswordHasher hashes and verifies credentials. Verify reports a mismatch
// or a malformed digest as (false, nil); the error is reserved for ctx ending
// before the work ran.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}
