package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/auth-service/internal/core/domain"
)

type stubUserStore struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	nextID  int
	lookups int

	// insertErr, when set, is returned by InsertUser instead of inserting.
	insertErr error
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserStore) InsertUser(_ context.Context, username, email, passwordHash, avatarURL string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return "", r.insertErr
	}
	for _, u := range r.users {
		if u.Email == email {
			return "", &domain.DuplicateKeyError{Field: domain.FieldEmail}
		}
		if u.Username == username {
			return "", &domain.DuplicateKeyError{Field: domain.FieldUsername}
		}
	}
	r.nextID++
	id := fmt.Sprintf("u-%d", r.nextID)
	r.users[id] = &domain.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		AvatarURL:    avatarURL,
		CreatedAt:    time.Now().UTC(),
	}
	return id, nil
}

func (r *stubUserStore) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *stubUserStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *stubUserStore) GetUserByID(_ context.Context, userID string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == userID })
}

func (r *stubUserStore) Ping(context.Context) error { return nil }

func newTestAuthService(store *stubUserStore) *AuthService {
	return NewAuthService(store, NewBcryptHasher(), zerolog.Nop())
}

func TestAuthService_Register_ThenLogin(t *testing.T) {
	store := newStubUserStore()
	svc := newTestAuthService(store)
	ctx := context.Background()

	userID, err := svc.Register(ctx, "alice", "alice@x.com", "pw123")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if userID == "" {
		t.Fatalf("expected user id")
	}

	stored, _ := store.GetUserByID(ctx, userID)
	if stored.PasswordHash == "pw123" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if cost, _ := bcrypt.Cost([]byte(stored.PasswordHash)); cost != BcryptCost {
		t.Fatalf("expected cost %d, got %d", BcryptCost, cost)
	}
	if stored.AvatarURL != "https://api.dicebear.com/6.x/initials/svg?seed=alice" {
		t.Fatalf("unexpected avatar url: %s", stored.AvatarURL)
	}

	loginID, err := svc.Login(ctx, "alice", "pw123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loginID != userID {
		t.Fatalf("expected %s, got %s", userID, loginID)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := newTestAuthService(newStubUserStore())

	cases := [][3]string{
		{"", "a@x.com", "pw"},
		{"alice", "", "pw"},
		{"alice", "a@x.com", ""},
		{"   ", "a@x.com", "pw"},
	}
	for _, c := range cases {
		if _, err := svc.Register(context.Background(), c[0], c[1], c[2]); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Register(%q, %q, %q): expected ErrValidation, got %v", c[0], c[1], c[2], err)
		}
	}
}

func TestAuthService_Register_PasswordTooLong(t *testing.T) {
	svc := newTestAuthService(newStubUserStore())

	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := svc.Register(context.Background(), "alice", "a@x.com", string(long)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthService_Register_Duplicates(t *testing.T) {
	store := newStubUserStore()
	svc := newTestAuthService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "bob", "bob@x.com", "pw"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.Register(ctx, "other", "bob@x.com", "pw"); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "new@x.com", "pw"); !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "bob@x.com", "pw"); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail to win when both collide, got %v", err)
	}
}

func TestAuthService_Register_StoreDuplicateKeyMapped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"email constraint", &domain.DuplicateKeyError{Field: domain.FieldEmail}, domain.ErrDuplicateEmail},
		{"username constraint", &domain.DuplicateKeyError{Field: domain.FieldUsername}, domain.ErrDuplicateUsername},
		{"unknown constraint", &domain.DuplicateKeyError{}, domain.ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubUserStore()
			store.insertErr = tt.err
			svc := newTestAuthService(store)

			if _, err := svc.Register(context.Background(), "carol", "carol@x.com", "pw"); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAuthService_Register_ConcurrentSameUsername(t *testing.T) {
	store := newStubUserStore()
	svc := newTestAuthService(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Register(context.Background(), "dave", fmt.Sprintf("dave%d@x.com", i), "pw")
		}(i)
	}
	close(start)
	wg.Wait()

	successes, duplicates := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrDuplicateUsername):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || duplicates != 1 {
		t.Fatalf("expected one success and one duplicate, got %d/%d", successes, duplicates)
	}
}

func TestAuthService_CheckAvailability(t *testing.T) {
	store := newStubUserStore()
	svc := newTestAuthService(store)
	ctx := context.Background()

	avail, err := svc.CheckAvailability(ctx, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !avail.EmailAvailable || !avail.UsernameAvailable {
		t.Fatalf("expected both available, got %+v", avail)
	}
	if store.lookups != 0 {
		t.Fatalf("expected no lookups, got %d", store.lookups)
	}

	if _, err := svc.Register(ctx, "erin", "erin@x.com", "pw"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	avail, _ = svc.CheckAvailability(ctx, "erin", "")
	if avail.UsernameAvailable || !avail.EmailAvailable {
		t.Fatalf("unexpected availability: %+v", avail)
	}
	avail, _ = svc.CheckAvailability(ctx, "", "erin@x.com")
	if !avail.UsernameAvailable || avail.EmailAvailable {
		t.Fatalf("unexpected availability: %+v", avail)
	}
	avail, _ = svc.CheckAvailability(ctx, "frank", "frank@x.com")
	if !avail.UsernameAvailable || !avail.EmailAvailable {
		t.Fatalf("unexpected availability: %+v", avail)
	}
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	store := newStubUserStore()
	svc := newTestAuthService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "gina", "gina@x.com", "goodpass"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	id, err := svc.Login(ctx, "gina", "badpass")
	if !errors.Is(err, domain.ErrInvalidCredentials) || id != "" {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %q %v", id, err)
	}

	id, err = svc.Login(ctx, "ghost", "goodpass")
	if !errors.Is(err, domain.ErrInvalidCredentials) || id != "" {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %q %v", id, err)
	}
}

func TestAuthService_Login_Validation(t *testing.T) {
	svc := newTestAuthService(newStubUserStore())

	if _, err := svc.Login(context.Background(), "", "pw"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "hank", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthService_GetByID(t *testing.T) {
	store := newStubUserStore()
	svc := newTestAuthService(store)
	ctx := context.Background()

	userID, err := svc.Register(ctx, "ivy", "ivy@x.com", "pw")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	user, err := svc.GetByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if user.Username != "ivy" || user.Email != "ivy@x.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
