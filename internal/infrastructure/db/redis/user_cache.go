package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

const defaultCacheTTL = 10 * time.Minute

// cacheClient is the subset of redis.Cmdable the cache needs.
type cacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// cachedProfile carries only public profile fields; the password hash never
// leaves the primary store.
type cachedProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// CachedUserStore is a read-through cache for GetUserByID. Users are never
// updated or deleted, so entries only expire.
//
// Cache failures are logged and fall back to the wrapped store.
type CachedUserStore struct {
	ports.UserStore
	client cacheClient
	ttl    time.Duration
	log    zerolog.Logger
}

func NewCachedUserStore(inner ports.UserStore, client cacheClient, ttl time.Duration, log zerolog.Logger) *CachedUserStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedUserStore{UserStore: inner, client: client, ttl: ttl, log: log}
}

func (s *CachedUserStore) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	key := profileKey(userID)

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p cachedProfile
		if err := json.Unmarshal(raw, &p); err == nil {
			return &domain.User{
				ID:        p.ID,
				Username:  p.Username,
				Email:     p.Email,
				AvatarURL: p.AvatarURL,
				CreatedAt: p.CreatedAt,
			}, nil
		}
		s.log.Warn().Str("key", key).Msg("discarding undecodable cached profile")
	case errors.Is(err, redis.Nil):
		// miss
	default:
		s.log.Warn().Err(err).Str("key", key).Msg("profile cache read failed")
	}

	user, err := s.UserStore.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cachedProfile{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
	})
	if err == nil {
		err = s.client.Set(ctx, key, payload, s.ttl).Err()
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("profile cache write failed")
	}
	return user, nil
}

func profileKey(userID string) string {
	return "auth:user:" + userID
}
