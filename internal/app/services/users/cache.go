package users

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/todo-platform/task-api/internal/app/domain/user"
	"github.com/todo-platform/task-api/internal/logging"
)

const authCachePrefix = "user_auth:"

// cachedUser is the Redis payload. The API-facing User excludes the password
// hash from JSON, and authenticating against a cache hit needs it, so the
// cache carries its own encoding.
type cachedUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func encodeCachedUser(u user.User) ([]byte, error) {
	return json.Marshal(cachedUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		IsStaff:      u.IsStaff,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	})
}

func decodeCachedUser(data []byte) (user.User, error) {
	var c cachedUser
	if err := json.Unmarshal(data, &c); err != nil {
		return user.User{}, err
	}
	return user.User{
		ID:           c.ID,
		Email:        c.Email,
		Name:         c.Name,
		PasswordHash: c.PasswordHash,
		IsActive:     c.IsActive,
		IsStaff:      c.IsStaff,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}, nil
}

// RedisCache caches authenticated users in Redis with a short TTL. Cache
// failures are logged and treated as misses; Redis being down must never
// block logins.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logging.Logger
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache builds the cache. TTL defaults to five minutes.
func NewRedisCache(client *redis.Client, ttl time.Duration, log *logging.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logging.NewDefault("users.cache")
	}
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func (c *RedisCache) GetUser(ctx context.Context, email string) (user.User, bool) {
	data, err := c.client.Get(ctx, authCachePrefix+email).Bytes()
	if err == redis.Nil {
		return user.User{}, false
	}
	if err != nil {
		c.log.WithContext(ctx).WithError(err).Warn("auth cache read failed")
		return user.User{}, false
	}

	u, err := decodeCachedUser(data)
	if err != nil {
		return user.User{}, false
	}
	return u, true
}

func (c *RedisCache) SetUser(ctx context.Context, u user.User) {
	data, err := encodeCachedUser(u)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, authCachePrefix+u.Email, data, c.ttl).Err(); err != nil {
		c.log.WithContext(ctx).WithError(err).Warn("auth cache write failed")
	}
}

func (c *RedisCache) DeleteUser(ctx context.Context, email string) {
	if err := c.client.Del(ctx, authCachePrefix+email).Err(); err != nil {
		c.log.WithContext(ctx).WithError(err).Warn("auth cache invalidation failed")
	}
}
