package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rcallister/taskgate/internal/models"
)

type redisUserCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisUserCache returns a redis-backed user cache. Deployments with
// multiple instances get shared invalidation instead of per-process
// staleness; the TTL contract is the same as the memory backend.
func NewRedisUserCache(client *redis.Client, ttl time.Duration) UserCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisUserCache{
		client: client,
		ttl:    ttl,
		prefix: "taskgate:user:",
	}
}

func (c *redisUserCache) Get(ctx context.Context, id string) (*models.User, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	data, err := c.client.Get(ctx, c.prefix+id).Bytes()
	if err != nil {
		// Cache miss and transport failure both fall through to the store.
		return nil, false
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, false
	}
	return &user, true
}

func (c *redisUserCache) Set(ctx context.Context, user *models.User) {
	if user == nil || user.ID == "" {
		return
	}

	data, err := json.Marshal(user)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	_ = c.client.Set(ctx, c.prefix+user.ID, data, c.ttl).Err()
}

func (c *redisUserCache) Invalidate(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	_ = c.client.Del(ctx, c.prefix+id).Err()
}
