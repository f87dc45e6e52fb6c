package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rcallister/taskgate/internal/models"
)

// UserCache maps subject id -> full user record for the session-validating
// middleware. Entries may be stale for up to the configured TTL after an
// update; mutating services call Invalidate to shorten that window.
type UserCache interface {
	Get(ctx context.Context, id string) (*models.User, bool)
	Set(ctx context.Context, user *models.User)
	Invalidate(ctx context.Context, id string)
}

type memoryEntry struct {
	user      *models.User
	expiresAt time.Time
}

type memoryUserCache struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	ttl   time.Duration
}

// NewMemoryUserCache returns a process-local cache with the given TTL.
func NewMemoryUserCache(ttl time.Duration) UserCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &memoryUserCache{
		items: make(map[string]memoryEntry),
		ttl:   ttl,
	}
}

func (c *memoryUserCache) Get(_ context.Context, id string) (*models.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[id]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.items, id)
		return nil, false
	}
	return entry.user, true
}

func (c *memoryUserCache) Set(_ context.Context, user *models.User) {
	if user == nil || user.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[user.ID] = memoryEntry{
		user:      user,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *memoryUserCache) Invalidate(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}
