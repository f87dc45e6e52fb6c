package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rcallister/taskgate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserCache_SetGet(t *testing.T) {
	c := NewMemoryUserCache(time.Minute)
	ctx := context.Background()

	user := &models.User{ID: "user123", Email: "jordan@example.com"}
	c.Set(ctx, user)

	got, ok := c.Get(ctx, "user123")
	require.True(t, ok)
	assert.Equal(t, "jordan@example.com", got.Email)

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestMemoryUserCache_TTLExpiry(t *testing.T) {
	c := NewMemoryUserCache(20 * time.Millisecond)
	ctx := context.Background()

	c.Set(ctx, &models.User{ID: "user123"})

	_, ok := c.Get(ctx, "user123")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok = c.Get(ctx, "user123")
	assert.False(t, ok)
}

func TestMemoryUserCache_Invalidate(t *testing.T) {
	c := NewMemoryUserCache(time.Minute)
	ctx := context.Background()

	c.Set(ctx, &models.User{ID: "user123"})
	c.Invalidate(ctx, "user123")

	_, ok := c.Get(ctx, "user123")
	assert.False(t, ok)
}

func TestMemoryUserCache_IgnoresNilAndEmptyID(t *testing.T) {
	c := NewMemoryUserCache(time.Minute)
	ctx := context.Background()

	c.Set(ctx, nil)
	c.Set(ctx, &models.User{})

	_, ok := c.Get(ctx, "")
	assert.False(t, ok)
}
