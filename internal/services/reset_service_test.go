package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rcallister/taskgate/internal/config"
	"github.com/rcallister/taskgate/internal/models"
	pkgauth "github.com/rcallister/taskgate/pkg/auth"
	pkglogger "github.com/rcallister/taskgate/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResetService(store *MockUserStore, notifier *MockNotifier) (*ResetService, *MockCacheInvalidator) {
	logger := slog.Default()
	cache := &MockCacheInvalidator{}
	if notifier == nil {
		notifier = &MockNotifier{}
	}
	authCfg := &config.AuthConfig{
		ResetCodeExpiry: 10 * time.Minute,
		ResetMaxPerHour: 3,
	}
	return NewResetService(store, cache, notifier, authCfg, logger, pkglogger.NewAuditLogger(logger)), cache
}

// ============================================================================
// Request Tests
// ============================================================================

// Unknown emails succeed silently so the endpoint cannot be used to
// probe registrations.
func TestResetService_Request_UnknownEmailSucceeds(t *testing.T) {
	svc, _ := newResetService(&MockUserStore{}, nil)

	err := svc.Request(context.Background(), "nobody@example.com")

	assert.NoError(t, err)
}

func TestResetService_Request_StoresHashedCodeAndSendsEmail(t *testing.T) {
	user := NewTestUser("user123", "jordan@example.com", "Jordan Smith")

	var applied models.UserUpdate
	store := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		UpdateByIDFunc: func(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
			applied = upd
			return user, nil
		},
	}

	var mu sync.Mutex
	var sentCode string
	done := make(chan struct{})
	notifier := &MockNotifier{
		SendResetCodeFunc: func(ctx context.Context, email, code string, expiresAt time.Time) error {
			mu.Lock()
			sentCode = code
			mu.Unlock()
			close(done)
			return nil
		},
	}
	svc, _ := newResetService(store, notifier)

	err := svc.Request(context.Background(), "jordan@example.com")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reset code was never sent")
	}

	require.NotNil(t, applied.ResetCodeHash)
	require.NotNil(t, applied.ResetCodeExpiry)
	require.NotNil(t, applied.ResetAttempts)
	assert.Equal(t, 1, *applied.ResetAttempts)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, sentCode, 6)
	// Only the hash is persisted.
	assert.NotEqual(t, sentCode, *applied.ResetCodeHash)
	assert.NoError(t, pkgauth.CompareResetCode(*applied.ResetCodeHash, sentCode))
}

// The fourth request inside the rolling hour is refused.
func TestResetService_Request_RateLimited(t *testing.T) {
	user := NewTestUser("user123", "jordan@example.com", "Jordan Smith")
	recent := time.Now().Add(-5 * time.Minute)
	user.ResetAttempts = 3
	user.LastResetAttempt = &recent

	store := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	svc, _ := newResetService(store, nil)

	err := svc.Request(context.Background(), "jordan@example.com")

	assert.ErrorIs(t, err, models.ErrRateLimited)
}

// The counter restarts once the previous attempt falls outside the hour.
func TestResetService_Request_CounterResetsAfterHour(t *testing.T) {
	user := NewTestUser("user123", "jordan@example.com", "Jordan Smith")
	old := time.Now().Add(-2 * time.Hour)
	user.ResetAttempts = 3
	user.LastResetAttempt = &old

	var applied models.UserUpdate
	store := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		UpdateByIDFunc: func(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
			applied = upd
			return user, nil
		},
	}
	svc, _ := newResetService(store, nil)

	err := svc.Request(context.Background(), "jordan@example.com")

	require.NoError(t, err)
	require.NotNil(t, applied.ResetAttempts)
	assert.Equal(t, 1, *applied.ResetAttempts)
}

// ============================================================================
// Confirm Tests
// ============================================================================

func userWithResetCode(t *testing.T, code string, expiry time.Time) *models.User {
	t.Helper()
	user := NewTestUser("user123", "jordan@example.com", "Jordan Smith")
	hash, err := pkgauth.HashResetCode(code)
	require.NoError(t, err)
	user.ResetCodeHash = &hash
	user.ResetCodeExpiry = &expiry
	return user
}

func TestResetService_Confirm_Success(t *testing.T) {
	user := userWithResetCode(t, "123456", time.Now().Add(5*time.Minute))

	var applied models.UserUpdate
	store := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		UpdateByIDFunc: func(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
			applied = upd
			return user, nil
		},
	}
	svc, cache := newResetService(store, nil)

	err := svc.Confirm(context.Background(), "jordan@example.com", "123456", "NewPassword456!")

	require.NoError(t, err)
	require.NotNil(t, applied.Password)
	assert.True(t, applied.ClearResetState)
	assert.Nil(t, applied.AuthProvider) // local account stays local
	assert.Contains(t, cache.Invalidated, "user123")
}

// A confirmed code is spent. The update clears the reset scratch
// fields, so replaying the same code fails.
func TestResetService_Confirm_CodeIsSingleUse(t *testing.T) {
	user := userWithResetCode(t, "123456", time.Now().Add(5*time.Minute))

	store := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		UpdateByIDFunc: func(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
			if upd.ClearResetState {
				user.ResetCodeHash = nil
				user.ResetCodeExpiry = nil
				user.ResetAttempts = 0
				user.LastResetAttempt = nil
			}
			return user, nil
		},
	}
	svc, _ := newResetService(store, nil)

	require.NoError(t, svc.Confirm(context.Background(), "jordan@example.com", "123456", "NewPassword456!"))

	err := svc.Confirm(context.Background(), "jordan@example.com", "123456", "AnotherPassword789!")

	assert.ErrorIs(t, err, models.ErrResetCodeInvalid)
}

func TestResetService_Confirm_PromotesGoogleToHybrid(t *testing.T) {
	user := userWithResetCode(t, "123456", time.Now().Add(5*time.Minute))
	user.AuthProvider = models.ProviderGoogle

	var applied models.UserUpdate
	store := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		UpdateByIDFunc: func(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
			applied = upd
			return user, nil
		},
	}
	svc, _ := newResetService(store, nil)

	err := svc.Confirm(context.Background(), "jordan@example.com", "123456", "NewPassword456!")

	require.NoError(t, err)
	require.NotNil(t, applied.AuthProvider)
	assert.Equal(t, models.ProviderHybrid, *applied.AuthProvider)
}

func TestResetService_Confirm_WrongCode(t *testing.T) {
	user := userWithResetCode(t, "123456", time.Now().Add(5*time.Minute))
	store := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	svc, _ := newResetService(store, nil)

	err := svc.Confirm(context.Background(), "jordan@example.com", "654321", "NewPassword456!")

	assert.ErrorIs(t, err, models.ErrResetCodeInvalid)
}

func TestResetService_Confirm_ExpiredCode(t *testing.T) {
	user := userWithResetCode(t, "123456", time.Now().Add(-1*time.Minute))
	store := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	svc, _ := newResetService(store, nil)

	err := svc.Confirm(context.Background(), "jordan@example.com", "123456", "NewPassword456!")

	assert.ErrorIs(t, err, models.ErrResetCodeInvalid)
}

func TestResetService_Confirm_NoResetInProgress(t *testing.T) {
	user := NewTestUser("user123", "jordan@example.com", "Jordan Smith")
	store := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	svc, _ := newResetService(store, nil)

	err := svc.Confirm(context.Background(), "jordan@example.com", "123456", "NewPassword456!")

	assert.ErrorIs(t, err, models.ErrResetCodeInvalid)
}

func TestResetService_Confirm_UnknownEmail(t *testing.T) {
	svc, _ := newResetService(&MockUserStore{}, nil)

	err := svc.Confirm(context.Background(), "nobody@example.com", "123456", "NewPassword456!")

	assert.ErrorIs(t, err, models.ErrResetCodeInvalid)
}
