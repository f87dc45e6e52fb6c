package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/rcallister/taskgate/internal/models"
	pkglogger "github.com/rcallister/taskgate/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApprovalService(store *MockUserStore, notifier *MockNotifier) (*ApprovalService, *MockCacheInvalidator) {
	logger := slog.Default()
	cache := &MockCacheInvalidator{}
	if notifier == nil {
		notifier = &MockNotifier{}
	}
	return NewApprovalService(store, cache, notifier, logger, pkglogger.NewAuditLogger(logger)), cache
}

func newTenantAdmin(id, company string) *models.User {
	admin := NewTestUser(id, id+"@example.com", "Admin "+id)
	role := models.RoleAdmin
	admin.Role = &role
	admin.Company = &company
	return admin
}

func newPendingUser(id, company string) *models.User {
	user := NewTestUser(id, id+"@example.com", "User "+id)
	user.Status = models.StatusPending
	user.Company = &company
	return user
}

// ============================================================================
// Approve / Reject Tests
// ============================================================================

func TestApprovalService_Approve_Success(t *testing.T) {
	actor := newTenantAdmin("admin1", "acme")
	target := newPendingUser("user1", "acme")

	var applied models.UserUpdate
	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
		UpdateByIDFunc: func(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
			applied = upd
			target.Status = *upd.Status
			return target, nil
		},
	}
	svc, cache := newApprovalService(store, nil)

	resp, err := svc.Approve(context.Background(), actor, "user1")

	require.NoError(t, err)
	require.NotNil(t, applied.Status)
	assert.Equal(t, models.StatusActive, *applied.Status)
	assert.Equal(t, string(models.StatusActive), resp.AccountStatus)
	assert.Contains(t, cache.Invalidated, "user1")
}

func TestApprovalService_Reject_Success(t *testing.T) {
	actor := newTenantAdmin("admin1", "acme")
	target := newPendingUser("user1", "acme")

	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
		UpdateByIDFunc: func(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
			target.Status = *upd.Status
			return target, nil
		},
	}
	svc, _ := newApprovalService(store, nil)

	resp, err := svc.Reject(context.Background(), actor, "user1")

	require.NoError(t, err)
	assert.Equal(t, string(models.StatusRejected), resp.AccountStatus)
}

// Repeating a decision returns the current state without touching the
// store again.
func TestApprovalService_Approve_Idempotent(t *testing.T) {
	actor := newTenantAdmin("admin1", "acme")
	target := newPendingUser("user1", "acme")
	target.Status = models.StatusActive

	updates := 0
	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
		UpdateByIDFunc: func(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
			updates++
			return target, nil
		},
	}
	svc, cache := newApprovalService(store, nil)

	resp, err := svc.Approve(context.Background(), actor, "user1")

	require.NoError(t, err)
	assert.Equal(t, string(models.StatusActive), resp.AccountStatus)
	assert.Zero(t, updates)
	assert.Empty(t, cache.Invalidated)
}

// Rejected is terminal; approving a rejected account is an error, not a
// transition.
func TestApprovalService_Approve_RejectedIsTerminal(t *testing.T) {
	actor := newTenantAdmin("admin1", "acme")
	target := newPendingUser("user1", "acme")
	target.Status = models.StatusRejected

	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
	}
	svc, _ := newApprovalService(store, nil)

	resp, err := svc.Approve(context.Background(), actor, "user1")

	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.Nil(t, resp)
}

func TestApprovalService_Approve_TargetNotFound(t *testing.T) {
	actor := newTenantAdmin("admin1", "acme")
	svc, _ := newApprovalService(&MockUserStore{}, nil)

	resp, err := svc.Approve(context.Background(), actor, "ghost")

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Nil(t, resp)
}

// ============================================================================
// Authorization Tests
// ============================================================================

func TestApprovalService_Approve_CrossTenantForbidden(t *testing.T) {
	actor := newTenantAdmin("admin1", "acme")
	target := newPendingUser("user1", "globex")

	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
	}
	svc, _ := newApprovalService(store, nil)

	resp, err := svc.Approve(context.Background(), actor, "user1")

	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Nil(t, resp)
}

func TestApprovalService_Approve_AdminCannotActOnAdmin(t *testing.T) {
	actor := newTenantAdmin("admin1", "acme")
	target := newTenantAdmin("admin2", "acme")
	target.Status = models.StatusPending

	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
	}
	svc, _ := newApprovalService(store, nil)

	_, err := svc.Approve(context.Background(), actor, "admin2")

	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestApprovalService_SuperAdmin_ApprovesPendingAdmin(t *testing.T) {
	actor := NewTestUser("root", "root@example.com", "Root")
	actor.IsSuperAdmin = true
	actor.Company = nil
	target := newTenantAdmin("admin1", "acme")
	target.Status = models.StatusPending

	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
		UpdateByIDFunc: func(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
			target.Status = *upd.Status
			return target, nil
		},
	}
	svc, _ := newApprovalService(store, nil)

	resp, err := svc.Approve(context.Background(), actor, "admin1")

	require.NoError(t, err)
	assert.Equal(t, string(models.StatusActive), resp.AccountStatus)
}

func TestApprovalService_SuperAdmin_CannotActOnOrdinaryUser(t *testing.T) {
	actor := NewTestUser("root", "root@example.com", "Root")
	actor.IsSuperAdmin = true
	target := newPendingUser("user1", "acme")

	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
	}
	svc, _ := newApprovalService(store, nil)

	_, err := svc.Approve(context.Background(), actor, "user1")

	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestApprovalService_OrdinaryUser_CannotApprove(t *testing.T) {
	actor := NewTestUser("user0", "user0@example.com", "User Zero")
	target := newPendingUser("user1", "acme")

	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return target, nil
		},
	}
	svc, _ := newApprovalService(store, nil)

	_, err := svc.Approve(context.Background(), actor, "user1")

	assert.ErrorIs(t, err, models.ErrForbidden)
}

// ============================================================================
// Pending Lists
// ============================================================================

func TestApprovalService_PendingUsers_ScopedToCompany(t *testing.T) {
	actor := newTenantAdmin("admin1", "acme")

	var requested string
	store := &MockUserStore{
		ListPendingByCompanyFunc: func(ctx context.Context, company string) ([]*models.User, error) {
			requested = company
			return []*models.User{newPendingUser("user1", company)}, nil
		},
	}
	svc, _ := newApprovalService(store, nil)

	pending, err := svc.PendingUsers(context.Background(), actor)

	require.NoError(t, err)
	assert.Equal(t, "acme", requested)
	assert.Len(t, pending, 1)
}

// ============================================================================
// Company Administration
// ============================================================================

func TestApprovalService_CreateCompanyAdmin_ActiveImmediately(t *testing.T) {
	actor := NewTestUser("root", "root@example.com", "Root")
	actor.IsSuperAdmin = true

	var created *models.User
	store := &MockUserStore{
		CreateFunc: func(ctx context.Context, user *models.User, password string) (*models.User, error) {
			user.ID = "admin123"
			created = user
			return user, nil
		},
	}
	svc, _ := newApprovalService(store, nil)

	resp, err := svc.CreateCompanyAdmin(context.Background(), actor, CreateCompanyAdminInput{
		Name:        "Ada Admin",
		Email:       "ada@newco.com",
		UserID:      "ada",
		Password:    "SecurePassword123!",
		CompanyCode: "newco",
	})

	require.NoError(t, err)
	assert.Equal(t, string(models.StatusActive), resp.AccountStatus)
	assert.Equal(t, models.StatusActive, created.Status)
	require.NotNil(t, created.Company)
	assert.Equal(t, "newco", *created.Company)
}

func TestApprovalService_DeleteCompany(t *testing.T) {
	actor := NewTestUser("root", "root@example.com", "Root")
	actor.IsSuperAdmin = true

	store := &MockUserStore{
		DeleteByCompanyFunc: func(ctx context.Context, company string) (int64, error) {
			assert.Equal(t, "acme", company)
			return 4, nil
		},
	}
	svc, _ := newApprovalService(store, nil)

	deleted, err := svc.DeleteCompany(context.Background(), actor, "acme")

	require.NoError(t, err)
	assert.EqualValues(t, 4, deleted)
}

func TestApprovalService_DeleteCompany_Unknown(t *testing.T) {
	actor := NewTestUser("root", "root@example.com", "Root")
	actor.IsSuperAdmin = true

	store := &MockUserStore{
		DeleteByCompanyFunc: func(ctx context.Context, company string) (int64, error) {
			return 0, nil
		},
	}
	svc, _ := newApprovalService(store, nil)

	_, err := svc.DeleteCompany(context.Background(), actor, "ghost")

	assert.ErrorIs(t, err, models.ErrNotFound)
}
