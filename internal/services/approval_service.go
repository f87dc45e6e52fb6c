package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/rcallister/taskgate/internal/models"
	pkgauth "github.com/rcallister/taskgate/pkg/auth"
	pkglogger "github.com/rcallister/taskgate/pkg/logger"
)

// ApprovalService enforces the hierarchical approval rules: superadmins
// approve pending admins globally; tenant admins approve pending
// non-admins of their own company. Approval actions are idempotent.
type ApprovalService struct {
	store       UserStore
	cache       UserCacheInvalidator
	notifier    Notifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(store UserStore, cache UserCacheInvalidator, notifier Notifier, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *ApprovalService {
	return &ApprovalService{
		store:       store,
		cache:       cache,
		notifier:    notifier,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Approve transitions a pending account to active. Re-invoking on an
// already-active account returns the current state without error and
// without re-firing the welcome notification.
func (s *ApprovalService) Approve(ctx context.Context, actor *models.User, targetID string) (*UserResponse, error) {
	return s.act(ctx, actor, targetID, models.StatusActive)
}

// Reject transitions a pending account to rejected. Idempotent like
// Approve; there is no path back out of rejected.
func (s *ApprovalService) Reject(ctx context.Context, actor *models.User, targetID string) (*UserResponse, error) {
	return s.act(ctx, actor, targetID, models.StatusRejected)
}

func (s *ApprovalService) act(ctx context.Context, actor *models.User, targetID string, next models.AccountStatus) (*UserResponse, error) {
	target, err := s.store.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load approval target", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := authorizeApproval(actor, target); err != nil {
		s.auditLogger.LogAccountAction("approval_denied", target.ID, actor.ID, map[string]string{
			"requested_status": string(next),
		})
		return nil, err
	}

	// Idempotence: re-invoking the same transition returns the current
	// state and fires nothing.
	if target.Status == next {
		return UserToResponse(target), nil
	}

	if !target.Status.CanTransitionTo(next) {
		return nil, models.ErrBadRequest
	}

	updated, err := s.store.UpdateByID(ctx, target.ID, models.UserUpdate{Status: &next})
	if err != nil {
		s.logger.Error("failed to update account status",
			slog.String("user_id", target.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.cache.Invalidate(ctx, updated.ID)

	s.auditLogger.LogAccountAction("status_changed", updated.ID, actor.ID, map[string]string{
		"from": string(target.Status),
		"to":   string(next),
	})

	// Notification delivery never fails the transition.
	s.notifyTransition(updated, next)

	return UserToResponse(updated), nil
}

func (s *ApprovalService) notifyTransition(user *models.User, next models.AccountStatus) {
	email, name := user.Email, user.Name
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var err error
		switch next {
		case models.StatusActive:
			err = s.notifier.SendApprovalNotice(ctx, email, name)
		case models.StatusRejected:
			err = s.notifier.SendRejectionNotice(ctx, email, name)
		}
		if err != nil {
			s.logger.Warn("notification delivery failed",
				slog.String("email", pkglogger.SanitizedEmail(email)),
				slog.Any("error", err))
		}
	}()
}

// PendingUsers lists the pending non-admin accounts of the actor's
// company.
func (s *ApprovalService) PendingUsers(ctx context.Context, actor *models.User) ([]*UserResponse, error) {
	if actor.Company == nil {
		return []*UserResponse{}, nil
	}

	users, err := s.store.ListPendingByCompany(ctx, *actor.Company)
	if err != nil {
		s.logger.Error("failed to list pending users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return UsersToResponses(users), nil
}

// PendingAdmins lists pending admin accounts across all tenants.
func (s *ApprovalService) PendingAdmins(ctx context.Context) ([]*UserResponse, error) {
	users, err := s.store.ListPendingAdmins(ctx)
	if err != nil {
		s.logger.Error("failed to list pending admins", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return UsersToResponses(users), nil
}

// CreateCompanyAdminInput carries superadmin provisioning fields.
type CreateCompanyAdminInput struct {
	Name        string
	Email       string
	UserID      string
	Password    string
	CompanyCode string
}

// CreateCompanyAdmin provisions a tenant admin directly into active.
// The company key may be brand new; creating its first admin is what
// brings a tenant into existence.
func (s *ApprovalService) CreateCompanyAdmin(ctx context.Context, actor *models.User, in CreateCompanyAdminInput) (*UserResponse, error) {
	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	role := models.RoleAdmin
	status := models.StatusActive

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		UserID:       &in.UserID,
		AuthProvider: models.ProviderLocal,
		Status:       status,
		Role:         &role,
		Company:      &in.CompanyCode,
	}

	created, err := s.store.Create(ctx, user, in.Password)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create company admin", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("company_admin_created", created.ID, actor.ID, map[string]string{
		"company": in.CompanyCode,
	})

	return UserToResponse(created), nil
}

// DeleteCompany removes every account of a tenant. Unconditional; no
// soft delete.
func (s *ApprovalService) DeleteCompany(ctx context.Context, actor *models.User, company string) (int64, error) {
	deleted, err := s.store.DeleteByCompany(ctx, company)
	if err != nil {
		s.logger.Error("failed to delete company", slog.String("company", company), slog.Any("error", err))
		return 0, models.ErrInternalServer
	}
	if deleted == 0 {
		return 0, models.ErrNotFound
	}

	s.auditLogger.LogAccountAction("company_deleted", "", actor.ID, map[string]string{
		"company": company,
		"deleted": strconv.FormatInt(deleted, 10),
	})

	return deleted, nil
}

// authorizeApproval is the full authorization rule for approve/reject.
func authorizeApproval(actor, target *models.User) error {
	// Superadmins act on pending admins of any tenant.
	if actor.IsSuperAdmin || actor.RoleIs(models.RoleSuperAdmin) {
		if target.RoleIs(models.RoleAdmin) {
			return nil
		}
		return models.ErrForbidden
	}

	// Tenant admins act on non-admins of their own company.
	if actor.RoleIs(models.RoleAdmin) {
		if target.RoleIs(models.RoleAdmin) || target.RoleIs(models.RoleSuperAdmin) {
			return models.ErrForbidden
		}
		if actor.Company == nil || target.Company == nil || *actor.Company != *target.Company {
			return models.ErrForbidden
		}
		return nil
	}

	return models.ErrForbidden
}
