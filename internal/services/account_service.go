package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/rcallister/taskgate/internal/auth"
	"github.com/rcallister/taskgate/internal/models"
	pkgauth "github.com/rcallister/taskgate/pkg/auth"
	pkglogger "github.com/rcallister/taskgate/pkg/logger"
)

// AccountService owns the account lifecycle: registration, login, and
// password changes. Status transitions go through the lifecycle table in
// models; only active accounts ever receive a session token.
type AccountService struct {
	store       UserStore
	tokens      *auth.TokenService
	cache       UserCacheInvalidator
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAccountService creates a new AccountService.
func NewAccountService(store UserStore, tokens *auth.TokenService, cache UserCacheInvalidator, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AccountService {
	return &AccountService{
		store:       store,
		tokens:      tokens,
		cache:       cache,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in HTTP responses.
type UserResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	UserID        *string `json:"userId,omitempty"`
	Role          *string `json:"role,omitempty"`
	Company       *string `json:"company,omitempty"`
	AccountStatus string  `json:"accountStatus"`
	AuthProvider  string  `json:"authProvider"`
	IsSuperAdmin  bool    `json:"isSuperAdmin"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// AuthResponse is returned by login and other token-minting operations.
type AuthResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// RegisterInput carries local self-registration fields.
type RegisterInput struct {
	Name        string
	Email       string
	UserID      string
	Password    string
	CompanyCode string
}

// Register performs local self-registration into an existing tenant.
// The new account lands in pending and waits for its tenant admin.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*UserResponse, error) {
	return s.register(ctx, in, models.RoleUser)
}

// RegisterAdmin self-registers a tenant admin. Admin accounts are
// approved globally by a superadmin, not by tenant peers.
func (s *AccountService) RegisterAdmin(ctx context.Context, in RegisterInput) (*UserResponse, error) {
	return s.register(ctx, in, models.RoleAdmin)
}

func (s *AccountService) register(ctx context.Context, in RegisterInput, role models.Role) (*UserResponse, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.UserID = strings.TrimSpace(in.UserID)
	in.CompanyCode = strings.TrimSpace(in.CompanyCode)

	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	// A company code must resolve to an existing tenant. The tenant key
	// is denormalized: any account carrying it proves it exists.
	exists, err := s.store.CompanyExists(ctx, in.CompanyCode)
	if err != nil {
		s.logger.Error("failed to check company code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !exists {
		return nil, models.ErrInvalidCompanyCode
	}

	if err := s.checkUnique(ctx, in.Email, in.UserID); err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		UserID:       &in.UserID,
		AuthProvider: models.ProviderLocal,
		Status:       models.StatusPending,
		Role:         &role,
		Company:      &in.CompanyCode,
	}

	created, err := s.store.Create(ctx, user, in.Password)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered",
		slog.String("user_id", created.ID),
		slog.String("role", string(role)))
	s.auditLogger.LogAccountAction("user_registered", created.ID, "", map[string]string{
		"company": created.CompanyKey(),
		"role":    string(role),
	})

	return UserToResponse(created), nil
}

// Login authenticates by email or login handle and returns a session
// token. Pending and rejected accounts fail with distinguishable errors
// so the client can render the right screen; everything else collapses
// to invalid credentials.
func (s *AccountService) Login(ctx context.Context, identifier, password string) (*AuthResponse, error) {
	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// A missing hash means google-only: report it before any password
	// comparison so the client redirects instead of retrying passwords.
	if !user.HasPassword() {
		return nil, models.ErrGoogleOnlyAccount
	}

	if err := statusGate(user); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: string(user.Status),
			Success:       false,
		})
		return nil, err
	}

	if err := pkgauth.ComparePassword(*user.PasswordHash, password); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrUnauthorized
	}

	return s.issueSession(user)
}

// AdminLogin is Login restricted to admin and superadmin accounts.
func (s *AccountService) AdminLogin(ctx context.Context, identifier, password string) (*AuthResponse, error) {
	resp, err := s.Login(ctx, identifier, password)
	if err != nil {
		return nil, err
	}

	role := resp.User.Role
	if resp.User.IsSuperAdmin || (role != nil && (*role == string(models.RoleAdmin) || *role == string(models.RoleSuperAdmin))) {
		return resp, nil
	}

	return nil, models.ErrForbidden
}

// ChangePassword verifies the old password and sets a new one. Accounts
// without a password are directed to the reset flow, which also promotes
// google accounts to hybrid.
func (s *AccountService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
	if !user.HasPassword() {
		return models.ErrGoogleOnlyAccount
	}

	if err := pkgauth.ComparePassword(*user.PasswordHash, oldPassword); err != nil {
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	if _, err := s.store.UpdateByID(ctx, user.ID, models.UserUpdate{Password: &newPassword}); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.cache.Invalidate(ctx, user.ID)
	s.auditLogger.LogAccountAction("password_changed", user.ID, user.ID, nil)
	return nil
}

// Directory lists the active members of the caller's company. Pending
// and rejected accounts are invisible to peers. Superadmins have no
// tenant and therefore no directory.
func (s *AccountService) Directory(ctx context.Context, user *models.User) ([]*UserResponse, error) {
	if user.Company == nil {
		return []*UserResponse{}, nil
	}

	users, err := s.store.ListByCompany(ctx, *user.Company)
	if err != nil {
		s.logger.Error("failed to list company directory", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return UsersToResponses(users), nil
}

func (s *AccountService) issueSession(user *models.User) (*AuthResponse, error) {
	token, err := s.tokens.GenerateSessionToken(user.ID)
	if err != nil {
		s.logger.Error("failed to generate session token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Success:   true,
	})

	return &AuthResponse{
		Token: token,
		User:  UserToResponse(user),
	}, nil
}

func (s *AccountService) findByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, models.ErrNotFound
	}

	if strings.Contains(identifier, "@") {
		return s.store.GetByEmail(ctx, identifier)
	}

	user, err := s.store.GetByUserID(ctx, identifier)
	if errors.Is(err, models.ErrNotFound) {
		return s.store.GetByEmail(ctx, identifier)
	}
	return user, err
}

func (s *AccountService) checkUnique(ctx context.Context, email, userID string) error {
	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		return models.ErrInternalServer
	}

	if userID != "" {
		if _, err := s.store.GetByUserID(ctx, userID); err == nil {
			return models.ErrConflict
		} else if !errors.Is(err, models.ErrNotFound) {
			return models.ErrInternalServer
		}
	}

	return nil
}

// statusGate maps a non-active status to its login error.
func statusGate(user *models.User) error {
	switch user.Status {
	case models.StatusActive:
		return nil
	case models.StatusPending:
		return models.ErrAccountPending
	case models.StatusRejected:
		return models.ErrAccountRejected
	case models.StatusIncomplete:
		return models.ErrAccountIncomplete
	}
	return models.ErrUnauthorized
}

// UserToResponse converts a user model to its response DTO.
func UserToResponse(user *models.User) *UserResponse {
	var role *string
	if user.Role != nil {
		r := string(*user.Role)
		role = &r
	}

	return &UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		UserID:        user.UserID,
		Role:          role,
		Company:       user.Company,
		AccountStatus: string(user.Status),
		AuthProvider:  string(user.AuthProvider),
		IsSuperAdmin:  user.IsSuperAdmin,
		CreatedAt:     user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:     user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// UsersToResponses converts a slice of users.
func UsersToResponses(users []*models.User) []*UserResponse {
	out := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserToResponse(u))
	}
	return out
}
