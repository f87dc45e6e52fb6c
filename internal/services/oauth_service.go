package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/rcallister/taskgate/internal/auth"
	"github.com/rcallister/taskgate/internal/config"
	"github.com/rcallister/taskgate/internal/models"
	"github.com/rcallister/taskgate/internal/oauth"
	pkgauth "github.com/rcallister/taskgate/pkg/auth"
	pkglogger "github.com/rcallister/taskgate/pkg/logger"
)

// GoogleProfileFetcher abstracts the OAuth code exchange so the linker
// is testable without Google.
type GoogleProfileFetcher interface {
	AuthCodeURL(state string) string
	FetchProfile(ctx context.Context, code string) (*oauth.Profile, error)
}

// OAuthService reconciles externally-authenticated identities with local
// accounts and drives the two continuation flows that finish an account:
// role selection and completion. This is the only place an account can
// enter the incomplete state.
type OAuthService struct {
	store       UserStore
	tokens      *auth.TokenService
	provider    GoogleProfileFetcher
	cache       UserCacheInvalidator
	authCfg     *config.AuthConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewOAuthService creates a new OAuthService.
func NewOAuthService(store UserStore, tokens *auth.TokenService, provider GoogleProfileFetcher, cache UserCacheInvalidator, authCfg *config.AuthConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *OAuthService {
	return &OAuthService{
		store:       store,
		tokens:      tokens,
		provider:    provider,
		cache:       cache,
		authCfg:     authCfg,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// CallbackResult is what the session layer renders after the Google
// callback: either a full session or a continuation into role selection
// or completion.
type CallbackResult struct {
	RequiresCompletion bool          `json:"requiresCompletion"`
	NextStep           string        `json:"nextStep,omitempty"` // "role_selection" or "account_completion"
	ContinuationToken  string        `json:"continuationToken,omitempty"`
	Session            *AuthResponse `json:"session,omitempty"`
}

// BeginFlow returns the Google consent URL. The state parameter is a
// signed short-lived token, so the callback verifies it statelessly.
func (s *OAuthService) BeginFlow() (string, error) {
	state, err := s.tokens.GenerateScopedToken(models.PurposeOAuthState, uuid.New().String(), "", s.authCfg.OAuthStateExpiry)
	if err != nil {
		return "", models.ErrInternalServer
	}
	return s.provider.AuthCodeURL(state), nil
}

// HandleCallback verifies state, exchanges the code, and links the
// Google identity to a local account.
func (s *OAuthService) HandleCallback(ctx context.Context, state, code string) (*CallbackResult, error) {
	if _, err := s.tokens.ValidateScopedToken(state, models.PurposeOAuthState); err != nil {
		return nil, models.ErrUnauthorized
	}

	profile, err := s.provider.FetchProfile(ctx, code)
	if err != nil {
		s.logger.Warn("google code exchange failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	return s.Link(ctx, profile)
}

// Link reconciles a verified Google profile with the local store.
func (s *OAuthService) Link(ctx context.Context, profile *oauth.Profile) (*CallbackResult, error) {
	if profile == nil || strings.TrimSpace(profile.Email) == "" {
		// Without an email there is nothing to merge on.
		return nil, models.ErrBadRequest
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up user for oauth link", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if errors.Is(err, models.ErrNotFound) {
		user, err = s.createIncomplete(ctx, profile, email)
		if err != nil {
			return nil, err
		}
		return s.continuation(user)
	}

	// Attach the external identity on first Google sign-in of an
	// existing local account.
	if user.ExternalID == nil {
		user, err = s.store.UpdateByID(ctx, user.ID, models.UserUpdate{ExternalID: &profile.ExternalID})
		if err != nil {
			s.logger.Error("failed to attach external id", slog.String("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		s.cache.Invalidate(ctx, user.ID)
		s.auditLogger.LogAccountAction("external_identity_linked", user.ID, user.ID, nil)
	}

	// An active account with a role gets an ordinary login; anything
	// else is sent back into the completion flow.
	if user.Status == models.StatusActive && user.Role != nil {
		token, err := s.tokens.GenerateSessionToken(user.ID)
		if err != nil {
			s.logger.Error("failed to generate session token", slog.String("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType: "google_login_success",
			UserID:    user.ID,
			Success:   true,
		})
		return &CallbackResult{
			Session: &AuthResponse{Token: token, User: UserToResponse(user)},
		}, nil
	}

	return s.continuation(user)
}

func (s *OAuthService) createIncomplete(ctx context.Context, profile *oauth.Profile, email string) (*models.User, error) {
	user := &models.User{
		Name:         profile.Name,
		Email:        email,
		AuthProvider: models.ProviderGoogle,
		Status:       models.StatusIncomplete,
		ExternalID:   &profile.ExternalID,
	}

	created, err := s.store.Create(ctx, user, "")
	if err != nil {
		s.logger.Error("failed to create incomplete account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("google_account_created", created.ID, "", nil)
	return created, nil
}

func (s *OAuthService) continuation(user *models.User) (*CallbackResult, error) {
	purpose := models.PurposeRoleSelection
	if user.Role != nil {
		purpose = models.PurposeAccountCompletion
	}

	token, err := s.tokens.GenerateScopedToken(purpose, user.ID, user.Email, s.authCfg.ContinuationExpiry)
	if err != nil {
		s.logger.Error("failed to generate continuation token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &CallbackResult{
		RequiresCompletion: true,
		NextStep:           string(purpose),
		ContinuationToken:  token,
	}, nil
}

// SelectRole records the chosen role for an incomplete account and hands
// back an account-completion token. Only the role-selection purpose is
// accepted here.
func (s *OAuthService) SelectRole(ctx context.Context, tokenString string, role models.Role) (*CallbackResult, error) {
	claims, err := s.tokens.ValidateScopedToken(tokenString, models.PurposeRoleSelection)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	if !role.Selectable() {
		return nil, models.ErrBadRequest
	}

	user, err := s.store.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrInternalServer
	}

	if user.Status != models.StatusIncomplete {
		return nil, models.ErrBadRequest
	}

	user, err = s.store.UpdateByID(ctx, user.ID, models.UserUpdate{Role: &role})
	if err != nil {
		s.logger.Error("failed to set role", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	s.cache.Invalidate(ctx, user.ID)

	completionToken, err := s.tokens.GenerateScopedToken(models.PurposeAccountCompletion, user.ID, user.Email, s.authCfg.ContinuationExpiry)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("role_selected", user.ID, user.ID, map[string]string{"role": string(role)})

	return &CallbackResult{
		RequiresCompletion: true,
		NextStep:           string(models.PurposeAccountCompletion),
		ContinuationToken:  completionToken,
	}, nil
}

// CompleteAccountInput carries the final account-completion fields.
type CompleteAccountInput struct {
	UserID      string
	Password    string
	CompanyCode string
}

// CompleteAccount finishes an externally-created account: sets the login
// handle and password, and either activates immediately (no tenant) or
// parks the account in pending for approval (tenant code supplied, must
// resolve to an existing tenant). Accepts only the account-completion
// purpose.
func (s *OAuthService) CompleteAccount(ctx context.Context, tokenString string, in CompleteAccountInput) (*CallbackResult, error) {
	claims, err := s.tokens.ValidateScopedToken(tokenString, models.PurposeAccountCompletion)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	user, err := s.store.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrInternalServer
	}

	switch user.Status {
	case models.StatusIncomplete:
		// proceed
	case models.StatusPending:
		return nil, models.ErrAccountPending
	case models.StatusRejected:
		return nil, models.ErrAccountRejected
	default:
		return nil, models.ErrBadRequest
	}

	in.UserID = strings.TrimSpace(in.UserID)
	in.CompanyCode = strings.TrimSpace(in.CompanyCode)

	if in.UserID == "" {
		return nil, models.ErrBadRequest
	}
	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	if existing, err := s.store.GetByUserID(ctx, in.UserID); err == nil && existing.ID != user.ID {
		return nil, models.ErrConflict
	} else if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInternalServer
	}

	upd := models.UserUpdate{
		UserID:   &in.UserID,
		Password: &in.Password,
	}

	// Setting a password on a Google account makes both methods usable.
	if user.AuthProvider == models.ProviderGoogle {
		hybrid := models.ProviderHybrid
		upd.AuthProvider = &hybrid
	}

	next := models.StatusActive
	if in.CompanyCode != "" {
		exists, err := s.store.CompanyExists(ctx, in.CompanyCode)
		if err != nil {
			return nil, models.ErrInternalServer
		}
		if !exists {
			return nil, models.ErrInvalidCompanyCode
		}
		upd.Company = &in.CompanyCode
		next = models.StatusPending
	}
	upd.Status = &next

	updated, err := s.store.UpdateByID(ctx, user.ID, upd)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to complete account", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	s.cache.Invalidate(ctx, updated.ID)

	s.auditLogger.LogAccountAction("account_completed", updated.ID, updated.ID, map[string]string{
		"status": string(next),
	})

	// Tenant-less completion is immediately usable.
	if next == models.StatusActive {
		token, err := s.tokens.GenerateSessionToken(updated.ID)
		if err != nil {
			return nil, models.ErrInternalServer
		}
		return &CallbackResult{
			Session: &AuthResponse{Token: token, User: UserToResponse(updated)},
		}, nil
	}

	return &CallbackResult{
		RequiresCompletion: false,
		NextStep:           "pending_approval",
	}, nil
}
