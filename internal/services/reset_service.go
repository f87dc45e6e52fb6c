package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/rcallister/taskgate/internal/config"
	"github.com/rcallister/taskgate/internal/models"
	pkgauth "github.com/rcallister/taskgate/pkg/auth"
	pkglogger "github.com/rcallister/taskgate/pkg/logger"
)

// ResetService implements recovery by emailed one-time code. Requests
// always report success so the endpoint cannot be used to probe which
// emails are registered; the real outcome only surfaces in the logs.
type ResetService struct {
	store       UserStore
	cache       UserCacheInvalidator
	notifier    Notifier
	authCfg     *config.AuthConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewResetService creates a new ResetService.
func NewResetService(store UserStore, cache UserCacheInvalidator, notifier Notifier, authCfg *config.AuthConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *ResetService {
	return &ResetService{
		store:       store,
		cache:       cache,
		notifier:    notifier,
		authCfg:     authCfg,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Request generates and emails a reset code for the account behind
// email. Unknown addresses return nil so callers see the same response
// either way. Attempts are counted on a rolling hour; past the cap the
// caller gets ErrRateLimited, the one outcome that is allowed to leak.
func (s *ResetService) Request(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("reset requested for unknown email", slog.String("email", pkglogger.SanitizedEmail(email)))
			return nil
		}
		s.logger.Error("failed to look up user for reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	now := time.Now()
	attempts := 1
	if user.LastResetAttempt != nil && now.Sub(*user.LastResetAttempt) < time.Hour {
		if user.ResetAttempts >= s.authCfg.ResetMaxPerHour {
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "reset_rate_limited",
				UserID:        user.ID,
				Success:       false,
				FailureReason: "too many reset requests",
			})
			return models.ErrRateLimited
		}
		attempts = user.ResetAttempts + 1
	}

	code, err := pkgauth.GenerateResetCode()
	if err != nil {
		s.logger.Error("failed to generate reset code", slog.Any("error", err))
		return models.ErrInternalServer
	}

	codeHash, err := pkgauth.HashResetCode(code)
	if err != nil {
		s.logger.Error("failed to hash reset code", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expiry := now.Add(s.authCfg.ResetCodeExpiry)
	if _, err := s.store.UpdateByID(ctx, user.ID, models.UserUpdate{
		ResetCodeHash:    &codeHash,
		ResetCodeExpiry:  &expiry,
		ResetAttempts:    &attempts,
		LastResetAttempt: &now,
	}); err != nil {
		s.logger.Error("failed to store reset state", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.cache.Invalidate(ctx, user.ID)

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "reset_code_issued",
		UserID:    user.ID,
		Success:   true,
	})

	// Delivery happens off the request path; a mail failure must not
	// change the response.
	go func(email, code string, expiresAt time.Time) {
		sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.SendResetCode(sendCtx, email, code, expiresAt); err != nil {
			s.logger.Error("failed to send reset code", slog.String("email", pkglogger.SanitizedEmail(email)), slog.Any("error", err))
		}
	}(user.Email, code, expiry)

	return nil
}

// Confirm checks the submitted code and, when it matches an unexpired
// code, replaces the password and clears the reset state so the code
// cannot be replayed. A Google-only account gains a password here and is
// promoted to hybrid.
func (s *ResetService) Confirm(ctx context.Context, email, code, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrResetCodeInvalid
		}
		return models.ErrInternalServer
	}

	if user.ResetCodeHash == nil || user.ResetCodeExpiry == nil {
		return s.fail(user.ID, "no reset in progress")
	}
	if time.Now().After(*user.ResetCodeExpiry) {
		return s.fail(user.ID, "reset code expired")
	}
	if err := pkgauth.CompareResetCode(*user.ResetCodeHash, code); err != nil {
		return s.fail(user.ID, "reset code mismatch")
	}

	upd := models.UserUpdate{
		Password:        &newPassword,
		ClearResetState: true,
	}
	if user.AuthProvider == models.ProviderGoogle {
		hybrid := models.ProviderHybrid
		upd.AuthProvider = &hybrid
	}

	if _, err := s.store.UpdateByID(ctx, user.ID, upd); err != nil {
		s.logger.Error("failed to apply password reset", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.cache.Invalidate(ctx, user.ID)

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "password_reset",
		UserID:    user.ID,
		Success:   true,
	})

	return nil
}

func (s *ResetService) fail(userID, reason string) error {
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "password_reset",
		UserID:        userID,
		Success:       false,
		FailureReason: reason,
	})
	return models.ErrResetCodeInvalid
}
