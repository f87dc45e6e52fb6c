package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rcallister/taskgate/internal/auth"
	"github.com/rcallister/taskgate/internal/models"
	"github.com/rcallister/taskgate/internal/services"
	pkgauth "github.com/rcallister/taskgate/pkg/auth"
	pkghttp "github.com/rcallister/taskgate/pkg/http"
)

// AccountServiceInterface defines the interface for account business logic
type AccountServiceInterface interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.UserResponse, error)
	RegisterAdmin(ctx context.Context, in services.RegisterInput) (*services.UserResponse, error)
	Login(ctx context.Context, identifier, password string) (*services.AuthResponse, error)
	AdminLogin(ctx context.Context, identifier, password string) (*services.AuthResponse, error)
	ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error
	Directory(ctx context.Context, user *models.User) ([]*services.UserResponse, error)
}

// ResetServiceInterface defines the interface for password recovery
type ResetServiceInterface interface {
	Request(ctx context.Context, email string) error
	Confirm(ctx context.Context, email, code, newPassword string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	accounts AccountServiceInterface
	resets   ResetServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts AccountServiceInterface, resets ResetServiceInterface) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		resets:   resets,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Email       string `json:"email" validate:"required,email"`
	UserID      string `json:"userId" validate:"required,min=3,max=50"`
	Password    string `json:"password" validate:"required"`
	CompanyCode string `json:"companyCode" validate:"required,min=1"`
}

// LoginRequest represents the request body for login. The identifier is
// a userId or an email; anything containing "@" is tried as email first.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// ForgotPasswordRequest represents the request body for a reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for a reset confirmation
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// googleOnlyResponse tells a password-login caller that this account
// authenticates through Google.
type googleOnlyResponse struct {
	Error               string `json:"error"`
	Message             string `json:"message"`
	RequiresGoogleLogin bool   `json:"requiresGoogleLogin"`
}

// Register handles local self-registration into an existing tenant
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, h.accounts.Register)
}

// RegisterAdmin handles admin self-registration into an existing tenant
func (h *AuthHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, h.accounts.RegisterAdmin)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request, create func(context.Context, services.RegisterInput) (*services.UserResponse, error)) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	user, err := create(r.Context(), services.RegisterInput{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		UserID:      strings.TrimSpace(req.UserID),
		Password:    req.Password,
		CompanyCode: strings.TrimSpace(req.CompanyCode),
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Email or userId is already registered")
		case errors.Is(err, models.ErrInvalidCompanyCode):
			pkghttp.WriteBadRequest(w, "Unknown company code")
		case errors.Is(err, pkgauth.ErrWeakPassword), errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteValidationError(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, user)
}

// Login handles password login for ordinary accounts
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.accounts.Login)
}

// AdminLogin handles password login restricted to admin roles
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.accounts.AdminLogin)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, authenticate func(context.Context, string, string) (*services.AuthResponse, error)) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	authResp, err := authenticate(r.Context(), strings.TrimSpace(req.Identifier), req.Password)
	if err != nil {
		writeLoginError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, authResp)
}

// Lifecycle failures are deliberately distinguishable here: a pending
// user is told to wait, a rejected one that the answer is final.
func writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrGoogleOnlyAccount):
		pkghttp.WriteJSON(w, http.StatusBadRequest, googleOnlyResponse{
			Error:               "auth_error",
			Message:             "This account signs in with Google",
			RequiresGoogleLogin: true,
		})
	case errors.Is(err, models.ErrAccountPending):
		pkghttp.WriteError(w, http.StatusForbidden, "pending_approval", "Your account is awaiting approval")
	case errors.Is(err, models.ErrAccountRejected):
		pkghttp.WriteError(w, http.StatusForbidden, "account_rejected", "Your account registration was rejected")
	case errors.Is(err, models.ErrAccountIncomplete):
		pkghttp.WriteError(w, http.StatusForbidden, "account_incomplete", "Finish account setup before signing in")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Insufficient privileges")
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrNotFound):
		pkghttp.WriteUnauthorized(w, "Invalid credentials")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Profile returns the caller's own record
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, services.UserToResponse(user))
}

// ChangePassword handles an authenticated password change
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), user, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case errors.Is(err, models.ErrGoogleOnlyAccount):
			pkghttp.WriteJSON(w, http.StatusBadRequest, googleOnlyResponse{
				Error:               "auth_error",
				Message:             "This account signs in with Google",
				RequiresGoogleLogin: true,
			})
		case errors.Is(err, pkgauth.ErrWeakPassword), errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteValidationError(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// Directory lists the active members of the caller's tenant
func (h *AuthHandler) Directory(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	members, err := h.accounts.Directory(r.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "No tenant attached to this account")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"users": members})
}

// ForgotPassword starts recovery by emailed code. The response is the
// same whether or not the email exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	if err := h.resets.Request(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimited):
			pkghttp.WriteTooManyRequests(w, "Too many reset requests. Please try again later.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "If the email is registered, a reset code has been sent.",
	})
}

// ResetPassword confirms recovery with the emailed code
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	if err := h.resets.Confirm(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, models.ErrResetCodeInvalid):
			pkghttp.WriteBadRequest(w, "Invalid or expired reset code")
		case errors.Is(err, pkgauth.ErrWeakPassword), errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteValidationError(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}
