package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rcallister/taskgate/internal/models"
	"github.com/rcallister/taskgate/internal/services"
	pkgauth "github.com/rcallister/taskgate/pkg/auth"
	pkghttp "github.com/rcallister/taskgate/pkg/http"
)

// OAuthServiceInterface defines the interface for external identity flows
type OAuthServiceInterface interface {
	BeginFlow() (string, error)
	HandleCallback(ctx context.Context, state, code string) (*services.CallbackResult, error)
	SelectRole(ctx context.Context, token string, role models.Role) (*services.CallbackResult, error)
	CompleteAccount(ctx context.Context, token string, in services.CompleteAccountInput) (*services.CallbackResult, error)
}

// OAuthHandler handles Google sign-in and the continuation flows that
// finish an externally-created account
type OAuthHandler struct {
	service OAuthServiceInterface
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(service OAuthServiceInterface) *OAuthHandler {
	return &OAuthHandler{service: service}
}

// SelectRoleRequest represents the request body for role selection
type SelectRoleRequest struct {
	Token string `json:"token" validate:"required"`
	Role  string `json:"role" validate:"required,oneof=user admin"`
}

// CompleteAccountRequest represents the request body for account completion
type CompleteAccountRequest struct {
	Token       string `json:"token" validate:"required"`
	UserID      string `json:"userId" validate:"required,min=3,max=50"`
	Password    string `json:"password" validate:"required"`
	CompanyCode string `json:"companyCode"`
}

// GoogleLogin redirects the browser to the Google consent screen
func (h *OAuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.BeginFlow()
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback finishes the Google exchange. Depending on the account
// it either opens a session or hands back a continuation token.
func (h *OAuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		pkghttp.WriteBadRequest(w, "Missing state or code parameter")
		return
	}

	result, err := h.service.HandleCallback(r.Context(), state, code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Google sign-in failed")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Google profile has no email")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// SelectRole records the role choice for an incomplete account
func (h *OAuthHandler) SelectRole(w http.ResponseWriter, r *http.Request) {
	var req SelectRoleRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	result, err := h.service.SelectRole(r.Context(), req.Token, models.Role(req.Role))
	if err != nil {
		writeContinuationError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// CompleteAccount finishes an externally-created account
func (h *OAuthHandler) CompleteAccount(w http.ResponseWriter, r *http.Request) {
	var req CompleteAccountRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	result, err := h.service.CompleteAccount(r.Context(), req.Token, services.CompleteAccountInput{
		UserID:      strings.TrimSpace(req.UserID),
		Password:    req.Password,
		CompanyCode: strings.TrimSpace(req.CompanyCode),
	})
	if err != nil {
		writeContinuationError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

func writeContinuationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Invalid or expired continuation token")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "That userId is already taken")
	case errors.Is(err, models.ErrInvalidCompanyCode):
		pkghttp.WriteBadRequest(w, "Unknown company code")
	case errors.Is(err, models.ErrAccountPending):
		pkghttp.WriteError(w, http.StatusForbidden, "pending_approval", "Your account is awaiting approval")
	case errors.Is(err, models.ErrAccountRejected):
		pkghttp.WriteError(w, http.StatusForbidden, "account_rejected", "Your account registration was rejected")
	case errors.Is(err, pkgauth.ErrWeakPassword):
		pkghttp.WriteValidationError(w, err.Error())
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
