package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rcallister/taskgate/internal/auth"
	"github.com/rcallister/taskgate/internal/models"
	"github.com/rcallister/taskgate/internal/services"
	pkgauth "github.com/rcallister/taskgate/pkg/auth"
	pkghttp "github.com/rcallister/taskgate/pkg/http"
)

// SuperAdminHandler handles platform-wide administration
type SuperAdminHandler struct {
	approvals ApprovalServiceInterface
}

// NewSuperAdminHandler creates a new SuperAdminHandler
func NewSuperAdminHandler(approvals ApprovalServiceInterface) *SuperAdminHandler {
	return &SuperAdminHandler{approvals: approvals}
}

// CreateAdminRequest represents the request body for provisioning a tenant admin
type CreateAdminRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Email       string `json:"email" validate:"required,email"`
	UserID      string `json:"userId" validate:"required,min=3,max=50"`
	Password    string `json:"password" validate:"required"`
	CompanyCode string `json:"companyCode" validate:"required,min=1"`
}

// PendingAdmins lists admin accounts awaiting superadmin approval
func (h *SuperAdminHandler) PendingAdmins(w http.ResponseWriter, r *http.Request) {
	pending, err := h.approvals.PendingAdmins(r.Context())
	if err != nil {
		writeApprovalError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"users": pending})
}

// AdminAction approves or rejects one pending admin account
func (h *SuperAdminHandler) AdminAction(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UserActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	decide := h.approvals.Approve
	if strings.EqualFold(req.Action, "reject") {
		decide = h.approvals.Reject
	}

	user, err := decide(r.Context(), actor, req.UserID)
	if err != nil {
		writeApprovalError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// CreateAdmin provisions a tenant admin directly into active. Creating
// the first admin of a new company code is what creates the tenant.
func (h *SuperAdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	user, err := h.approvals.CreateCompanyAdmin(r.Context(), actor, services.CreateCompanyAdminInput{
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
		case errors.Is(err, pkgauth.ErrWeakPassword), errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteValidationError(w, err.Error())
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Superadmin privileges required")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, user)
}

// DeleteCompany removes a tenant and every account attached to it
func (h *SuperAdminHandler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	company := strings.TrimSpace(chi.URLParam(r, "code"))
	if company == "" {
		pkghttp.WriteBadRequest(w, "Missing company code")
		return
	}

	deleted, err := h.approvals.DeleteCompany(r.Context(), actor, company)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Superadmin privileges required")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Company not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"message":      "Company deleted",
		"deletedUsers": deleted,
	})
}
