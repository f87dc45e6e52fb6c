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
	pkghttp "github.com/rcallister/taskgate/pkg/http"
)

// ApprovalServiceInterface defines the interface for approval workflows
type ApprovalServiceInterface interface {
	Approve(ctx context.Context, actor *models.User, targetID string) (*services.UserResponse, error)
	Reject(ctx context.Context, actor *models.User, targetID string) (*services.UserResponse, error)
	PendingUsers(ctx context.Context, actor *models.User) ([]*services.UserResponse, error)
	PendingAdmins(ctx context.Context) ([]*services.UserResponse, error)
	CreateCompanyAdmin(ctx context.Context, actor *models.User, in services.CreateCompanyAdminInput) (*services.UserResponse, error)
	DeleteCompany(ctx context.Context, actor *models.User, company string) (int64, error)
}

// AdminHandler handles tenant-scoped approval requests
type AdminHandler struct {
	approvals ApprovalServiceInterface
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(approvals ApprovalServiceInterface) *AdminHandler {
	return &AdminHandler{approvals: approvals}
}

// UserActionRequest represents an approve/reject decision on one account
type UserActionRequest struct {
	UserID string `json:"userId" validate:"required"`
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

// PendingUsers lists the pending non-admin accounts of the caller's tenant
func (h *AdminHandler) PendingUsers(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	pending, err := h.approvals.PendingUsers(r.Context(), actor)
	if err != nil {
		writeApprovalError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"users": pending})
}

// UserAction approves or rejects one pending account. Repeating a
// decision is a no-op, not an error.
func (h *AdminHandler) UserAction(w http.ResponseWriter, r *http.Request) {
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

func writeApprovalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "User not found")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Not allowed to act on this account")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Account cannot transition from its current status")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
