package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rcallister/taskgate/internal/auth"
	"github.com/rcallister/taskgate/internal/models"
	"github.com/rcallister/taskgate/internal/services"
	pkghttp "github.com/rcallister/taskgate/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithUserContext adds a resolved user to the request context, standing in
// for the session middleware on authenticated endpoints
func WithUserContext(req *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserContextKey, user)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	RegisterFunc       func(ctx context.Context, in services.RegisterInput) (*services.UserResponse, error)
	RegisterAdminFunc  func(ctx context.Context, in services.RegisterInput) (*services.UserResponse, error)
	LoginFunc          func(ctx context.Context, identifier, password string) (*services.AuthResponse, error)
	AdminLoginFunc     func(ctx context.Context, identifier, password string) (*services.AuthResponse, error)
	ChangePasswordFunc func(ctx context.Context, user *models.User, oldPassword, newPassword string) error
	DirectoryFunc      func(ctx context.Context, user *models.User) ([]*services.UserResponse, error)
}

func (m *MockAccountService) Register(ctx context.Context, in services.RegisterInput) (*services.UserResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, in)
}

func (m *MockAccountService) RegisterAdmin(ctx context.Context, in services.RegisterInput) (*services.UserResponse, error) {
	if m.RegisterAdminFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterAdminFunc(ctx, in)
}

func (m *MockAccountService) Login(ctx context.Context, identifier, password string) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, identifier, password)
}

func (m *MockAccountService) AdminLogin(ctx context.Context, identifier, password string) (*services.AuthResponse, error) {
	if m.AdminLoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.AdminLoginFunc(ctx, identifier, password)
}

func (m *MockAccountService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, user, oldPassword, newPassword)
}

func (m *MockAccountService) Directory(ctx context.Context, user *models.User) ([]*services.UserResponse, error) {
	if m.DirectoryFunc == nil {
		return []*services.UserResponse{}, nil
	}
	return m.DirectoryFunc(ctx, user)
}

// MockResetService implements ResetServiceInterface for testing
type MockResetService struct {
	RequestFunc func(ctx context.Context, email string) error
	ConfirmFunc func(ctx context.Context, email, code, newPassword string) error
}

func (m *MockResetService) Request(ctx context.Context, email string) error {
	if m.RequestFunc == nil {
		return nil
	}
	return m.RequestFunc(ctx, email)
}

func (m *MockResetService) Confirm(ctx context.Context, email, code, newPassword string) error {
	if m.ConfirmFunc == nil {
		return models.ErrResetCodeInvalid
	}
	return m.ConfirmFunc(ctx, email, code, newPassword)
}

// MockOAuthService implements OAuthServiceInterface for testing
type MockOAuthService struct {
	BeginFlowFunc       func() (string, error)
	HandleCallbackFunc  func(ctx context.Context, state, code string) (*services.CallbackResult, error)
	SelectRoleFunc      func(ctx context.Context, token string, role models.Role) (*services.CallbackResult, error)
	CompleteAccountFunc func(ctx context.Context, token string, in services.CompleteAccountInput) (*services.CallbackResult, error)
}

func (m *MockOAuthService) BeginFlow() (string, error) {
	if m.BeginFlowFunc == nil {
		return "https://accounts.google.com/o/oauth2/auth?state=test", nil
	}
	return m.BeginFlowFunc()
}

func (m *MockOAuthService) HandleCallback(ctx context.Context, state, code string) (*services.CallbackResult, error) {
	if m.HandleCallbackFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.HandleCallbackFunc(ctx, state, code)
}

func (m *MockOAuthService) SelectRole(ctx context.Context, token string, role models.Role) (*services.CallbackResult, error) {
	if m.SelectRoleFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.SelectRoleFunc(ctx, token, role)
}

func (m *MockOAuthService) CompleteAccount(ctx context.Context, token string, in services.CompleteAccountInput) (*services.CallbackResult, error) {
	if m.CompleteAccountFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.CompleteAccountFunc(ctx, token, in)
}

// MockApprovalService implements ApprovalServiceInterface for testing
type MockApprovalService struct {
	ApproveFunc            func(ctx context.Context, actor *models.User, targetID string) (*services.UserResponse, error)
	RejectFunc             func(ctx context.Context, actor *models.User, targetID string) (*services.UserResponse, error)
	PendingUsersFunc       func(ctx context.Context, actor *models.User) ([]*services.UserResponse, error)
	PendingAdminsFunc      func(ctx context.Context) ([]*services.UserResponse, error)
	CreateCompanyAdminFunc func(ctx context.Context, actor *models.User, in services.CreateCompanyAdminInput) (*services.UserResponse, error)
	DeleteCompanyFunc      func(ctx context.Context, actor *models.User, company string) (int64, error)
}

func (m *MockApprovalService) Approve(ctx context.Context, actor *models.User, targetID string) (*services.UserResponse, error) {
	if m.ApproveFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ApproveFunc(ctx, actor, targetID)
}

func (m *MockApprovalService) Reject(ctx context.Context, actor *models.User, targetID string) (*services.UserResponse, error) {
	if m.RejectFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.RejectFunc(ctx, actor, targetID)
}

func (m *MockApprovalService) PendingUsers(ctx context.Context, actor *models.User) ([]*services.UserResponse, error) {
	if m.PendingUsersFunc == nil {
		return []*services.UserResponse{}, nil
	}
	return m.PendingUsersFunc(ctx, actor)
}

func (m *MockApprovalService) PendingAdmins(ctx context.Context) ([]*services.UserResponse, error) {
	if m.PendingAdminsFunc == nil {
		return []*services.UserResponse{}, nil
	}
	return m.PendingAdminsFunc(ctx)
}

func (m *MockApprovalService) CreateCompanyAdmin(ctx context.Context, actor *models.User, in services.CreateCompanyAdminInput) (*services.UserResponse, error) {
	if m.CreateCompanyAdminFunc == nil {
		return nil, models.ErrConflict
	}
	return m.CreateCompanyAdminFunc(ctx, actor, in)
}

func (m *MockApprovalService) DeleteCompany(ctx context.Context, actor *models.User, company string) (int64, error) {
	if m.DeleteCompanyFunc == nil {
		return 0, models.ErrNotFound
	}
	return m.DeleteCompanyFunc(ctx, actor, company)
}
