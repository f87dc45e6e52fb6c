package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rcallister/taskgate/internal/handlers"
	"github.com/rcallister/taskgate/internal/models"
	"github.com/rcallister/taskgate/internal/services"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func pendingUserResponse() *services.UserResponse {
	return &services.UserResponse{
		ID:            "user-1",
		Name:          "Jordan Smith",
		Email:         "jordan@example.com",
		UserID:        strPtr("jordan"),
		Role:          strPtr("user"),
		Company:       strPtr("acme"),
		AccountStatus: "pending",
		AuthProvider:  "local",
	}
}

// ============================================================================
// Register Tests
// ============================================================================

func TestRegister_Success(t *testing.T) {
	accounts := &handlers.MockAccountService{
		RegisterFunc: func(ctx context.Context, in services.RegisterInput) (*services.UserResponse, error) {
			assert.Equal(t, "jordan@example.com", in.Email)
			assert.Equal(t, "ACME-2024", in.CompanyCode)
			return pendingUserResponse(), nil
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Name:        "Jordan Smith",
		Email:       "Jordan@Example.com",
		UserID:      "jordan",
		Password:    "SecurePassword123!",
		CompanyCode: "ACME-2024",
	})
	w := httptest.NewRecorder()
	h.Register(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "pending", resp.AccountStatus)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	accounts := &handlers.MockAccountService{
		RegisterFunc: func(ctx context.Context, in services.RegisterInput) (*services.UserResponse, error) {
			return nil, models.ErrConflict
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Name:        "Jordan Smith",
		Email:       "jordan@example.com",
		UserID:      "jordan",
		Password:    "SecurePassword123!",
		CompanyCode: "ACME-2024",
	})
	w := httptest.NewRecorder()
	h.Register(w, req)

	handlers.AssertErrorResponse(t, w, 400, "conflict")
}

func TestRegister_UnknownCompanyCode(t *testing.T) {
	accounts := &handlers.MockAccountService{
		RegisterFunc: func(ctx context.Context, in services.RegisterInput) (*services.UserResponse, error) {
			return nil, models.ErrInvalidCompanyCode
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Name:        "Jordan Smith",
		Email:       "jordan@example.com",
		UserID:      "jordan",
		Password:    "SecurePassword123!",
		CompanyCode: "NOPE-0000",
	})
	w := httptest.NewRecorder()
	h.Register(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRegister_InvalidEmail(t *testing.T) {
	h := handlers.NewAuthHandler(&handlers.MockAccountService{}, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Name:        "Jordan Smith",
		Email:       "not-an-email",
		UserID:      "jordan",
		Password:    "SecurePassword123!",
		CompanyCode: "ACME-2024",
	})
	w := httptest.NewRecorder()
	h.Register(w, req)

	handlers.AssertErrorResponse(t, w, 400, "validation_error")
}

// ============================================================================
// Login Tests
// ============================================================================

func TestLogin_Success(t *testing.T) {
	accounts := &handlers.MockAccountService{
		LoginFunc: func(ctx context.Context, identifier, password string) (*services.AuthResponse, error) {
			assert.Equal(t, "jordan@example.com", identifier)
			user := pendingUserResponse()
			user.AccountStatus = "active"
			return &services.AuthResponse{Token: "session-token", User: user}, nil
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identifier: "jordan@example.com",
		Password:   "SecurePassword123!",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "session-token", resp.Token)
	assert.Equal(t, "active", resp.User.AccountStatus)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	accounts := &handlers.MockAccountService{
		LoginFunc: func(ctx context.Context, identifier, password string) (*services.AuthResponse, error) {
			return nil, models.ErrUnauthorized
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identifier: "jordan@example.com",
		Password:   "wrong-password",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
}

func TestLogin_UnknownIdentifierLooksLikeBadPassword(t *testing.T) {
	accounts := &handlers.MockAccountService{
		LoginFunc: func(ctx context.Context, identifier, password string) (*services.AuthResponse, error) {
			return nil, models.ErrNotFound
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identifier: "nobody@example.com",
		Password:   "SecurePassword123!",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
}

func TestLogin_PendingAccount(t *testing.T) {
	accounts := &handlers.MockAccountService{
		LoginFunc: func(ctx context.Context, identifier, password string) (*services.AuthResponse, error) {
			return nil, models.ErrAccountPending
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identifier: "jordan@example.com",
		Password:   "SecurePassword123!",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	handlers.AssertErrorResponse(t, w, 403, "pending_approval")
}

func TestLogin_RejectedAccount(t *testing.T) {
	accounts := &handlers.MockAccountService{
		LoginFunc: func(ctx context.Context, identifier, password string) (*services.AuthResponse, error) {
			return nil, models.ErrAccountRejected
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identifier: "jordan@example.com",
		Password:   "SecurePassword123!",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	handlers.AssertErrorResponse(t, w, 403, "account_rejected")
}

func TestLogin_IncompleteAccount(t *testing.T) {
	accounts := &handlers.MockAccountService{
		LoginFunc: func(ctx context.Context, identifier, password string) (*services.AuthResponse, error) {
			return nil, models.ErrAccountIncomplete
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identifier: "jordan@example.com",
		Password:   "SecurePassword123!",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	handlers.AssertErrorResponse(t, w, 403, "account_incomplete")
}

func TestLogin_GoogleOnlyAccount(t *testing.T) {
	accounts := &handlers.MockAccountService{
		LoginFunc: func(ctx context.Context, identifier, password string) (*services.AuthResponse, error) {
			return nil, models.ErrGoogleOnlyAccount
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identifier: "jordan@example.com",
		Password:   "SecurePassword123!",
	})
	w := httptest.NewRecorder()
	h.Login(w, req)

	var resp struct {
		Error               string `json:"error"`
		RequiresGoogleLogin bool   `json:"requiresGoogleLogin"`
	}
	handlers.AssertJSONResponse(t, w, 400, &resp)
	assert.Equal(t, "auth_error", resp.Error)
	assert.True(t, resp.RequiresGoogleLogin)
}

func TestAdminLogin_OrdinaryUserForbidden(t *testing.T) {
	accounts := &handlers.MockAccountService{
		AdminLoginFunc: func(ctx context.Context, identifier, password string) (*services.AuthResponse, error) {
			return nil, models.ErrForbidden
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/admin/login", handlers.LoginRequest{
		Identifier: "jordan@example.com",
		Password:   "SecurePassword123!",
	})
	w := httptest.NewRecorder()
	h.AdminLogin(w, req)

	handlers.AssertErrorResponse(t, w, 403, "authorization_error")
}

// ============================================================================
// ChangePassword Tests
// ============================================================================

func TestChangePassword_Success(t *testing.T) {
	accounts := &handlers.MockAccountService{
		ChangePasswordFunc: func(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
			assert.Equal(t, "user-1", user.ID)
			return nil
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/change-password", handlers.ChangePasswordRequest{
		OldPassword: "SecurePassword123!",
		NewPassword: "EvenMoreSecure456!",
	})
	req = handlers.WithUserContext(req, &models.User{ID: "user-1", Email: "jordan@example.com"})
	w := httptest.NewRecorder()
	h.ChangePassword(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "Password updated", resp["message"])
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	accounts := &handlers.MockAccountService{
		ChangePasswordFunc: func(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
			return models.ErrUnauthorized
		},
	}
	h := handlers.NewAuthHandler(accounts, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/change-password", handlers.ChangePasswordRequest{
		OldPassword: "wrong-password",
		NewPassword: "EvenMoreSecure456!",
	})
	req = handlers.WithUserContext(req, &models.User{ID: "user-1"})
	w := httptest.NewRecorder()
	h.ChangePassword(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
}

func TestChangePassword_NoUserInContext(t *testing.T) {
	h := handlers.NewAuthHandler(&handlers.MockAccountService{}, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/change-password", handlers.ChangePasswordRequest{
		OldPassword: "SecurePassword123!",
		NewPassword: "EvenMoreSecure456!",
	})
	w := httptest.NewRecorder()
	h.ChangePassword(w, req)

	handlers.AssertErrorResponse(t, w, 401, "auth_error")
}

// ============================================================================
// ForgotPassword Tests
// ============================================================================

func TestForgotPassword_GenericResponse(t *testing.T) {
	resets := &handlers.MockResetService{
		RequestFunc: func(ctx context.Context, email string) error {
			return nil
		},
	}
	h := handlers.NewAuthHandler(&handlers.MockAccountService{}, resets)

	req := handlers.NewTestRequest(t, "POST", "/auth/forgot-password", handlers.ForgotPasswordRequest{
		Email: "nobody@example.com",
	})
	w := httptest.NewRecorder()
	h.ForgotPassword(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Contains(t, resp["message"], "If the email is registered")
}

func TestForgotPassword_RateLimited(t *testing.T) {
	resets := &handlers.MockResetService{
		RequestFunc: func(ctx context.Context, email string) error {
			return models.ErrRateLimited
		},
	}
	h := handlers.NewAuthHandler(&handlers.MockAccountService{}, resets)

	req := handlers.NewTestRequest(t, "POST", "/auth/forgot-password", handlers.ForgotPasswordRequest{
		Email: "jordan@example.com",
	})
	w := httptest.NewRecorder()
	h.ForgotPassword(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
}

// ============================================================================
// ResetPassword Tests
// ============================================================================

func TestResetPassword_Success(t *testing.T) {
	resets := &handlers.MockResetService{
		ConfirmFunc: func(ctx context.Context, email, code, newPassword string) error {
			assert.Equal(t, "482913", code)
			return nil
		},
	}
	h := handlers.NewAuthHandler(&handlers.MockAccountService{}, resets)

	req := handlers.NewTestRequest(t, "POST", "/auth/reset-password", handlers.ResetPasswordRequest{
		Email:       "jordan@example.com",
		Code:        "482913",
		NewPassword: "EvenMoreSecure456!",
	})
	w := httptest.NewRecorder()
	h.ResetPassword(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "Password has been reset", resp["message"])
}

func TestResetPassword_InvalidCode(t *testing.T) {
	resets := &handlers.MockResetService{
		ConfirmFunc: func(ctx context.Context, email, code, newPassword string) error {
			return models.ErrResetCodeInvalid
		},
	}
	h := handlers.NewAuthHandler(&handlers.MockAccountService{}, resets)

	req := handlers.NewTestRequest(t, "POST", "/auth/reset-password", handlers.ResetPasswordRequest{
		Email:       "jordan@example.com",
		Code:        "000000",
		NewPassword: "EvenMoreSecure456!",
	})
	w := httptest.NewRecorder()
	h.ResetPassword(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestResetPassword_MalformedCode(t *testing.T) {
	h := handlers.NewAuthHandler(&handlers.MockAccountService{}, &handlers.MockResetService{})

	req := handlers.NewTestRequest(t, "POST", "/auth/reset-password", handlers.ResetPasswordRequest{
		Email:       "jordan@example.com",
		Code:        "12ab56",
		NewPassword: "EvenMoreSecure456!",
	})
	w := httptest.NewRecorder()
	h.ResetPassword(w, req)

	handlers.AssertErrorResponse(t, w, 400, "validation_error")
}
