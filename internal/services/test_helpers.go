package services

import (
	"context"
	"time"

	"github.com/rcallister/taskgate/internal/models"
	"github.com/rcallister/taskgate/internal/oauth"
	pkgauth "github.com/rcallister/taskgate/pkg/auth"
)

// MockUserStore implements UserStore for testing
type MockUserStore struct {
	CreateFunc               func(ctx context.Context, user *models.User, password string) (*models.User, error)
	GetByIDFunc              func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc           func(ctx context.Context, email string) (*models.User, error)
	GetByUserIDFunc          func(ctx context.Context, userID string) (*models.User, error)
	UpdateByIDFunc           func(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	ListByCompanyFunc        func(ctx context.Context, company string) ([]*models.User, error)
	ListPendingByCompanyFunc func(ctx context.Context, company string) ([]*models.User, error)
	ListPendingAdminsFunc    func(ctx context.Context) ([]*models.User, error)
	CompanyExistsFunc        func(ctx context.Context, company string) (bool, error)
	DeleteByCompanyFunc      func(ctx context.Context, company string) (int64, error)
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User, password string) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user, password)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) UpdateByID(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if m.UpdateByIDFunc != nil {
		return m.UpdateByIDFunc(ctx, id, upd)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) ListByCompany(ctx context.Context, company string) ([]*models.User, error) {
	if m.ListByCompanyFunc != nil {
		return m.ListByCompanyFunc(ctx, company)
	}
	return []*models.User{}, nil
}

func (m *MockUserStore) ListPendingByCompany(ctx context.Context, company string) ([]*models.User, error) {
	if m.ListPendingByCompanyFunc != nil {
		return m.ListPendingByCompanyFunc(ctx, company)
	}
	return []*models.User{}, nil
}

func (m *MockUserStore) ListPendingAdmins(ctx context.Context) ([]*models.User, error) {
	if m.ListPendingAdminsFunc != nil {
		return m.ListPendingAdminsFunc(ctx)
	}
	return []*models.User{}, nil
}

func (m *MockUserStore) CompanyExists(ctx context.Context, company string) (bool, error) {
	if m.CompanyExistsFunc != nil {
		return m.CompanyExistsFunc(ctx, company)
	}
	return false, nil
}

func (m *MockUserStore) DeleteByCompany(ctx context.Context, company string) (int64, error) {
	if m.DeleteByCompanyFunc != nil {
		return m.DeleteByCompanyFunc(ctx, company)
	}
	return 0, nil
}

// MockCacheInvalidator records which ids were invalidated
type MockCacheInvalidator struct {
	InvalidateFunc func(ctx context.Context, id string)
	Invalidated    []string
}

func (m *MockCacheInvalidator) Invalidate(ctx context.Context, id string) {
	m.Invalidated = append(m.Invalidated, id)
	if m.InvalidateFunc != nil {
		m.InvalidateFunc(ctx, id)
	}
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	SendApprovalNoticeFunc  func(ctx context.Context, email, name string) error
	SendRejectionNoticeFunc func(ctx context.Context, email, name string) error
	SendResetCodeFunc       func(ctx context.Context, email, code string, expiresAt time.Time) error
}

func (m *MockNotifier) SendApprovalNotice(ctx context.Context, email, name string) error {
	if m.SendApprovalNoticeFunc != nil {
		return m.SendApprovalNoticeFunc(ctx, email, name)
	}
	return nil
}

func (m *MockNotifier) SendRejectionNotice(ctx context.Context, email, name string) error {
	if m.SendRejectionNoticeFunc != nil {
		return m.SendRejectionNoticeFunc(ctx, email, name)
	}
	return nil
}

func (m *MockNotifier) SendResetCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendResetCodeFunc != nil {
		return m.SendResetCodeFunc(ctx, email, code, expiresAt)
	}
	return nil
}

// MockProfileFetcher implements GoogleProfileFetcher for testing
type MockProfileFetcher struct {
	AuthCodeURLFunc  func(state string) string
	FetchProfileFunc func(ctx context.Context, code string) (*oauth.Profile, error)
}

func (m *MockProfileFetcher) AuthCodeURL(state string) string {
	if m.AuthCodeURLFunc != nil {
		return m.AuthCodeURLFunc(state)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *MockProfileFetcher) FetchProfile(ctx context.Context, code string) (*oauth.Profile, error) {
	if m.FetchProfileFunc != nil {
		return m.FetchProfileFunc(ctx, code)
	}
	return nil, models.ErrUnauthorized
}

// NewTestUser returns an active local user with a known password hash
func NewTestUser(id, email, name string) *models.User {
	hash, _ := pkgauth.HashPassword("SecurePassword123!")
	role := models.RoleUser
	userID := "handle-" + id
	company := "acme"
	now := time.Now()
	return &models.User{
		ID:           id,
		Name:         name,
		Email:        email,
		UserID:       &userID,
		PasswordHash: &hash,
		AuthProvider: models.ProviderLocal,
		Status:       models.StatusActive,
		Role:         &role,
		Company:      &company,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
