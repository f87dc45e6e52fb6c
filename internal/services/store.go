package services

import (
	"context"

	"github.com/rcallister/taskgate/internal/models"
)

// UserStore is the persistence contract the lifecycle services depend
// on. The pgx-backed repository implements it; tests substitute
// function-field mocks.
type UserStore interface {
	Create(ctx context.Context, user *models.User, password string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
	UpdateByID(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	ListByCompany(ctx context.Context, company string) ([]*models.User, error)
	ListPendingByCompany(ctx context.Context, company string) ([]*models.User, error)
	ListPendingAdmins(ctx context.Context) ([]*models.User, error)
	CompanyExists(ctx context.Context, company string) (bool, error)
	DeleteByCompany(ctx context.Context, company string) (int64, error)
}

// UserCacheInvalidator is the invalidate-on-write hook mutating services
// call so the session cache's staleness window shrinks to one request.
type UserCacheInvalidator interface {
	Invalidate(ctx context.Context, id string)
}
