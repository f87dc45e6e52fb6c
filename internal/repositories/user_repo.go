package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rcallister/taskgate/internal/database"
	"github.com/rcallister/taskgate/internal/models"
	"github.com/rcallister/taskgate/pkg/auth"
)

const userColumns = `id, name, email, user_id, password_hash, auth_provider, account_status, role,
	is_super_admin, company, external_id, reset_code_hash, reset_code_expiry, reset_attempts,
	last_reset_attempt, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows (single row or rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var role *string

	err := scanner.Scan(
		&user.ID, &user.Name, &user.Email, &user.UserID, &user.PasswordHash,
		&user.AuthProvider, &user.Status, &role,
		&user.IsSuperAdmin, &user.Company, &user.ExternalID,
		&user.ResetCodeHash, &user.ResetCodeExpiry, &user.ResetAttempts, &user.LastResetAttempt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if role != nil {
		r := models.Role(*role)
		user.Role = &r
	}

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

// Create persists a new user. A non-empty password is hashed with bcrypt
// before it leaves this method.
func (r *UserRepository) Create(ctx context.Context, user *models.User, password string) (*models.User, error) {
	user.ID = uuid.New().String()

	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = &hash
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	var role *string
	if user.Role != nil {
		s := string(*user.Role)
		role = &s
	}

	query := `
		INSERT INTO users (id, name, email, user_id, password_hash, auth_provider, account_status, role,
			is_super_admin, company, external_id, reset_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, $13)
		RETURNING ` + userColumns

	created, err := scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.UserID, user.PasswordHash,
		user.AuthProvider, user.Status, role,
		user.IsSuperAdmin, user.Company, user.ExternalID,
		user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail is case-insensitive; emails are stored lowercase.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = LOWER($1)`
	return scanUserRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *UserRepository) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, userID))
}

// UpdateByID applies a partial update as a single-row UPDATE. Concurrent
// updates are last-write-wins; transitions never corrupt state because
// the whole SET list lands atomically.
func (r *UserRepository) UpdateByID(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	sets := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.Name != nil {
		sets = append(sets, "name = "+arg(*upd.Name))
	}
	if upd.UserID != nil {
		sets = append(sets, "user_id = "+arg(*upd.UserID))
	}
	if upd.Password != nil {
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		sets = append(sets, "password_hash = "+arg(hash))
	}
	if upd.AuthProvider != nil {
		sets = append(sets, "auth_provider = "+arg(string(*upd.AuthProvider)))
	}
	if upd.Status != nil {
		sets = append(sets, "account_status = "+arg(string(*upd.Status)))
	}
	if upd.Role != nil {
		sets = append(sets, "role = "+arg(string(*upd.Role)))
	}
	if upd.Company != nil {
		sets = append(sets, "company = "+arg(*upd.Company))
	}
	if upd.ExternalID != nil {
		sets = append(sets, "external_id = "+arg(*upd.ExternalID))
	}
	if upd.ClearResetState {
		sets = append(sets,
			"reset_code_hash = NULL",
			"reset_code_expiry = NULL",
			"reset_attempts = 0",
			"last_reset_attempt = NULL",
		)
	} else {
		if upd.ResetCodeHash != nil {
			sets = append(sets, "reset_code_hash = "+arg(*upd.ResetCodeHash))
		}
		if upd.ResetCodeExpiry != nil {
			sets = append(sets, "reset_code_expiry = "+arg(*upd.ResetCodeExpiry))
		}
		if upd.ResetAttempts != nil {
			sets = append(sets, "reset_attempts = "+arg(*upd.ResetAttempts))
		}
		if upd.LastResetAttempt != nil {
			sets = append(sets, "last_reset_attempt = "+arg(*upd.LastResetAttempt))
		}
	}

	sets = append(sets, "updated_at = "+arg(time.Now()))

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = %s RETURNING %s`,
		strings.Join(sets, ", "), arg(id), userColumns,
	)

	return scanUserRow(r.pool.QueryRow(ctx, query, args...))
}

// ListByCompany is the tenant directory: exact company match, active
// accounts only. Pending and rejected users are invisible to peers.
func (r *UserRepository) ListByCompany(ctx context.Context, company string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE company = $1 AND account_status = $2 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, company, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return scanUserRows(rows)
}

// ListPendingByCompany returns pending non-admin accounts awaiting
// tenant-admin approval.
func (r *UserRepository) ListPendingByCompany(ctx context.Context, company string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE company = $1 AND account_status = $2 AND (role IS NULL OR role <> $3)
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, company, models.StatusPending, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending users: %w", err)
	}
	return scanUserRows(rows)
}

// ListPendingAdmins returns pending admin accounts awaiting superadmin
// approval, across all tenants.
func (r *UserRepository) ListPendingAdmins(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE account_status = $1 AND role = $2 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, models.StatusPending, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending admins: %w", err)
	}
	return scanUserRows(rows)
}

func (r *UserRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return scanUserRows(rows)
}

// CompanyExists reports whether any account carries the company key.
// The tenant is a denormalized string, so existence of a member is the
// existence of the tenant.
func (r *UserRepository) CompanyExists(ctx context.Context, company string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE company = $1)`, company,
	).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *UserRepository) DeleteByID(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteByCompany removes every account of a tenant. Deletion is
// unconditional; there is no tombstone.
func (r *UserRepository) DeleteByCompany(ctx context.Context, company string) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE company = $1`, company)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
