package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rcallister/taskgate/internal/database"
	"github.com/rcallister/taskgate/internal/models"
	"github.com/rcallister/taskgate/internal/repositories"
)

// TestDB manages the PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("taskgate"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dbWrapper := &database.DB{Pool: pool}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	goose.SetLogger(log.New(io.Discard, "", 0))

	// Goose needs a stdlib DB connection
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, "TRUNCATE TABLE users CASCADE"); err != nil {
		return fmt.Errorf("failed to truncate users: %w", err)
	}
	return nil
}

// SeedUser inserts a user through the repository so the password is
// hashed the same way production writes are
func SeedUser(ctx context.Context, db *database.DB, user *models.User, password string) (*models.User, error) {
	repo := repositories.NewUserRepository(db)
	created, err := repo.Create(ctx, user, password)
	if err != nil {
		return nil, fmt.Errorf("failed to seed user: %w", err)
	}
	return created, nil
}

// SeedActiveAdmin creates an approved tenant admin
func SeedActiveAdmin(ctx context.Context, db *database.DB, email, userID, password, company string) (*models.User, error) {
	role := models.RoleAdmin
	return SeedUser(ctx, db, &models.User{
		Name:         "Seeded Admin",
		Email:        email,
		UserID:       &userID,
		AuthProvider: models.ProviderLocal,
		Status:       models.StatusActive,
		Role:         &role,
		Company:      &company,
	}, password)
}

// SeedSuperAdmin creates the platform superadmin
func SeedSuperAdmin(ctx context.Context, db *database.DB, email, password string) (*models.User, error) {
	role := models.RoleSuperAdmin
	userID := "superadmin"
	return SeedUser(ctx, db, &models.User{
		Name:         "Super Admin",
		Email:        email,
		UserID:       &userID,
		AuthProvider: models.ProviderLocal,
		Status:       models.StatusActive,
		Role:         &role,
		IsSuperAdmin: true,
	}, password)
}
