package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rcallister/taskgate/internal/auth"
	"github.com/rcallister/taskgate/internal/cache"
	"github.com/rcallister/taskgate/internal/config"
	"github.com/rcallister/taskgate/internal/database"
	"github.com/rcallister/taskgate/internal/handlers"
	middlewareCustom "github.com/rcallister/taskgate/internal/middleware"
	"github.com/rcallister/taskgate/internal/models"
	"github.com/rcallister/taskgate/internal/oauth"
	"github.com/rcallister/taskgate/internal/repositories"
	"github.com/rcallister/taskgate/internal/routes"
	"github.com/rcallister/taskgate/internal/services"
	pkghttp "github.com/rcallister/taskgate/pkg/http"
	pkglogger "github.com/rcallister/taskgate/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)

	// Session-validating user cache: in-process by default, Redis when
	// an address is configured
	var userCache cache.UserCache
	if cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		userCache = cache.NewRedisUserCache(client, cfg.Cache.UserTTL)
		logger.Info("using redis user cache", slog.String("addr", cfg.Cache.RedisAddr))
	} else {
		userCache = cache.NewMemoryUserCache(cfg.Cache.UserTTL)
	}

	// Initialize token service
	tokenService := auth.NewTokenService(
		cfg.Auth.JWTSecret,
		cfg.Auth.SessionTokenExpiry,
		cfg.Auth.MaxSessionTokenAge,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Email notifications via AWS SES, or a log-only notifier when
	// delivery is disabled
	var notifier services.Notifier
	if cfg.Email.Enabled {
		sesNotifier, err := services.NewAWSSESNotifier(cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Server.DashboardURL, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	} else {
		notifier = services.NewLogNotifier(logger)
	}

	googleProvider := oauth.NewGoogleProvider(&cfg.Google)

	// Initialize services
	accountService := services.NewAccountService(userRepo, tokenService, userCache, logger, auditLogger)
	approvalService := services.NewApprovalService(userRepo, userCache, notifier, logger, auditLogger)
	oauthService := services.NewOAuthService(userRepo, tokenService, googleProvider, userCache, &cfg.Auth, logger, auditLogger)
	resetService := services.NewResetService(userRepo, userCache, notifier, &cfg.Auth, logger, auditLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(accountService, resetService)
	oauthHandler := handlers.NewOAuthHandler(oauthService)
	adminHandler := handlers.NewAdminHandler(approvalService)
	superAdminHandler := handlers.NewSuperAdminHandler(approvalService)

	// Bootstrap the platform superadmin if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureSuperAdmin(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure superadmin user", slog.Any("error", err))
	}
	cancel()

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middlewareCustom.AuditAlert(auditLogger, middlewareCustom.AuditAlertConfig{
		SlowThreshold: cfg.Server.AlertLatency,
		IPConfig:      ipConfig,
	}))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, oauthHandler, adminHandler, superAdminHandler, tokenService, userRepo, userCache, &cfg.RateLimit, &cfg.Auth)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureSuperAdmin creates the platform superadmin if SUPERADMIN_EMAIL
// and SUPERADMIN_PASSWORD are set
func ensureSuperAdmin(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	email := os.Getenv("SUPERADMIN_EMAIL")
	password := os.Getenv("SUPERADMIN_PASSWORD")

	if email == "" || password == "" {
		logger.Info("no SUPERADMIN_EMAIL or SUPERADMIN_PASSWORD set, skipping superadmin creation")
		return nil
	}

	// Check if the superadmin already exists
	_, err := userRepo.GetByEmail(ctx, email)
	if err == nil {
		logger.Info("superadmin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if superadmin exists: %w", err)
	}

	role := models.RoleSuperAdmin
	userID := "superadmin"
	superadmin := &models.User{
		Name:         "Platform Admin",
		Email:        email,
		UserID:       &userID,
		AuthProvider: models.ProviderLocal,
		Status:       models.StatusActive,
		Role:         &role,
		IsSuperAdmin: true,
	}

	if _, err := userRepo.Create(ctx, superadmin, password); err != nil {
		return fmt.Errorf("failed to create superadmin user: %w", err)
	}

	logger.Info("superadmin user created successfully")
	return nil
}
