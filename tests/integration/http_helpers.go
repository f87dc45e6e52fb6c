package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rcallister/taskgate/internal/auth"
	"github.com/rcallister/taskgate/internal/cache"
	"github.com/rcallister/taskgate/internal/config"
	"github.com/rcallister/taskgate/internal/database"
	"github.com/rcallister/taskgate/internal/handlers"
	middlewareCustom "github.com/rcallister/taskgate/internal/middleware"
	"github.com/rcallister/taskgate/internal/oauth"
	"github.com/rcallister/taskgate/internal/repositories"
	"github.com/rcallister/taskgate/internal/routes"
	"github.com/rcallister/taskgate/internal/services"
	pkglogger "github.com/rcallister/taskgate/pkg/logger"
)

// SentEmail represents a captured email message
type SentEmail struct {
	To   string
	Kind string
	Code string
}

// CaptureNotifier records outbound mail for test assertions
type CaptureNotifier struct {
	mu   sync.Mutex
	Sent []SentEmail
}

func (n *CaptureNotifier) SendApprovalNotice(_ context.Context, email, _ string) error {
	n.record(SentEmail{To: email, Kind: "approval"})
	return nil
}

func (n *CaptureNotifier) SendRejectionNotice(_ context.Context, email, _ string) error {
	n.record(SentEmail{To: email, Kind: "rejection"})
	return nil
}

func (n *CaptureNotifier) SendResetCode(_ context.Context, email, code string, _ time.Time) error {
	n.record(SentEmail{To: email, Kind: "reset", Code: code})
	return nil
}

func (n *CaptureNotifier) record(email SentEmail) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, email)
}

// LastEmail returns the most recent captured email, or nil
func (n *CaptureNotifier) LastEmail() *SentEmail {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Sent) == 0 {
		return nil
	}
	return &n.Sent[len(n.Sent)-1]
}

// WaitForEmail polls until an email arrives or the deadline passes.
// Reset codes are sent from a goroutine, so tests cannot read the
// capture synchronously.
func (n *CaptureNotifier) WaitForEmail(timeout time.Duration) *SentEmail {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if email := n.LastEmail(); email != nil {
			return email
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// FakeGoogleProvider stands in for the Google endpoints. Tests set
// Profile to control who the exchange resolves to.
type FakeGoogleProvider struct {
	Profile *oauth.Profile
}

func (p *FakeGoogleProvider) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (p *FakeGoogleProvider) FetchProfile(_ context.Context, _ string) (*oauth.Profile, error) {
	return p.Profile, nil
}

// TestServer wraps httptest.Server with a real database and captured email
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Notifier *CaptureNotifier
	Google   *FakeGoogleProvider
	Tokens   *auth.TokenService
	Config   *config.Config
}

// NewTestServer initializes a complete HTTP server with real database + captured email
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:          "test-secret-32-characters-long-for-testing",
			SessionTokenExpiry: 24 * time.Hour,
			ContinuationExpiry: 30 * time.Minute,
			OAuthStateExpiry:   10 * time.Minute,
			MaxSessionTokenAge: 24 * time.Hour,
			ResetCodeExpiry:    10 * time.Minute,
			ResetMaxPerHour:    3,
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
			TrustedProxies: []string{},
			AlertLatency:   5 * time.Second,
		},
		RateLimit: config.RateLimitConfig{
			AuthPerWindow:       1000,
			AuthWindow:          time.Minute,
			SuperAdminPerWindow: 1000,
			SuperAdminWindow:    time.Minute,
			ResetPerWindow:      1000,
			ResetWindow:         time.Minute,
			APIPerWindow:        1000,
			APIWindow:           time.Minute,
		},
	}

	userRepo := repositories.NewUserRepository(db)
	userCache := cache.NewMemoryUserCache(5 * time.Minute)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenExpiry, cfg.Auth.MaxSessionTokenAge)
	auditLogger := pkglogger.NewAuditLogger(logger)

	notifier := &CaptureNotifier{}
	google := &FakeGoogleProvider{}

	accountService := services.NewAccountService(userRepo, tokens, userCache, logger, auditLogger)
	approvalService := services.NewApprovalService(userRepo, userCache, notifier, logger, auditLogger)
	oauthService := services.NewOAuthService(userRepo, tokens, google, userCache, &cfg.Auth, logger, auditLogger)
	resetService := services.NewResetService(userRepo, userCache, notifier, &cfg.Auth, logger, auditLogger)

	authHandler := handlers.NewAuthHandler(accountService, resetService)
	oauthHandler := handlers.NewOAuthHandler(oauthService)
	adminHandler := handlers.NewAdminHandler(approvalService)
	superAdminHandler := handlers.NewSuperAdminHandler(approvalService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, oauthHandler, adminHandler, superAdminHandler,
		tokens, userRepo, userCache, &cfg.RateLimit, &cfg.Auth)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:   server,
		DB:       db,
		Notifier: notifier,
		Google:   google,
		Tokens:   tokens,
		Config:   cfg,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a session token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ExtractToken pulls the session token out of a login response
func ExtractToken(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	var authResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", err
	}
	return authResp.Token, nil
}
