package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rcallister/taskgate/internal/models"
)

// TokenService issues and verifies signed, expiring tokens: the ordinary
// session token plus purpose-bound continuation tokens that carry
// workflow state between stateless redirect steps.
type TokenService struct {
	secret        string
	sessionExpiry time.Duration
	maxSessionAge time.Duration
}

// NewTokenService creates a new TokenService.
func NewTokenService(secret string, sessionExpiry, maxSessionAge time.Duration) *TokenService {
	return &TokenService{
		secret:        secret,
		sessionExpiry: sessionExpiry,
		maxSessionAge: maxSessionAge,
	}
}

// GenerateSessionToken creates a session token carrying only the subject
// id. Role, company and status are intentionally absent: every
// authorization decision re-resolves the current record.
func (ts *TokenService) GenerateSessionToken(userID string) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.sessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(ts.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// GenerateScopedToken creates a continuation token bound to a single
// purpose. Endpoints accept only their own purpose.
func (ts *TokenService) GenerateScopedToken(purpose models.TokenPurpose, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		UserID:  userID,
		Purpose: purpose,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(ts.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}

	return tokenString, nil
}

// ValidateSessionToken verifies a session token. Continuation tokens are
// rejected here no matter how valid their signature: a token minted for
// role selection or completion never opens a session.
func (ts *TokenService) ValidateSessionToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := ts.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Purpose != "" {
		return nil, models.ErrUnauthorized
	}

	// Reject tokens older than the hard age cap even when exp has not
	// elapsed yet.
	if claims.IssuedAt == nil {
		return nil, models.ErrUnauthorized
	}
	if time.Since(claims.IssuedAt.Time) > ts.maxSessionAge {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}

// ValidateScopedToken verifies a continuation token and checks that its
// purpose matches the endpoint's expectation.
func (ts *TokenService) ValidateScopedToken(tokenString string, expected models.TokenPurpose) (*models.TokenClaims, error) {
	claims, err := ts.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Purpose != expected {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}

func (ts *TokenService) parse(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(ts.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.UserID == "" {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
