package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose scopes a continuation token to a single endpoint.
// A token minted for one purpose must never authorize another.
type TokenPurpose string

// Session tokens carry no purpose claim; the constants below name the
// continuation flows only.
const (
	// PurposeRoleSelection carries an incomplete account into role selection.
	PurposeRoleSelection TokenPurpose = "role_selection"
	// PurposeAccountCompletion carries an incomplete account into completion.
	PurposeAccountCompletion TokenPurpose = "account_completion"
	// PurposeOAuthState protects the Google callback against CSRF.
	PurposeOAuthState TokenPurpose = "oauth_state"
)

// TokenClaims is the JWT payload for session and continuation tokens.
// Session tokens deliberately carry only the subject id: role, company
// and status are re-resolved from the store on every request so a
// revoked role never outlives the cache TTL.
type TokenClaims struct {
	UserID  string       `json:"id"`
	Purpose TokenPurpose `json:"purpose,omitempty"`
	Email   string       `json:"email,omitempty"`
	jwt.RegisteredClaims
}
