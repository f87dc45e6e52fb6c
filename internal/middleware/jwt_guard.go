package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	pkghttp "github.com/rcallister/taskgate/pkg/http"
)

// JWTGuardConfig holds structural token screening configuration
type JWTGuardConfig struct {
	// MaxTokenAge rejects tokens whose iat is older than this, whatever
	// their exp says.
	MaxTokenAge time.Duration
}

type tokenShape struct {
	ID  string `json:"id"`
	Iat int64  `json:"iat"`
	Exp int64  `json:"exp"`
}

// JWTStructureGuard screens bearer tokens before any signature check:
// malformed or stale tokens are dropped at the gateway so they never
// reach the verification path. Requests without a bearer token pass
// through untouched.
func JWTStructureGuard(config JWTGuardConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				pkghttp.WriteUnauthorized(w, "Invalid authorization header")
				return
			}

			segments := strings.Split(token, ".")
			if len(segments) != 3 {
				pkghttp.WriteUnauthorized(w, "Malformed token")
				return
			}

			payload, err := base64.RawURLEncoding.DecodeString(segments[1])
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Malformed token")
				return
			}

			var shape tokenShape
			if err := json.Unmarshal(payload, &shape); err != nil {
				pkghttp.WriteUnauthorized(w, "Malformed token")
				return
			}

			if shape.ID == "" || shape.Iat == 0 || shape.Exp == 0 {
				pkghttp.WriteUnauthorized(w, "Malformed token")
				return
			}

			issuedAt := time.Unix(shape.Iat, 0)
			if time.Since(issuedAt) > config.MaxTokenAge {
				pkghttp.WriteUnauthorized(w, "Token expired")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
