package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rcallister/taskgate/internal/cache"
	"github.com/rcallister/taskgate/internal/models"
	pkghttp "github.com/rcallister/taskgate/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing the resolved user in context
	UserContextKey contextKey = "user"
)

// UserFetcher resolves the current user record for a subject id.
type UserFetcher interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// SessionMiddleware validates the bearer session token and re-fetches
// the full user record (through the TTL cache) before letting the
// request through. The token carries no role or company, so a revoked
// role stops working within one cache TTL. Only active accounts pass.
func SessionMiddleware(ts *TokenService, users UserFetcher, userCache cache.UserCache) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Missing or malformed authorization header")
				return
			}

			claims, err := ts.ValidateSessionToken(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			user, cached := userCache.Get(r.Context(), claims.UserID)
			if !cached {
				user, err = users.GetByID(r.Context(), claims.UserID)
				if err != nil {
					if errors.Is(err, models.ErrNotFound) {
						pkghttp.WriteUnauthorized(w, "Invalid or expired token")
						return
					}
					pkghttp.WriteInternalError(w, "Internal server error")
					return
				}
				userCache.Set(r.Context(), user)
			}

			if user.Status != models.StatusActive {
				pkghttp.WriteUnauthorized(w, "Account is not active")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets tenant admins and superadmins through.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r)
		if user == nil {
			pkghttp.WriteUnauthorized(w, "Unauthorized")
			return
		}
		if !user.RoleIs(models.RoleAdmin) && !user.RoleIs(models.RoleSuperAdmin) && !user.IsSuperAdmin {
			pkghttp.WriteForbidden(w, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperAdmin lets only superadmins through.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r)
		if user == nil {
			pkghttp.WriteUnauthorized(w, "Unauthorized")
			return
		}
		if !user.IsSuperAdmin && !user.RoleIs(models.RoleSuperAdmin) {
			pkghttp.WriteForbidden(w, "Super admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserFromContext extracts the resolved user from request context.
func UserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
