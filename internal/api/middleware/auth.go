package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/models"
	"github.com/orderdesk/orderdesk/internal/store"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware resolves Bearer tokens into users for authenticated
// endpoints.
type AuthMiddleware struct {
	tokens *auth.Manager
	db     store.DataStore
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(tokens *auth.Manager, db store.DataStore) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, db: db}
}

// RequireAuth verifies the Bearer token, loads the account it belongs to
// and stores it in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		identity, err := m.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user, err := m.db.GetUserByID(r.Context(), identity.UserID)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to load account")
			return
		}
		if user == nil {
			jsonError(w, http.StatusUnauthorized, "account not found")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin allows only staff accounts through. Must be mounted after
// RequireAuth.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil || !user.IsAdmin() {
			jsonError(w, http.StatusForbidden, "staff access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// UserFromContext retrieves the authenticated user from the request context.
func UserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
