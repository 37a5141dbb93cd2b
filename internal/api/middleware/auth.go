package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/LogiStackDev/access-onboard-flow/internal/api"
	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
)

type contextKey string

const SessionKey contextKey = "session"

// UserIDHeader carries the authenticated user id back to outer middleware.
const UserIDHeader = "X-User-ID"

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*domain.Session, error)
}

// SessionAuth requires a bearer access token issued by the identity provider.
func SessionAuth(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			session, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrInvalidSession) {
					api.Error(w, http.StatusUnauthorized, "invalid or expired session")
					return
				}
				api.HandleError(w, err)
				return
			}

			r.Header.Set(UserIDHeader, session.User.ID)
			ctx := context.WithValue(r.Context(), SessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetSession(ctx context.Context) *domain.Session {
	session, _ := ctx.Value(SessionKey).(*domain.Session)
	return session
}

// GetUser returns the authenticated user, or false outside SessionAuth.
func GetUser(ctx context.Context) (domain.User, bool) {
	session := GetSession(ctx)
	if session == nil || session.User.ID == "" {
		return domain.User{}, false
	}
	return session.User, true
}

// userIDFromRequest reads the id set by SessionAuth. Outer middleware only
// sees the request header because the context is replaced further down.
func userIDFromRequest(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok {
		return user.ID
	}
	return r.Header.Get(UserIDHeader)
}
