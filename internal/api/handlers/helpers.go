package handlers

import (
	"net/http"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/api"
	"github.com/LogiStackDev/access-onboard-flow/internal/api/middleware"
	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"golang.org/x/text/language"
)

const timeLayout = "2006-01-02T15:04:05Z"

func requireUser(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return domain.User{}, false
	}
	return user, true
}

// requestLocale prefers the locale query parameter over Accept-Language.
func requestLocale(r *http.Request) language.Tag {
	if raw := r.URL.Query().Get("locale"); raw != "" {
		return domain.MatchLocale(raw)
	}
	return domain.MatchLocale(r.Header.Get("Accept-Language"))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := formatTime(*t)
	return &s
}
