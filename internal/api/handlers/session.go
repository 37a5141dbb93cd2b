package handlers

import (
	"context"
	"net/http"

	"github.com/LogiStackDev/access-onboard-flow/internal/api"
	"github.com/LogiStackDev/access-onboard-flow/internal/api/middleware"
	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
)

type SessionService interface {
	SignOut(ctx context.Context, session *domain.Session) error
}

type SessionHandler struct {
	svc SessionService
}

func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// Logout handles POST /auth/logout. The token is revoked at the identity
// provider and dropped from the session cache.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.svc.SignOut(r.Context(), session); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
