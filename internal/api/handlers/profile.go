package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/LogiStackDev/access-onboard-flow/internal/api"
	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/LogiStackDev/access-onboard-flow/internal/service"
)

type ProfileService interface {
	Get(ctx context.Context, user domain.User) (*domain.Profile, error)
	Save(ctx context.Context, user domain.User, input service.SaveProfileInput) (*domain.Profile, error)
	Me(ctx context.Context, user domain.User) (*service.Account, error)
}

type ProfileHandler struct {
	svc ProfileService
}

func NewProfileHandler(svc ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// SaveProfileRequest replaces every editable field, cpv_codes included.
type SaveProfileRequest struct {
	FullName           string   `json:"full_name"`
	CompanyName        string   `json:"company_name"`
	CompanyDescription string   `json:"company_description"`
	Country            string   `json:"country"`
	Telephone          string   `json:"telephone"`
	CPVCodes           []string `json:"cpv_codes"`
}

type ProfileResponse struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	FullName           string   `json:"full_name"`
	CompanyName        string   `json:"company_name"`
	CompanyDescription string   `json:"company_description"`
	Country            string   `json:"country"`
	Telephone          string   `json:"telephone"`
	CPVCodes           []string `json:"cpv_codes"`
	CreatedAt          string   `json:"created_at,omitempty"`
	UpdatedAt          string   `json:"updated_at,omitempty"`
}

type UserResponse struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	CreatedAt    string  `json:"created_at,omitempty"`
	LastSignInAt *string `json:"last_sign_in_at,omitempty"`
}

type TrialResponse struct {
	Active        bool   `json:"active"`
	DaysRemaining int    `json:"days_remaining"`
	EndsAt        string `json:"ends_at,omitempty"`
}

type MeResponse struct {
	User    *UserResponse    `json:"user"`
	Profile *ProfileResponse `json:"profile"`
	Trial   *TrialResponse   `json:"trial"`
}

func profileToResponse(p *domain.Profile) *ProfileResponse {
	return &ProfileResponse{
		ID:                 p.ID,
		Email:              p.Email,
		FullName:           p.FullName,
		CompanyName:        p.CompanyName,
		CompanyDescription: p.CompanyDescription,
		Country:            p.Country,
		Telephone:          p.Telephone,
		CPVCodes:           selectionCodes(p.CPVCodes),
		CreatedAt:          formatTime(p.CreatedAt),
		UpdatedAt:          formatTime(p.UpdatedAt),
	}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, err := h.svc.Get(r.Context(), user)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, profileToResponse(profile))
}

func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SaveProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.svc.Save(r.Context(), user, service.SaveProfileInput{
		FullName:           req.FullName,
		CompanyName:        req.CompanyName,
		CompanyDescription: req.CompanyDescription,
		Country:            req.Country,
		Telephone:          req.Telephone,
		CPVCodes:           req.CPVCodes,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, profileToResponse(profile))
}

// Me handles GET /me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	account, err := h.svc.Me(r.Context(), user)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	trial := &TrialResponse{
		Active:        account.TrialActive,
		DaysRemaining: account.TrialDaysRemaining,
		EndsAt:        formatTime(account.Trial.EndsAt),
	}
	api.Success(w, http.StatusOK, &MeResponse{
		User: &UserResponse{
			ID:           account.User.ID,
			Email:        account.User.Email,
			CreatedAt:    formatTime(account.User.CreatedAt),
			LastSignInAt: formatTimePtr(account.User.LastSignInAt),
		},
		Profile: profileToResponse(account.Profile),
		Trial:   trial,
	})
}
