package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
)

type ProfileRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Profile, error)
	Upsert(ctx context.Context, p *domain.Profile) error
	UpdateCPVCodes(ctx context.Context, id string, codes domain.Selection) error
}

// SaveProfileInput is the editable part of a profile.
type SaveProfileInput struct {
	FullName           string
	CompanyName        string
	CompanyDescription string
	Country            string
	Telephone          string
	CPVCodes           []string
}

// Account combines the signed-in user, their profile and trial status.
type Account struct {
	User               domain.User
	Profile            *domain.Profile
	Trial              domain.Trial
	TrialActive        bool
	TrialDaysRemaining int
}

type ProfileService struct {
	profiles ProfileRepositoryInterface
	maxCodes int
	now      func() time.Time
}

func NewProfileService(profiles ProfileRepositoryInterface, maxCodes int) *ProfileService {
	if maxCodes <= 0 {
		maxCodes = domain.DefaultMaxCodes
	}
	return &ProfileService{
		profiles: profiles,
		maxCodes: maxCodes,
		now:      time.Now,
	}
}

// Get returns the stored profile, or an empty one carrying the session email
// when the user has never saved. The email always comes from the session.
func (s *ProfileService) Get(ctx context.Context, user domain.User) (*domain.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return domain.EmptyProfile(user.ID, user.Email), nil
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	profile.Email = user.Email
	if profile.CPVCodes == nil {
		profile.CPVCodes = domain.Selection{}
	}
	return profile, nil
}

func (s *ProfileService) Save(ctx context.Context, user domain.User, input SaveProfileInput) (*domain.Profile, error) {
	now := s.now().UTC()
	profile := &domain.Profile{
		ID:                 user.ID,
		Email:              user.Email,
		FullName:           input.FullName,
		CompanyName:        input.CompanyName,
		CompanyDescription: input.CompanyDescription,
		Country:            input.Country,
		Telephone:          input.Telephone,
		CPVCodes:           domain.Selection(input.CPVCodes),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := profile.Validate(s.maxCodes); err != nil {
		return nil, err
	}

	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return profile, nil
}

// Me reports the account overview. The trial runs from account creation.
func (s *ProfileService) Me(ctx context.Context, user domain.User) (*Account, error) {
	profile, err := s.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	trial := domain.NewTrial(user.CreatedAt)
	now := s.now()
	return &Account{
		User:               user,
		Profile:            profile,
		Trial:              trial,
		TrialActive:        trial.Active(now),
		TrialDaysRemaining: trial.DaysRemaining(now),
	}, nil
}
