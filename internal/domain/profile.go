package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TrialPeriod is the length of the free trial granted at sign-up.
const TrialPeriod = 14 * 24 * time.Hour

// Profile is the account form owning the persisted CPV selection.
type Profile struct {
	ID                 string
	Email              string
	FullName           string
	CompanyName        string
	CompanyDescription string
	Country            string
	Telephone          string
	CPVCodes           Selection
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EmptyProfile is what a user sees before the first save.
func EmptyProfile(userID, email string) *Profile {
	return &Profile{
		ID:       userID,
		Email:    email,
		CPVCodes: Selection{},
	}
}

// Validate checks required fields and normalises the CPV codes in place.
func (p *Profile) Validate(maxCodes int) error {
	p.FullName = strings.TrimSpace(p.FullName)
	if p.ID == "" {
		return fmt.Errorf("%w: profile id is required", ErrMissingRequiredField)
	}
	if p.FullName == "" {
		return fmt.Errorf("%w: full_name is required", ErrMissingRequiredField)
	}
	p.CPVCodes = NormalizeSelection(p.CPVCodes)
	if len(p.CPVCodes) > maxCodes {
		return ErrTooManyCPVCodes
	}
	return nil
}

// Trial describes the free trial window of an account.
type Trial struct {
	StartedAt time.Time
	EndsAt    time.Time
}

func NewTrial(start time.Time) Trial {
	return Trial{StartedAt: start, EndsAt: start.Add(TrialPeriod)}
}

func (t Trial) Active(now time.Time) bool {
	return !t.StartedAt.IsZero() && now.Before(t.EndsAt)
}

// DaysRemaining rounds partial days up; it is zero once the trial has ended.
func (t Trial) DaysRemaining(now time.Time) int {
	if !t.Active(now) {
		return 0
	}
	return int(math.Ceil(t.EndsAt.Sub(now).Hours() / 24))
}
