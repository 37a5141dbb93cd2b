package domain

import "time"

// User is the identity provider's view of an account.
type User struct {
	ID           string
	Email        string
	CreatedAt    time.Time
	LastSignInAt *time.Time
}

// Session binds an access token to the user it was issued for.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

type SessionEventType string

const (
	SessionSignedIn  SessionEventType = "SIGNED_IN"
	SessionSignedOut SessionEventType = "SIGNED_OUT"
)

func (t SessionEventType) IsValid() bool {
	switch t {
	case SessionSignedIn, SessionSignedOut:
		return true
	default:
		return false
	}
}

// SessionEvent is published whenever a session starts or ends.
type SessionEvent struct {
	Type        SessionEventType
	AccessToken string
	Session     *Session
}
