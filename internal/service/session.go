package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const defaultSessionCacheTTL = time.Minute

type IdentityProvider interface {
	GetUser(ctx context.Context, accessToken string) (*domain.User, error)
	SignOut(ctx context.Context, accessToken string) error
}

// SessionEvents is the subscription contract of identity.Notifier.
type SessionEvents interface {
	Subscribe(fn func(domain.SessionEvent)) func()
	Publish(ev domain.SessionEvent)
}

type SessionMetrics interface {
	RecordSessionValidation(source, outcome string)
}

// SessionService resolves bearer tokens into sessions. Resolved sessions are
// cached briefly and evicted as soon as a SignedOut event for the token is
// published.
type SessionService struct {
	provider    IdentityProvider
	events      SessionEvents
	cache       *cache.Cache
	logger      *zap.Logger
	metrics     SessionMetrics
	unsubscribe func()
}

func NewSessionService(provider IdentityProvider, events SessionEvents, ttl time.Duration, logger *zap.Logger, metrics SessionMetrics) *SessionService {
	if ttl <= 0 {
		ttl = defaultSessionCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SessionService{
		provider: provider,
		events:   events,
		cache:    cache.New(ttl, ttl*2),
		logger:   logger,
		metrics:  metrics,
	}
	s.unsubscribe = events.Subscribe(s.handleEvent)
	return s
}

// ValidateSession returns the session for accessToken. Invalid or expired
// tokens yield domain.ErrInvalidSession.
func (s *SessionService) ValidateSession(ctx context.Context, accessToken string) (*domain.Session, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, domain.ErrInvalidSession
	}

	key := sessionKey(accessToken)
	if cached, found := s.cache.Get(key); found {
		s.record("cache", "valid")
		session := *cached.(*domain.Session)
		return &session, nil
	}

	user, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSession) {
			s.record("provider", "invalid")
			return nil, domain.ErrInvalidSession
		}
		s.record("provider", "error")
		s.logger.Error("session validation failed", zap.Error(err))
		return nil, err
	}
	s.record("provider", "valid")

	session := &domain.Session{AccessToken: accessToken, User: *user}
	s.cache.Set(key, session, cache.DefaultExpiration)
	s.events.Publish(domain.SessionEvent{
		Type:        domain.SessionSignedIn,
		AccessToken: accessToken,
		Session:     session,
	})

	out := *session
	return &out, nil
}

// SignOut revokes the token at the provider and publishes SignedOut. A token
// the provider no longer knows counts as signed out.
func (s *SessionService) SignOut(ctx context.Context, session *domain.Session) error {
	err := s.provider.SignOut(ctx, session.AccessToken)
	if err != nil && !errors.Is(err, domain.ErrInvalidSession) {
		return err
	}
	s.events.Publish(domain.SessionEvent{
		Type:        domain.SessionSignedOut,
		AccessToken: session.AccessToken,
		Session:     session,
	})
	return nil
}

// Close detaches the service from the event source.
func (s *SessionService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// CachedSessions is the number of sessions currently held.
func (s *SessionService) CachedSessions() int {
	return s.cache.ItemCount()
}

func (s *SessionService) handleEvent(ev domain.SessionEvent) {
	if ev.Type != domain.SessionSignedOut || ev.AccessToken == "" {
		return
	}
	s.cache.Delete(sessionKey(ev.AccessToken))
	if ev.Session != nil {
		s.logger.Info("session signed out", zap.String("user_id", ev.Session.User.ID))
	}
}

func (s *SessionService) record(source, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSessionValidation(source, outcome)
	}
}

func sessionKey(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
