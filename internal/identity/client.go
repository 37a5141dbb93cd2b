// Package identity talks to the hosted, GoTrue-compatible auth API that owns
// user accounts and access tokens.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

func NewClient(baseURL, anonKey string) *Client {
	return NewClientWithHTTP(baseURL, anonKey, &http.Client{Timeout: defaultTimeout})
}

// NewClientWithHTTP is NewClient with a caller supplied http.Client.
func NewClientWithHTTP(baseURL, anonKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: httpClient,
	}
}

// APIError is a non-2xx answer from the identity provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity error (%d): %s", e.StatusCode, e.Message)
}

type userResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
}

func (u userResponse) toDomain() *domain.User {
	return &domain.User{
		ID:           u.ID,
		Email:        u.Email,
		CreatedAt:    u.CreatedAt,
		LastSignInAt: u.LastSignInAt,
	}
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *userResponse `json:"user"`
}

func (t tokenResponse) toDomain(now time.Time) *domain.Session {
	s := &domain.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}
	if t.User != nil {
		s.User = *t.User.toDomain()
	}
	return s
}

// errorResponse covers both error shapes the provider emits.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GetUser resolves an access token into its user.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	if accessToken == "" {
		return nil, domain.ErrInvalidSession
	}
	var user userResponse
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		return nil, mapError(err, domain.ErrInvalidSession)
	}
	if user.ID == "" {
		return nil, domain.ErrInvalidSession
	}
	return user.toDomain(), nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	if email == "" || password == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "email and password are required")
	}
	var tok tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", credentials{Email: email, Password: password}, &tok)
	if err != nil {
		return nil, mapError(err, domain.ErrInvalidCredentials)
	}
	return tok.toDomain(time.Now()), nil
}

// SignUp registers an account. Providers that require e-mail confirmation
// answer with the user only, in which case the returned session has no token.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	if email == "" || password == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "email and password are required")
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", credentials{Email: email, Password: password}, &raw); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, apiErr.Message, err)
		}
		return nil, mapError(err, domain.ErrInvalidCredentials)
	}

	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err == nil && tok.AccessToken != "" {
		return tok.toDomain(time.Now()), nil
	}
	var user userResponse
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to parse signup response: %w", err)
	}
	return &domain.Session{User: *user.toDomain()}, nil
}

// SignOut revokes the access token at the provider.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if err := c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil); err != nil {
		return mapError(err, domain.ErrInvalidSession)
	}
	return nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email string) error {
	if email == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "email is required")
	}
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/recover", "", body, nil); err != nil {
		return mapError(err, domain.ErrIdentityUnavailable)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &errResp) == nil && errResp.text() != "" {
			msg = errResp.text()
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// mapError wraps auth rejections in rejected and everything else in
// ErrIdentityUnavailable. The provider error stays reachable via errors.As.
func mapError(err error, rejected *domain.DomainError) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && isRejection(apiErr.StatusCode, rejected) {
		return fmt.Errorf("%w: %w", rejected, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, err)
}

func isRejection(status int, rejected *domain.DomainError) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusBadRequest:
		// invalid_grant
		return rejected == domain.ErrInvalidCredentials
	case http.StatusNotFound:
		// user deleted after the token was issued
		return rejected == domain.ErrInvalidSession
	}
	return false
}
