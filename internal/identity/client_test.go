package identity

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBaseURL = "https://auth.example.test"
	testAnonKey = "anon-key"
)

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func newTestClient() *Client {
	return NewClient(testBaseURL+"/", testAnonKey)
}

const userJSON = `{
	"id": "0b6f6c0e-0d89-4f1f-9a7c-1d2b1f5e8a11",
	"email": "buyer@example.com",
	"created_at": "2026-03-01T09:00:00Z",
	"last_sign_in_at": "2026-03-05T10:30:00Z"
}`

func TestClient_GetUser(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", testBaseURL+"/auth/v1/user",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, testAnonKey, req.Header.Get("apikey"))
			assert.Equal(t, "Bearer access-token", req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(http.StatusOK, userJSON), nil
		})

	user, err := newTestClient().GetUser(context.Background(), "access-token")

	require.NoError(t, err)
	assert.Equal(t, "0b6f6c0e-0d89-4f1f-9a7c-1d2b1f5e8a11", user.ID)
	assert.Equal(t, "buyer@example.com", user.Email)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), user.CreatedAt)
	require.NotNil(t, user.LastSignInAt)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestClient_GetUser_Errors(t *testing.T) {
	setupHTTPMock(t)

	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"msg":"invalid JWT"}`, domain.ErrInvalidSession},
		{"forbidden", http.StatusForbidden, `{"msg":"bad token"}`, domain.ErrInvalidSession},
		{"user gone", http.StatusNotFound, `{"msg":"user not found"}`, domain.ErrInvalidSession},
		{"provider down", http.StatusServiceUnavailable, `upstream unavailable`, domain.ErrIdentityUnavailable},
		{"internal error", http.StatusInternalServerError, `{"error":"boom"}`, domain.ErrIdentityUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpmock.Reset()
			httpmock.RegisterResponder("GET", testBaseURL+"/auth/v1/user",
				httpmock.NewStringResponder(tt.statusCode, tt.body))

			user, err := newTestClient().GetUser(context.Background(), "token")

			require.Error(t, err)
			assert.Nil(t, user)
			assert.ErrorIs(t, err, tt.wantErr)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.statusCode, apiErr.StatusCode)
		})
	}
}

func TestClient_GetUser_EmptyToken(t *testing.T) {
	setupHTTPMock(t)

	_, err := newTestClient().GetUser(context.Background(), "")

	assert.ErrorIs(t, err, domain.ErrInvalidSession)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestClient_GetUser_TransportError(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("GET", testBaseURL+"/auth/v1/user",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := newTestClient().GetUser(context.Background(), "token")

	assert.ErrorIs(t, err, domain.ErrIdentityUnavailable)
}

func TestClient_SignInWithPassword(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("POST", "=~^"+testBaseURL+`/auth/v1/token\?grant_type=password`,
		httpmock.NewStringResponder(http.StatusOK, `{
			"access_token": "at",
			"refresh_token": "rt",
			"expires_in": 3600,
			"expires_at": 1772359200,
			"user": `+userJSON+`
		}`))

	session, err := newTestClient().SignInWithPassword(context.Background(), "buyer@example.com", "secret")

	require.NoError(t, err)
	assert.Equal(t, "at", session.AccessToken)
	assert.Equal(t, "rt", session.RefreshToken)
	assert.Equal(t, time.Unix(1772359200, 0).UTC(), session.ExpiresAt)
	assert.Equal(t, "buyer@example.com", session.User.Email)
}

func TestClient_SignInWithPassword_BadCredentials(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("POST", "=~^"+testBaseURL+`/auth/v1/token`,
		httpmock.NewStringResponder(http.StatusBadRequest,
			`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))

	_, err := newTestClient().SignInWithPassword(context.Background(), "buyer@example.com", "wrong")

	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "Invalid login credentials")
}

func TestClient_SignInWithPassword_MissingFields(t *testing.T) {
	setupHTTPMock(t)

	_, err := newTestClient().SignInWithPassword(context.Background(), "", "secret")

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestClient_SignUp(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantToken string
	}{
		{
			name:      "auto confirmed",
			body:      `{"access_token":"at","refresh_token":"rt","expires_in":3600,"user":` + userJSON + `}`,
			wantToken: "at",
		},
		{
			name: "confirmation required",
			body: userJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupHTTPMock(t)
			httpmock.RegisterResponder("POST", testBaseURL+"/auth/v1/signup",
				httpmock.NewStringResponder(http.StatusOK, tt.body))

			session, err := newTestClient().SignUp(context.Background(), "buyer@example.com", "secret")

			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, session.AccessToken)
			assert.Equal(t, "buyer@example.com", session.User.Email)
		})
	}
}

func TestClient_SignUp_Rejected(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("POST", testBaseURL+"/auth/v1/signup",
		httpmock.NewStringResponder(http.StatusUnprocessableEntity, `{"msg":"User already registered"}`))

	_, err := newTestClient().SignUp(context.Background(), "buyer@example.com", "secret")

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	assert.Equal(t, "User already registered", domainErr.Message)
}

func TestClient_SignOut(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("POST", testBaseURL+"/auth/v1/logout",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer at", req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})

	err := newTestClient().SignOut(context.Background(), "at")

	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestClient_ResetPasswordForEmail(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("POST", testBaseURL+"/auth/v1/recover",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	require.NoError(t, newTestClient().ResetPasswordForEmail(context.Background(), "buyer@example.com"))

	err := newTestClient().ResetPasswordForEmail(context.Background(), "")
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}
