package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSessionHandler_Logout(t *testing.T) {
	mockSvc := new(MockSessionService)
	handler := NewSessionHandler(mockSvc)

	mockSvc.On("SignOut", mock.Anything, testSession).Return(nil)

	w := httptest.NewRecorder()
	handler.Logout(w, requestWithSession(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	mockSvc.AssertExpectations(t)
}

func TestSessionHandler_Logout_ProviderDown(t *testing.T) {
	mockSvc := new(MockSessionService)
	handler := NewSessionHandler(mockSvc)

	mockSvc.On("SignOut", mock.Anything, testSession).
		Return(fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, assert.AnError))

	w := httptest.NewRecorder()
	handler.Logout(w, requestWithSession(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSessionHandler_Logout_NoSession(t *testing.T) {
	mockSvc := new(MockSessionService)
	handler := NewSessionHandler(mockSvc)

	w := httptest.NewRecorder()
	handler.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockSvc.AssertNotCalled(t, "SignOut", mock.Anything, mock.Anything)
}
