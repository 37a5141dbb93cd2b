package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/api/middleware"
	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/LogiStackDev/access-onboard-flow/internal/pagination"
	"github.com/LogiStackDev/access-onboard-flow/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

type MockCPVService struct {
	mock.Mock
}

func (m *MockCPVService) Search(ctx context.Context, userID, query, locale string) *service.SearchOutput {
	args := m.Called(ctx, userID, query, locale)
	return args.Get(0).(*service.SearchOutput)
}

func (m *MockCPVService) Suggest(ctx context.Context, userID, query, locale string) (*service.SearchOutput, error) {
	args := m.Called(ctx, userID, query, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SearchOutput), args.Error(1)
}

func (m *MockCPVService) Resolve(ctx context.Context, codes []string) ([]domain.ClassificationRecord, error) {
	args := m.Called(ctx, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ClassificationRecord), args.Error(1)
}

func (m *MockCPVService) Selection(ctx context.Context, userID string) ([]domain.ClassificationRecord, domain.Selection, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]domain.ClassificationRecord), args.Get(1).(domain.Selection), args.Error(2)
}

func (m *MockCPVService) AddCode(ctx context.Context, userID, code, searchID string) (*service.SelectionChange, error) {
	args := m.Called(ctx, userID, code, searchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SelectionChange), args.Error(1)
}

func (m *MockCPVService) RemoveCode(ctx context.Context, userID, code string) (*service.SelectionChange, error) {
	args := m.Called(ctx, userID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SelectionChange), args.Error(1)
}

func (m *MockCPVService) History(ctx context.Context, userID, cursor string, limit int) (pagination.Page[service.SearchHistoryItem], error) {
	args := m.Called(ctx, userID, cursor, limit)
	return args.Get(0).(pagination.Page[service.SearchHistoryItem]), args.Error(1)
}

type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Get(ctx context.Context, user domain.User) (*domain.Profile, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileService) Save(ctx context.Context, user domain.User, input service.SaveProfileInput) (*domain.Profile, error) {
	args := m.Called(ctx, user, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileService) Me(ctx context.Context, user domain.User) (*service.Account, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Account), args.Error(1)
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) SignOut(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

var testSession = &domain.Session{
	AccessToken: "access-token",
	User: domain.User{
		ID:        "user-123",
		Email:     "buyer@example.com",
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	},
}

func requestWithSession(method, url string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.SessionKey, testSession)
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func betonRecord() domain.ClassificationRecord {
	return domain.NewClassificationRecord("44114000-2", "Concrete", "Béton", "Beton", "Beton")
}

func roadRecord() domain.ClassificationRecord {
	return domain.NewClassificationRecord("45233120-6", "Road construction works", "Travaux de construction de routes", "Straßenbauarbeiten", "Wegenbouwwerkzaamheden")
}
