package service

import (
	"context"
	"sync"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/LogiStackDev/access-onboard-flow/internal/pagination"
	"github.com/stretchr/testify/mock"
)

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) SearchBySubstring(ctx context.Context, term string, limit int) ([]domain.ClassificationRecord, error) {
	args := m.Called(ctx, term, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ClassificationRecord), args.Error(1)
}

func (m *MockRecordStore) FetchByKeys(ctx context.Context, codes []string) ([]domain.ClassificationRecord, error) {
	args := m.Called(ctx, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ClassificationRecord), args.Error(1)
}

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProfileRepository) UpdateCPVCodes(ctx context.Context, id string, codes domain.Selection) error {
	args := m.Called(ctx, id, codes)
	return args.Error(0)
}

type MockSearchLogRepository struct {
	mock.Mock
}

func (m *MockSearchLogRepository) CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

func (m *MockSearchLogRepository) RecordSearchSelection(ctx context.Context, userID, searchID, code string) error {
	args := m.Called(ctx, userID, searchID, code)
	return args.Error(0)
}

func (m *MockSearchLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSearchLogRepository) ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (pagination.Page[SearchHistoryItem], error) {
	args := m.Called(ctx, userID, cursor, limit)
	return args.Get(0).(pagination.Page[SearchHistoryItem]), args.Error(1)
}

type recordedSearch struct {
	variant  string
	outcome  string
	duration time.Duration
}

// fakeMetrics records calls; the lookup tests assert on outcomes.
type fakeMetrics struct {
	mu        sync.Mutex
	searches  []recordedSearch
	changes   []string
	cacheHits map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{cacheHits: map[string]int{}}
}

func (f *fakeMetrics) RecordSearch(variant, outcome string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, recordedSearch{variant: variant, outcome: outcome, duration: d})
}

func (f *fakeMetrics) RecordSelectionChange(op, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, op+":"+outcome)
}

func (f *fakeMetrics) RecordCacheLookup(result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheHits[result]++
}

func (f *fakeMetrics) outcomes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.searches))
	for _, s := range f.searches {
		out = append(out, s.outcome)
	}
	return out
}

func (f *fakeMetrics) cacheCount(result string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cacheHits[result]
}

func cpvRecord(code, en string) domain.ClassificationRecord {
	return domain.NewClassificationRecord(code, en, "", "", "")
}

func codesOf(records []domain.ClassificationRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Code)
	}
	return out
}
