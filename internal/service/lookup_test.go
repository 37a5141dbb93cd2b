package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/language"
)

func numberedRecords(n int) []domain.ClassificationRecord {
	out := make([]domain.ClassificationRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, cpvRecord(fmt.Sprintf("%08d-0", i), fmt.Sprintf("record %d", i)))
	}
	return out
}

func TestCPVLookup_Search_ShortQuerySkipsStore(t *testing.T) {
	store := new(MockRecordStore)
	metrics := newFakeMetrics()
	lookup := NewCPVLookup(store, nil, LookupOptions{Variant: StandaloneVariant, Metrics: metrics})

	for _, q := range []string{"", "a", "ab", "  ab  "} {
		results := lookup.Search(context.Background(), q)
		assert.Empty(t, results, "query %q", q)
	}

	state := lookup.State()
	assert.True(t, state.Skipped)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Results)
	store.AssertNotCalled(t, "SearchBySubstring", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []string{OutcomeSkipped, OutcomeSkipped, OutcomeSkipped, OutcomeSkipped}, metrics.outcomes())
}

func TestCPVLookup_Search_ShortQueryClearsPreviousResults(t *testing.T) {
	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "beton", domain.StandaloneResultLimit).
		Return([]domain.ClassificationRecord{cpvRecord("44114000-2", "Concrete")}, nil)

	lookup := NewCPVLookup(store, nil, LookupOptions{Variant: StandaloneVariant})
	require.Len(t, lookup.Search(context.Background(), "beton"), 1)

	lookup.Search(context.Background(), "be")
	assert.Empty(t, lookup.State().Results)
	assert.Equal(t, "be", lookup.State().Query)
}

func TestCPVLookup_Search_CountsRunesNotBytes(t *testing.T) {
	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "äöü", mock.Anything).Return([]domain.ClassificationRecord{}, nil)

	lookup := NewCPVLookup(store, nil, LookupOptions{})
	lookup.Search(context.Background(), "äö")
	store.AssertNotCalled(t, "SearchBySubstring", mock.Anything, mock.Anything, mock.Anything)

	lookup.Search(context.Background(), "äöü")
	store.AssertExpectations(t)
}

func TestCPVLookup_Search_Standalone(t *testing.T) {
	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "construction", 20).Return(numberedRecords(25), nil)

	lookup := NewCPVLookup(store, domain.Selection{"00000001-0"}, LookupOptions{Variant: StandaloneVariant})
	results := lookup.Search(context.Background(), "construction")

	assert.Len(t, results, 20, "truncated to the standalone limit")
	assert.Contains(t, codesOf(results), "00000001-0", "standalone search does not hide selected codes")
	assert.False(t, lookup.State().Failed)
	store.AssertExpectations(t)
}

func TestCPVLookup_Search_InlineFiltersSelection(t *testing.T) {
	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "works", 12).Return([]domain.ClassificationRecord{
		cpvRecord("45000000-7", "Construction work"),
		cpvRecord("", "Malformed row"),
		cpvRecord("45200000-9", "Works for complete buildings"),
		cpvRecord("45100000-8", "Site preparation work"),
	}, nil)

	sel := domain.Selection{"45000000-7", "45100000-8"}
	lookup := NewCPVLookup(store, sel, LookupOptions{Variant: InlineVariant})
	results := lookup.Search(context.Background(), "works")

	assert.Equal(t, []string{"45200000-9"}, codesOf(results))
	store.AssertExpectations(t)
}

func TestCPVLookup_Search_InlineTruncates(t *testing.T) {
	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "record", 10).Return(numberedRecords(15), nil)

	lookup := NewCPVLookup(store, nil, LookupOptions{Variant: InlineVariant})
	results := lookup.Search(context.Background(), "record")

	assert.Len(t, results, 10)
}

func TestCPVLookup_Search_NormalisesTerm(t *testing.T) {
	store := new(MockRecordStore)
	// Fullwidth letters fold to ASCII under NFKC.
	store.On("SearchBySubstring", mock.Anything, "Beton", mock.Anything).Return([]domain.ClassificationRecord{}, nil)

	lookup := NewCPVLookup(store, nil, LookupOptions{})
	lookup.Search(context.Background(), "  Ｂｅｔｏｎ\t")

	store.AssertExpectations(t)
}

func TestCPVLookup_Search_StoreErrorIsAbsorbed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "steel", mock.Anything).Return(nil, errors.New("connection refused"))

	metrics := newFakeMetrics()
	lookup := NewCPVLookup(store, nil, LookupOptions{Logger: zap.New(core), Metrics: metrics})
	results := lookup.Search(context.Background(), "steel")

	assert.NotNil(t, results)
	assert.Empty(t, results)
	state := lookup.State()
	assert.True(t, state.Failed)
	assert.False(t, state.Loading)
	assert.Equal(t, 1, logs.FilterMessage("cpv search failed").Len())
	assert.Equal(t, []string{OutcomeError}, metrics.outcomes())
}

func TestCPVLookup_Search_StoreErrorLeavesBreadcrumb(t *testing.T) {
	var crumbs []*sentry.Breadcrumb
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeBreadcrumb: func(b *sentry.Breadcrumb, _ *sentry.BreadcrumbHint) *sentry.Breadcrumb {
			crumbs = append(crumbs, b)
			return b
		},
	})
	require.NoError(t, err)
	ctx := sentry.SetHubOnContext(context.Background(), sentry.NewHub(client, sentry.NewScope()))

	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "steel", mock.Anything).Return(nil, errors.New("connection refused"))

	lookup := NewCPVLookup(store, nil, LookupOptions{Variant: InlineVariant})
	lookup.Search(ctx, "steel")

	require.Len(t, crumbs, 1)
	assert.Equal(t, "cpv.lookup", crumbs[0].Category)
	assert.Equal(t, InlineVariant.Name+" search "+OutcomeError, crumbs[0].Message)
}

func TestCPVLookup_Search_FailureClearsOnNextSuccess(t *testing.T) {
	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "steel", mock.Anything).Return(nil, errors.New("boom")).Once()
	store.On("SearchBySubstring", mock.Anything, "steel", mock.Anything).Return([]domain.ClassificationRecord{cpvRecord("44000000-0", "Steel")}, nil).Once()

	lookup := NewCPVLookup(store, nil, LookupOptions{})
	lookup.Search(context.Background(), "steel")
	require.True(t, lookup.State().Failed)

	results := lookup.Search(context.Background(), "steel")
	assert.Len(t, results, 1)
	assert.False(t, lookup.State().Failed)
}

func TestCPVLookup_Search_LoadingWhileInFlight(t *testing.T) {
	store := new(MockRecordStore)
	var lookup *CPVLookup
	var loadingDuringCall bool
	store.On("SearchBySubstring", mock.Anything, "paper", mock.Anything).
		Run(func(args mock.Arguments) {
			loadingDuringCall = lookup.State().Loading
		}).
		Return([]domain.ClassificationRecord{}, nil)

	lookup = NewCPVLookup(store, nil, LookupOptions{})
	lookup.Search(context.Background(), "paper")

	assert.True(t, loadingDuringCall)
	assert.False(t, lookup.State().Loading)
}

func TestCPVLookup_Search_TimeoutClearsLoading(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "slow query", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	metrics := newFakeMetrics()
	lookup := NewCPVLookup(store, nil, LookupOptions{Timeout: 20 * time.Millisecond, Metrics: metrics})

	start := time.Now()
	results := lookup.Search(context.Background(), "slow query")

	assert.Empty(t, results)
	assert.Less(t, time.Since(start), 2*time.Second)
	state := lookup.State()
	assert.False(t, state.Loading)
	assert.True(t, state.Failed)
	assert.Equal(t, []string{OutcomeTimeout}, metrics.outcomes())
}

func TestCPVLookup_Search_LatestRequestWins(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	release := make(chan struct{})

	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "first", mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]domain.ClassificationRecord{cpvRecord("11111111-1", "first")}, nil)
	store.On("SearchBySubstring", mock.Anything, "second", mock.Anything).
		Return([]domain.ClassificationRecord{cpvRecord("22222222-2", "second")}, nil)

	metrics := newFakeMetrics()
	lookup := NewCPVLookup(store, nil, LookupOptions{Metrics: metrics})

	firstDone := make(chan []domain.ClassificationRecord)
	go func() {
		firstDone <- lookup.Search(context.Background(), "first")
	}()
	<-started

	second := lookup.Search(context.Background(), "second")
	close(release)
	first := <-firstDone

	assert.Nil(t, first, "stale response is discarded")
	assert.Equal(t, []string{"22222222-2"}, codesOf(second))

	state := lookup.State()
	assert.Equal(t, "second", state.Query)
	assert.Equal(t, []string{"22222222-2"}, codesOf(state.Results))
	assert.False(t, state.Loading)
	assert.Contains(t, metrics.outcomes(), OutcomeStale)
}

func TestCPVLookup_AddCode(t *testing.T) {
	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "works", mock.Anything).
		Return([]domain.ClassificationRecord{cpvRecord("45000000-7", "Construction work")}, nil)

	var notified []domain.Selection
	lookup := NewCPVLookup(store, domain.Selection{"A"}, LookupOptions{
		Variant:  InlineVariant,
		OnChange: func(sel domain.Selection) { notified = append(notified, sel) },
	})
	lookup.Search(context.Background(), "works")

	assert.True(t, lookup.AddCode("45000000-7"))

	state := lookup.State()
	assert.Equal(t, domain.Selection{"A", "45000000-7"}, state.Selection)
	assert.Empty(t, state.Query)
	assert.Empty(t, state.Results)
	require.Len(t, notified, 1)
	assert.Equal(t, domain.Selection{"A", "45000000-7"}, notified[0])
}

func TestCPVLookup_AddCode_NoOps(t *testing.T) {
	tests := []struct {
		name    string
		initial domain.Selection
		code    string
	}{
		{name: "empty code", initial: domain.Selection{"A"}, code: ""},
		{name: "whitespace code", initial: domain.Selection{"A"}, code: "   "},
		{name: "duplicate", initial: domain.Selection{"A", "B"}, code: "B"},
		{name: "at cap", initial: domain.Selection{"A", "B", "C", "D", "E"}, code: "F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			lookup := NewCPVLookup(new(MockRecordStore), tt.initial, LookupOptions{
				OnChange: func(domain.Selection) { called = true },
			})

			assert.False(t, lookup.AddCode(tt.code))
			assert.Equal(t, tt.initial, lookup.Selection())
			assert.False(t, called)
		})
	}
}

func TestCPVLookup_AddCode_RespectsConfiguredCap(t *testing.T) {
	lookup := NewCPVLookup(new(MockRecordStore), nil, LookupOptions{MaxCodes: 2})

	assert.True(t, lookup.AddCode("A"))
	assert.True(t, lookup.AddCode("B"))
	assert.False(t, lookup.AddCode("C"))
	assert.Equal(t, 0, lookup.State().Remaining)
}

func TestCPVLookup_AddCode_DiscardsInFlightSearch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	store := new(MockRecordStore)
	store.On("SearchBySubstring", mock.Anything, "works", mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]domain.ClassificationRecord{cpvRecord("45000000-7", "Construction work")}, nil)

	lookup := NewCPVLookup(store, nil, LookupOptions{Variant: InlineVariant})

	done := make(chan []domain.ClassificationRecord)
	go func() { done <- lookup.Search(context.Background(), "works") }()
	<-started

	require.True(t, lookup.AddCode("72000000-5"))
	close(release)

	assert.Nil(t, <-done)
	assert.Empty(t, lookup.State().Results, "cleared results stay cleared")
}

func TestCPVLookup_RemoveCode(t *testing.T) {
	var notified []domain.Selection
	lookup := NewCPVLookup(new(MockRecordStore), domain.Selection{"A", "B", "C"}, LookupOptions{
		OnChange: func(sel domain.Selection) { notified = append(notified, sel) },
	})

	assert.True(t, lookup.RemoveCode("B"))
	assert.Equal(t, domain.Selection{"A", "C"}, lookup.Selection())

	assert.False(t, lookup.RemoveCode("Z"))
	assert.False(t, lookup.RemoveCode(""))

	require.Len(t, notified, 1)
	assert.Equal(t, domain.Selection{"A", "C"}, notified[0])
}

func TestCPVLookup_RemoveThenAddAppendsAtEnd(t *testing.T) {
	lookup := NewCPVLookup(new(MockRecordStore), domain.Selection{"A", "B", "C"}, LookupOptions{})

	require.True(t, lookup.RemoveCode("A"))
	require.True(t, lookup.AddCode("A"))

	assert.Equal(t, domain.Selection{"B", "C", "A"}, lookup.Selection())
}

func TestCPVLookup_AddCode_StopsAtFiveFromEmpty(t *testing.T) {
	var notified []domain.Selection
	lookup := NewCPVLookup(new(MockRecordStore), nil, LookupOptions{
		OnChange: func(sel domain.Selection) { notified = append(notified, sel) },
	})

	for _, code := range []string{"45000000", "48000000", "71000000", "72000000", "79000000"} {
		require.True(t, lookup.AddCode(code), code)
	}
	assert.False(t, lookup.AddCode("90000000"))

	state := lookup.State()
	assert.Equal(t, domain.Selection{"45000000", "48000000", "71000000", "72000000", "79000000"}, state.Selection)
	assert.Equal(t, 0, state.Remaining)
	assert.Len(t, notified, 5)
}

func TestCPVLookup_SelectionIsACopy(t *testing.T) {
	initial := domain.Selection{"A", "B"}
	lookup := NewCPVLookup(new(MockRecordStore), initial, LookupOptions{})

	initial[0] = "mutated"
	sel := lookup.Selection()
	sel[1] = "mutated"

	assert.Equal(t, domain.Selection{"A", "B"}, lookup.Selection())
}

func TestCPVLookup_ResolveSelectionDetails_EmptySelection(t *testing.T) {
	store := new(MockRecordStore)
	lookup := NewCPVLookup(store, nil, LookupOptions{})

	details := lookup.ResolveSelectionDetails(context.Background())

	assert.NotNil(t, details)
	assert.Empty(t, details)
	store.AssertNotCalled(t, "FetchByKeys", mock.Anything, mock.Anything)
}

func TestCPVLookup_ResolveSelectionDetails_SelectionOrder(t *testing.T) {
	store := new(MockRecordStore)
	sel := domain.Selection{"C", "A", "MISSING", "B"}
	store.On("FetchByKeys", mock.Anything, []string{"C", "A", "MISSING", "B"}).Return([]domain.ClassificationRecord{
		cpvRecord("A", "alpha"),
		cpvRecord("B", "bravo"),
		cpvRecord("C", "charlie"),
		cpvRecord("", "malformed"),
	}, nil)

	lookup := NewCPVLookup(store, sel, LookupOptions{})
	details := lookup.ResolveSelectionDetails(context.Background())

	assert.Equal(t, []string{"C", "A", "B"}, codesOf(details))
	store.AssertExpectations(t)
}

func TestCPVLookup_ResolveSelectionDetails_StoreError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := new(MockRecordStore)
	store.On("FetchByKeys", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	lookup := NewCPVLookup(store, domain.Selection{"A"}, LookupOptions{Logger: zap.New(core)})
	details := lookup.ResolveSelectionDetails(context.Background())

	assert.Empty(t, details)
	assert.Equal(t, 1, logs.FilterMessage("cpv selection lookup failed").Len())
}

func TestOrderBySelection_DropsDuplicates(t *testing.T) {
	records := []domain.ClassificationRecord{cpvRecord("B", "b"), cpvRecord("A", "a"), cpvRecord("B", "b again")}

	ordered := OrderBySelection(records, domain.Selection{"A", "B"})

	require.Len(t, ordered, 2)
	assert.Equal(t, "A", ordered[0].Code)
	assert.Equal(t, "b", ordered[1].LabelFor(language.English))
}
