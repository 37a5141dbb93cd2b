package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/LogiStackDev/access-onboard-flow/internal/telemetry"
	"go.uber.org/zap"
)

// LookupVariant fixes the result limit and whether already-selected codes are hidden.
type LookupVariant struct {
	Name            string
	Limit           int
	ExcludeSelected bool
}

var (
	// InlineVariant is the add-to-selection picker.
	InlineVariant = LookupVariant{Name: "inline", Limit: domain.InlineResultLimit, ExcludeSelected: true}
	// StandaloneVariant is the free search box.
	StandaloneVariant = LookupVariant{Name: "standalone", Limit: domain.StandaloneResultLimit}
)

const defaultSearchTimeout = 5 * time.Second

// LookupOptions configures a CPVLookup. Zero values fall back to the domain defaults.
type LookupOptions struct {
	Variant        LookupVariant
	MaxCodes       int
	MinQueryLength int
	Timeout        time.Duration
	Logger         *zap.Logger
	Metrics        LookupMetrics
	// OnChange is called outside the lock with a copy of the new selection.
	OnChange func(domain.Selection)
}

func (o LookupOptions) withDefaults() LookupOptions {
	if o.Variant.Name == "" {
		o.Variant = StandaloneVariant
	}
	if o.Variant.Limit <= 0 {
		o.Variant.Limit = domain.StandaloneResultLimit
	}
	if o.MaxCodes <= 0 {
		o.MaxCodes = domain.DefaultMaxCodes
	}
	if o.MinQueryLength <= 0 {
		o.MinQueryLength = domain.DefaultMinQueryLength
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultSearchTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.Metrics = metricsOrNoop(o.Metrics)
	return o
}

// LookupState is a point-in-time copy of the widget state.
type LookupState struct {
	Query     string
	Results   []domain.ClassificationRecord
	Loading   bool
	Failed    bool
	Skipped   bool
	Selection domain.Selection
	Remaining int
}

// CPVLookup is the lookup-and-select widget: substring search over the CPV
// table plus an ordered, capped selection owned by the caller.
//
// Every dispatched search takes a sequence number; only the response
// carrying the latest number may update the state.
type CPVLookup struct {
	store RecordStore
	opts  LookupOptions

	mu        sync.Mutex
	selection domain.Selection
	query     string
	results   []domain.ClassificationRecord
	loading   bool
	failed    bool
	skipped   bool
	seq       uint64
}

func NewCPVLookup(store RecordStore, initial domain.Selection, opts LookupOptions) *CPVLookup {
	return &CPVLookup{
		store:     store,
		opts:      opts.withDefaults(),
		selection: initial.Clone(),
	}
}

// Search runs a substring lookup. The minimum length is counted in runes after
// NormalizeQuery, so surrounding whitespace does not count. Queries shorter
// than the minimum clear the results without touching the store. Store failures and timeouts are logged
// and yield an empty result with the Failed flag set. A response overtaken by
// a newer search returns nil and leaves the state alone.
func (l *CPVLookup) Search(ctx context.Context, query string) []domain.ClassificationRecord {
	term := NormalizeQuery(query)

	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.query = query
	l.failed = false
	l.skipped = false
	if utf8.RuneCountInString(term) < l.opts.MinQueryLength {
		l.results = nil
		l.loading = false
		l.skipped = true
		l.mu.Unlock()
		l.opts.Metrics.RecordSearch(l.opts.Variant.Name, OutcomeSkipped, 0)
		return []domain.ClassificationRecord{}
	}
	l.loading = true
	fetchLimit := l.opts.Variant.Limit
	if l.opts.Variant.ExcludeSelected {
		fetchLimit += len(l.selection)
	}
	l.mu.Unlock()

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	records, err := l.store.SearchBySubstring(callCtx, term, fetchLimit)
	cancel()
	elapsed := time.Since(start)

	l.mu.Lock()
	defer l.mu.Unlock()

	if seq != l.seq {
		l.opts.Metrics.RecordSearch(l.opts.Variant.Name, OutcomeStale, elapsed)
		return nil
	}

	l.loading = false
	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = OutcomeTimeout
		}
		l.opts.Logger.Warn("cpv search failed",
			zap.String("variant", l.opts.Variant.Name),
			zap.String("query", term),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		l.opts.Metrics.RecordSearch(l.opts.Variant.Name, outcome, elapsed)
		telemetry.AddBreadcrumb(ctx, "cpv.lookup", l.opts.Variant.Name+" search "+outcome)
		l.results = []domain.ClassificationRecord{}
		l.failed = true
		return []domain.ClassificationRecord{}
	}

	l.results = l.filterResults(records)
	l.opts.Metrics.RecordSearch(l.opts.Variant.Name, OutcomeSuccess, elapsed)
	return cloneRecords(l.results)
}

// filterResults must be called with l.mu held.
func (l *CPVLookup) filterResults(records []domain.ClassificationRecord) []domain.ClassificationRecord {
	out := make([]domain.ClassificationRecord, 0, len(records))
	for _, rec := range records {
		if l.opts.Variant.ExcludeSelected && (!rec.HasCode() || l.selection.Contains(rec.Code)) {
			continue
		}
		out = append(out, rec)
		if len(out) == l.opts.Variant.Limit {
			break
		}
	}
	return out
}

// AddCode appends code to the selection and resets the search. Empty codes,
// duplicates and adds beyond the cap are silent no-ops reported as false.
func (l *CPVLookup) AddCode(code string) bool {
	code = strings.TrimSpace(code)

	l.mu.Lock()
	next, ok := l.selection.Add(code, l.opts.MaxCodes)
	if !ok {
		l.mu.Unlock()
		l.opts.Metrics.RecordSelectionChange("add", "ignored")
		return false
	}
	l.selection = next
	l.query = ""
	l.results = nil
	l.loading = false
	l.failed = false
	l.skipped = false
	l.seq++
	snapshot := next.Clone()
	l.mu.Unlock()

	l.opts.Metrics.RecordSelectionChange("add", "applied")
	l.notify(snapshot)
	return true
}

// RemoveCode drops code from the selection. Unknown codes are a no-op.
func (l *CPVLookup) RemoveCode(code string) bool {
	code = strings.TrimSpace(code)

	l.mu.Lock()
	next, ok := l.selection.Remove(code)
	if !ok {
		l.mu.Unlock()
		l.opts.Metrics.RecordSelectionChange("remove", "ignored")
		return false
	}
	l.selection = next
	snapshot := next.Clone()
	l.mu.Unlock()

	l.opts.Metrics.RecordSelectionChange("remove", "applied")
	l.notify(snapshot)
	return true
}

func (l *CPVLookup) notify(sel domain.Selection) {
	if l.opts.OnChange != nil {
		l.opts.OnChange(sel)
	}
}

// ResolveSelectionDetails loads full records for the selection, in selection
// order. An empty selection never reaches the store; store errors yield an
// empty result.
func (l *CPVLookup) ResolveSelectionDetails(ctx context.Context) []domain.ClassificationRecord {
	sel := l.Selection()
	if len(sel) == 0 {
		return []domain.ClassificationRecord{}
	}

	callCtx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	records, err := l.store.FetchByKeys(callCtx, sel)
	if err != nil {
		l.opts.Logger.Warn("cpv selection lookup failed",
			zap.Strings("codes", sel),
			zap.Error(err))
		return []domain.ClassificationRecord{}
	}
	return OrderBySelection(records, sel)
}

func (l *CPVLookup) Selection() domain.Selection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selection.Clone()
}

func (l *CPVLookup) State() LookupState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LookupState{
		Query:     l.query,
		Results:   cloneRecords(l.results),
		Loading:   l.loading,
		Failed:    l.failed,
		Skipped:   l.skipped,
		Selection: l.selection.Clone(),
		Remaining: l.selection.Remaining(l.opts.MaxCodes),
	}
}

// OrderBySelection keeps records whose code is in sel, one per code, sorted by position in sel.
func OrderBySelection(records []domain.ClassificationRecord, sel domain.Selection) []domain.ClassificationRecord {
	pos := make(map[string]int, len(sel))
	for i, code := range sel {
		pos[code] = i
	}

	out := make([]domain.ClassificationRecord, 0, len(sel))
	seen := make(map[string]struct{}, len(sel))
	for _, rec := range records {
		if _, ok := pos[rec.Code]; !ok || !rec.HasCode() {
			continue
		}
		if _, dup := seen[rec.Code]; dup {
			continue
		}
		seen[rec.Code] = struct{}{}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return pos[out[i].Code] < pos[out[j].Code]
	})
	return out
}

func cloneRecords(records []domain.ClassificationRecord) []domain.ClassificationRecord {
	if records == nil {
		return []domain.ClassificationRecord{}
	}
	out := make([]domain.ClassificationRecord, len(records))
	copy(out, records)
	return out
}
