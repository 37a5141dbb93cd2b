package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/LogiStackDev/access-onboard-flow/internal/pagination"
	"github.com/LogiStackDev/access-onboard-flow/internal/telemetry"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// MaxResolveCodes bounds a single resolve request.
const MaxResolveCodes = 100

// LookupConfig carries the tunables shared by every widget the service builds.
type LookupConfig struct {
	MaxCodes        int
	MinQueryLength  int
	InlineLimit     int
	StandaloneLimit int
	SearchTimeout   time.Duration
	Logger          *zap.Logger
	Metrics         LookupMetrics
}

// SearchOutput is one search as the API returns it.
type SearchOutput struct {
	Query    string
	Variant  string
	Results  []domain.ClassificationRecord
	SearchID string
	Skipped  bool
	Failed   bool
}

// SelectionChange reports the selection after an add or remove.
type SelectionChange struct {
	Selection domain.Selection
	Changed   bool
	Remaining int
}

// CPVService builds a CPVLookup per request, seeded from the user's saved
// selection, and persists whatever the widget reports through OnChange.
type CPVService struct {
	store      RecordStore
	profiles   ProfileRepositoryInterface
	searchLogs SearchLogRepository
	tx         TxRunner
	cfg        LookupConfig
}

func NewCPVService(store RecordStore, profiles ProfileRepositoryInterface, searchLogs SearchLogRepository, tx TxRunner, cfg LookupConfig) *CPVService {
	if cfg.MaxCodes <= 0 {
		cfg.MaxCodes = domain.DefaultMaxCodes
	}
	if cfg.InlineLimit <= 0 {
		cfg.InlineLimit = domain.InlineResultLimit
	}
	if cfg.StandaloneLimit <= 0 {
		cfg.StandaloneLimit = domain.StandaloneResultLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cfg.Metrics = metricsOrNoop(cfg.Metrics)
	return &CPVService{
		store:      store,
		profiles:   profiles,
		searchLogs: searchLogs,
		tx:         tx,
		cfg:        cfg,
	}
}

func (s *CPVService) newLookup(variant LookupVariant, sel domain.Selection, onChange func(domain.Selection)) *CPVLookup {
	switch variant.Name {
	case InlineVariant.Name:
		variant.Limit = s.cfg.InlineLimit
	case StandaloneVariant.Name:
		variant.Limit = s.cfg.StandaloneLimit
	}
	return NewCPVLookup(s.store, sel, LookupOptions{
		Variant:        variant,
		MaxCodes:       s.cfg.MaxCodes,
		MinQueryLength: s.cfg.MinQueryLength,
		Timeout:        s.cfg.SearchTimeout,
		Logger:         s.cfg.Logger,
		Metrics:        s.cfg.Metrics,
		OnChange:       onChange,
	})
}

// Search is the standalone search: up to StandaloneLimit results, no filtering.
func (s *CPVService) Search(ctx context.Context, userID, query, locale string) *SearchOutput {
	ctx, span := telemetry.StartSpan(ctx, "cpv.search", telemetry.SpanAttributes{
		UserID:    userID,
		Operation: StandaloneVariant.Name,
	})
	defer span.End()

	out := s.run(ctx, s.newLookup(StandaloneVariant, nil, nil), userID, query, locale)
	markSearchSpan(span, out)
	return out
}

// Suggest is the inline picker: codes the user already selected are hidden.
func (s *CPVService) Suggest(ctx context.Context, userID, query, locale string) (*SearchOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "cpv.suggest", telemetry.SpanAttributes{
		UserID:    userID,
		Operation: InlineVariant.Name,
	})
	defer span.End()

	sel, err := s.savedSelection(ctx, userID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	out := s.run(ctx, s.newLookup(InlineVariant, sel, nil), userID, query, locale)
	markSearchSpan(span, out)
	return out, nil
}

func markSearchSpan(span *telemetry.Span, out *SearchOutput) {
	if out.Failed {
		span.SetStatus(sentry.SpanStatusUnavailable)
		return
	}
	span.SetStatus(sentry.SpanStatusOK)
}

func (s *CPVService) run(ctx context.Context, lookup *CPVLookup, userID, query, locale string) *SearchOutput {
	start := time.Now()
	results := lookup.Search(ctx, query)
	state := lookup.State()

	out := &SearchOutput{
		Query:   query,
		Variant: lookup.opts.Variant.Name,
		Results: results,
		Failed:  state.Failed,
		Skipped: state.Skipped,
	}
	if out.Skipped || out.Failed || s.searchLogs == nil {
		return out
	}

	entry := SearchLogEntry{
		UserID:     userID,
		Query:      NormalizeQuery(query),
		Variant:    out.Variant,
		Locale:     locale,
		DurationMs: int(time.Since(start).Milliseconds()),
		Results:    make([]SearchLogResult, 0, len(results)),
	}
	for i, rec := range results {
		entry.Results = append(entry.Results, SearchLogResult{Code: rec.Code, Position: i + 1})
	}
	searchID, err := s.searchLogs.CreateSearchLog(ctx, entry)
	if err != nil {
		s.cfg.Logger.Warn("failed to write search log", zap.String("user_id", userID), zap.Error(err))
		return out
	}
	out.SearchID = searchID
	return out
}

// Resolve loads records for arbitrary codes, in the order given.
func (s *CPVService) Resolve(ctx context.Context, codes []string) ([]domain.ClassificationRecord, error) {
	sel := domain.NormalizeSelection(codes)
	if len(sel) > MaxResolveCodes {
		return nil, tooManyResolveCodes(len(sel))
	}
	return s.newLookup(StandaloneVariant, sel, nil).ResolveSelectionDetails(ctx), nil
}

// Selection resolves the user's saved selection.
func (s *CPVService) Selection(ctx context.Context, userID string) ([]domain.ClassificationRecord, domain.Selection, error) {
	sel, err := s.savedSelection(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return s.newLookup(InlineVariant, sel, nil).ResolveSelectionDetails(ctx), sel, nil
}

// AddCode adds a known CPV code to the user's saved selection. When searchID
// is set the pick is recorded against that search log.
func (s *CPVService) AddCode(ctx context.Context, userID, code, searchID string) (*SelectionChange, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", domain.ErrInvalidCPVCode)
	}

	known, err := s.store.FetchByKeys(ctx, []string{code})
	if err != nil {
		return nil, fmt.Errorf("failed to look up cpv code: %w", err)
	}
	if len(OrderBySelection(known, domain.Selection{code})) == 0 {
		return nil, domain.ErrCPVCodeNotFound
	}

	return s.mutate(ctx, userID, "add", func(l *CPVLookup) bool { return l.AddCode(code) }, func(repos TxRepositories) error {
		if searchID == "" {
			return nil
		}
		if err := repos.SearchLogs().RecordSearchSelection(ctx, userID, searchID, code); err != nil {
			if errors.Is(err, domain.ErrSearchLogNotFound) {
				s.cfg.Logger.Debug("search log not found for selection", zap.String("search_id", searchID))
				return nil
			}
			return err
		}
		return nil
	})
}

func (s *CPVService) RemoveCode(ctx context.Context, userID, code string) (*SelectionChange, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", domain.ErrInvalidCPVCode)
	}
	return s.mutate(ctx, userID, "remove", func(l *CPVLookup) bool { return l.RemoveCode(code) }, nil)
}

// mutate locks the profile row, replays the change through a widget and
// persists the selection the widget hands to OnChange.
func (s *CPVService) mutate(ctx context.Context, userID, op string, apply func(*CPVLookup) bool, after func(TxRepositories) error) (*SelectionChange, error) {
	ctx, span := telemetry.StartSpan(ctx, "cpv.selection."+op, telemetry.SpanAttributes{
		UserID:    userID,
		Operation: op,
	})
	defer span.End()

	result := &SelectionChange{}
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		profile, err := repos.Profiles().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		var changed domain.Selection
		lookup := s.newLookup(InlineVariant, profile.CPVCodes, func(sel domain.Selection) {
			changed = sel
		})

		result.Changed = apply(lookup)
		result.Selection = lookup.Selection()
		result.Remaining = result.Selection.Remaining(s.cfg.MaxCodes)
		if !result.Changed {
			return nil
		}

		if err := repos.Profiles().UpdateCPVCodes(ctx, userID, changed); err != nil {
			return fmt.Errorf("failed to persist selection: %w", err)
		}
		if after != nil {
			return after(repos)
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return result, nil
}

// History lists the user's own searches, newest first.
func (s *CPVService) History(ctx context.Context, userID, cursor string, limit int) (pagination.Page[SearchHistoryItem], error) {
	after, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return pagination.Page[SearchHistoryItem]{}, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	if s.searchLogs == nil {
		return pagination.NewPage[SearchHistoryItem](nil, 0, nil), nil
	}
	page, err := s.searchLogs.ListByUser(ctx, userID, after, pagination.ClampLimit(limit))
	if err != nil {
		return pagination.Page[SearchHistoryItem]{}, fmt.Errorf("failed to list search history: %w", err)
	}
	return page, nil
}

func (s *CPVService) savedSelection(ctx context.Context, userID string) (domain.Selection, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return domain.Selection{}, nil
		}
		return nil, fmt.Errorf("failed to load selection: %w", err)
	}
	return profile.CPVCodes, nil
}

func tooManyResolveCodes(n int) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
		fmt.Sprintf("at most %d codes can be resolved at once", MaxResolveCodes),
		fmt.Errorf("%w: got %d", domain.ErrTooManyResolveCodes, n))
}
