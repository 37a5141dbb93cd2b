package service

import (
	"context"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
)

// RecordStore is the read side of the CPV reference table.
// FetchByKeys makes no ordering promise.
type RecordStore interface {
	SearchBySubstring(ctx context.Context, term string, limit int) ([]domain.ClassificationRecord, error)
	FetchByKeys(ctx context.Context, codes []string) ([]domain.ClassificationRecord, error)
}

// LookupMetrics receives lookup outcomes. A nil LookupMetrics is allowed everywhere.
type LookupMetrics interface {
	RecordSearch(variant, outcome string, duration time.Duration)
	RecordSelectionChange(operation, outcome string)
	RecordCacheLookup(result string)
}

// Search outcomes reported to LookupMetrics.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeStale   = "stale"
)

type noopMetrics struct{}

func (noopMetrics) RecordSearch(string, string, time.Duration) {}
func (noopMetrics) RecordSelectionChange(string, string)       {}
func (noopMetrics) RecordCacheLookup(string)                   {}

func metricsOrNoop(m LookupMetrics) LookupMetrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
