package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SearchLogStore deletes search logs created before a cutoff.
type SearchLogStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type PruneMetrics interface {
	RecordPrunedSearchLogs(n int64)
}

// SearchLogPruner removes CPV search logs older than the retention window.
type SearchLogPruner struct {
	store     SearchLogStore
	retention time.Duration
	metrics   PruneMetrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewSearchLogPruner(store SearchLogStore, retention time.Duration, metrics PruneMetrics, logger *zap.Logger) *SearchLogPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchLogPruner{
		store:     store,
		retention: retention,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (p *SearchLogPruner) ProcessJobs(ctx context.Context) error {
	cutoff := p.now().UTC().Add(-p.retention)
	deleted, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune search logs: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordPrunedSearchLogs(deleted)
	}
	if deleted > 0 {
		p.logger.Info("pruned cpv search logs",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}
