package service

import (
	"context"
	"fmt"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// sharedSearchTimeout bounds a store call shared by concurrent callers. The
// call is detached from any single caller's cancellation.
const sharedSearchTimeout = 10 * time.Second

// CachedRecordStore memoises substring searches. Keys are lowercased so that
// "Beton" and "BETON" share an entry, matching ILIKE. Concurrent identical
// searches share one store call. Errors are never cached.
type CachedRecordStore struct {
	next    RecordStore
	cache   *cache.Cache
	group   singleflight.Group
	metrics LookupMetrics
}

func NewCachedRecordStore(next RecordStore, ttl time.Duration, metrics LookupMetrics) *CachedRecordStore {
	return &CachedRecordStore{
		next:    next,
		cache:   cache.New(ttl, ttl*2),
		metrics: metricsOrNoop(metrics),
	}
}

func (s *CachedRecordStore) SearchBySubstring(ctx context.Context, term string, limit int) ([]domain.ClassificationRecord, error) {
	key := fmt.Sprintf("%d|%s", limit, lowerQuery(term))

	if cached, found := s.cache.Get(key); found {
		s.metrics.RecordCacheLookup("hit")
		return cloneRecords(cached.([]domain.ClassificationRecord)), nil
	}
	s.metrics.RecordCacheLookup("miss")

	ch := s.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedSearchTimeout)
		defer cancel()
		records, err := s.next.SearchBySubstring(callCtx, term, limit)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, records, cache.DefaultExpiration)
		return records, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneRecords(res.Val.([]domain.ClassificationRecord)), nil
	}
}

func (s *CachedRecordStore) FetchByKeys(ctx context.Context, codes []string) ([]domain.ClassificationRecord, error) {
	return s.next.FetchByKeys(ctx, codes)
}

// Flush drops every cached search, e.g. after a dataset import.
func (s *CachedRecordStore) Flush() {
	s.cache.Flush()
}

func (s *CachedRecordStore) ItemCount() int {
	return s.cache.ItemCount()
}
