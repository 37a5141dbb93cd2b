package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/LogiStackDev/access-onboard-flow/internal/pagination"
	"github.com/LogiStackDev/access-onboard-flow/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchLogRepository stores CPV searches and the code eventually picked.
type SearchLogRepository struct {
	db dbtx
}

func NewSearchLogRepository(pool *pgxpool.Pool) *SearchLogRepository {
	return &SearchLogRepository{db: pool}
}

func NewSearchLogRepositoryWithTx(tx pgx.Tx) *SearchLogRepository {
	return &SearchLogRepository{db: tx}
}

func (r *SearchLogRepository) CreateSearchLog(ctx context.Context, entry service.SearchLogEntry) (string, error) {
	results := entry.Results
	if results == nil {
		results = []service.SearchLogResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return "", err
	}

	var id string
	err = r.db.QueryRow(ctx,
		`INSERT INTO cpv_search_logs (user_id, query, variant, locale, results, result_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		entry.UserID,
		entry.Query,
		entry.Variant,
		nullableString(entry.Locale),
		resultsJSON,
		len(results),
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// RecordSearchSelection stores the code picked from a search. Searches of
// other users are reported as not found.
func (r *SearchLogRepository) RecordSearchSelection(ctx context.Context, userID, searchID, code string) error {
	if _, err := uuid.Parse(searchID); err != nil {
		return domain.ErrSearchLogNotFound
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE cpv_search_logs
		 SET chosen_code = $1, chosen_at = $2
		 WHERE id = $3 AND user_id = $4`,
		code,
		time.Now().UTC(),
		searchID,
		userID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSearchLogNotFound
	}
	return nil
}

func (r *SearchLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM cpv_search_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// ListByUser pages through a user's searches ordered by (created_at, id)
// descending.
func (r *SearchLogRepository) ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (pagination.Page[service.SearchHistoryItem], error) {
	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, query, variant, locale, result_count, chosen_code, created_at
			 FROM cpv_search_logs
			 WHERE user_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			userID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, query, variant, locale, result_count, chosen_code, created_at
			 FROM cpv_search_logs
			 WHERE user_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			userID, limit+1,
		)
	}
	if err != nil {
		return pagination.Page[service.SearchHistoryItem]{}, err
	}
	defer rows.Close()

	var items []service.SearchHistoryItem
	for rows.Next() {
		var item service.SearchHistoryItem
		var locale, chosen *string
		if err := rows.Scan(&item.ID, &item.Query, &item.Variant, &locale, &item.ResultCount, &chosen, &item.CreatedAt); err != nil {
			return pagination.Page[service.SearchHistoryItem]{}, err
		}
		item.Locale = stringOrEmpty(locale)
		item.ChosenCode = stringOrEmpty(chosen)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[service.SearchHistoryItem]{}, err
	}

	return pagination.NewPage(items, limit, func(item service.SearchHistoryItem) (string, time.Time) {
		return item.ID, item.CreatedAt
	}), nil
}
