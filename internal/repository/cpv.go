package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CPVRepository reads and writes the CPV reference table.
type CPVRepository struct {
	db dbtx
}

func NewCPVRepository(pool *pgxpool.Pool) *CPVRepository {
	return &CPVRepository{db: pool}
}

func NewCPVRepositoryWithTx(tx pgx.Tx) *CPVRepository {
	return &CPVRepository{db: tx}
}

// SearchBySubstring matches term as a literal, case-insensitive substring of
// any label or the code itself.
func (r *CPVRepository) SearchBySubstring(ctx context.Context, term string, limit int) ([]domain.ClassificationRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT code, en, fr, de, nl
		 FROM cpv_codes
		 WHERE en ILIKE $1 OR fr ILIKE $1 OR de ILIKE $1 OR nl ILIKE $1 OR code ILIKE $1
		 ORDER BY code
		 LIMIT $2`,
		"%"+escapeLike(term)+"%", limit,
	)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// FetchByKeys returns the rows for codes in no particular order.
func (r *CPVRepository) FetchByKeys(ctx context.Context, codes []string) ([]domain.ClassificationRecord, error) {
	if len(codes) == 0 {
		return []domain.ClassificationRecord{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT code, en, fr, de, nl FROM cpv_codes WHERE code = ANY($1)`,
		codes,
	)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// UpsertRecords writes records in one batch, replacing the labels of codes
// that already exist.
func (r *CPVRepository) UpsertRecords(ctx context.Context, records []domain.ClassificationRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO cpv_codes (code, en, fr, de, nl, updated_at)
			 VALUES ($1, $2, $3, $4, $5, now())
			 ON CONFLICT (code) DO UPDATE
			 SET en = EXCLUDED.en, fr = EXCLUDED.fr, de = EXCLUDED.de, nl = EXCLUDED.nl, updated_at = now()`,
			rec.Code,
			nullableString(rec.LabelFor(domain.SupportedLocales[0])),
			nullableString(rec.LabelFor(domain.SupportedLocales[1])),
			nullableString(rec.LabelFor(domain.SupportedLocales[2])),
			nullableString(rec.LabelFor(domain.SupportedLocales[3])),
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for i := range records {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("upsert %s: %w", records[i].Code, err)
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}

func (r *CPVRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM cpv_codes WHERE code IS NOT NULL`).Scan(&n)
	return n, err
}

func scanRecords(rows pgx.Rows) ([]domain.ClassificationRecord, error) {
	defer rows.Close()

	records := []domain.ClassificationRecord{}
	for rows.Next() {
		var code, en, fr, de, nl *string
		if err := rows.Scan(&code, &en, &fr, &de, &nl); err != nil {
			return nil, err
		}
		records = append(records, domain.NewClassificationRecord(
			stringOrEmpty(code),
			stringOrEmpty(en),
			stringOrEmpty(fr),
			stringOrEmpty(de),
			stringOrEmpty(nl),
		))
	}
	return records, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes term match literally inside an ILIKE pattern.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
