//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/LogiStackDev/access-onboard-flow/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func seedCPV(ctx context.Context, t *testing.T, repo *CPVRepository) {
	t.Helper()
	n, err := repo.UpsertRecords(ctx, []domain.ClassificationRecord{
		domain.NewClassificationRecord("45000000-7", "Construction work", "Travaux de construction", "Bauarbeiten", "Bouwwerkzaamheden"),
		domain.NewClassificationRecord("44114000-2", "Concrete", "Béton", "Beton", "Beton"),
		domain.NewClassificationRecord("44114100-3", "Ready-mixed concrete", "Béton prêt à l'emploi", "Transportbeton", "Stortklaar beton"),
		domain.NewClassificationRecord("30197600-2", "Processed paper and paperboard", "", "", ""),
		domain.NewClassificationRecord("79000000-4", "Business services: 100% law_marketing", "", "", ""),
	})
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func newCPVTestRepo(ctx context.Context, t *testing.T) (*CPVRepository, *pgxpool.Pool) {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc)
	t.Cleanup(pool.Close)

	repo := NewCPVRepository(pool)
	seedCPV(ctx, t, repo)
	return repo, pool
}

func TestCPVRepository_SearchBySubstring(t *testing.T) {
	ctx := context.Background()
	repo, pool := newCPVTestRepo(ctx, t)

	t.Run("matches any locale case-insensitively, ordered by code", func(t *testing.T) {
		records, err := repo.SearchBySubstring(ctx, "BETON", 20)
		require.NoError(t, err)
		codes := make([]string, 0, len(records))
		for _, r := range records {
			codes = append(codes, r.Code)
		}
		assert.Equal(t, []string{"44114000-2", "44114100-3"}, codes)
		assert.Equal(t, "Béton", records[0].LabelFor(language.French))
	})

	t.Run("matches the code column", func(t *testing.T) {
		records, err := repo.SearchBySubstring(ctx, "45000", 20)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Construction work", records[0].Label())
	})

	t.Run("applies the limit", func(t *testing.T) {
		records, err := repo.SearchBySubstring(ctx, "0", 2)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("wildcards match literally", func(t *testing.T) {
		records, err := repo.SearchBySubstring(ctx, "100%", 20)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "79000000-4", records[0].Code)

		records, err = repo.SearchBySubstring(ctx, "w_rk", 20)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("missing labels come back empty", func(t *testing.T) {
		records, err := repo.SearchBySubstring(ctx, "paperboard", 20)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Empty(t, records[0].LabelFor(language.German))
	})

	t.Run("rows without code are returned with an empty code", func(t *testing.T) {
		_, err := pool.Exec(ctx, `INSERT INTO cpv_codes (code, en) VALUES (NULL, 'Orphan concrete row')`)
		require.NoError(t, err)

		records, err := repo.SearchBySubstring(ctx, "orphan", 20)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.False(t, records[0].HasCode())
	})
}

func TestCPVRepository_FetchByKeys(t *testing.T) {
	ctx := context.Background()
	repo, _ := newCPVTestRepo(ctx, t)

	records, err := repo.FetchByKeys(ctx, []string{"79000000-4", "45000000-7", "99999999-9"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = repo.FetchByKeys(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCPVRepository_UpsertRecords_UpdatesLabels(t *testing.T) {
	ctx := context.Background()
	repo, _ := newCPVTestRepo(ctx, t)

	_, err := repo.UpsertRecords(ctx, []domain.ClassificationRecord{
		domain.NewClassificationRecord("44114000-2", "Concrete (updated)", "", "", ""),
	})
	require.NoError(t, err)

	records, err := repo.FetchByKeys(ctx, []string{"44114000-2"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Concrete (updated)", records[0].Label())
	assert.Empty(t, records[0].LabelFor(language.French))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}
