package repository

import (
	"context"
	"errors"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepository struct {
	db dbtx
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: pool}
}

func NewProfileRepositoryWithTx(tx pgx.Tx) *ProfileRepository {
	return &ProfileRepository{db: tx}
}

const profileColumns = `id, full_name, company_name, company_description, country, telephone, cpv_codes, created_at, updated_at`

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	return r.get(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

// GetByIDForUpdate locks the row until the surrounding transaction ends.
func (r *ProfileRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Profile, error) {
	return r.get(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id)
}

func (r *ProfileRepository) get(ctx context.Context, query, id string) (*domain.Profile, error) {
	var p domain.Profile
	var companyName, companyDescription, country, telephone *string
	var codes []string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.FullName, &companyName, &companyDescription, &country, &telephone,
		&codes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	p.CompanyName = stringOrEmpty(companyName)
	p.CompanyDescription = stringOrEmpty(companyDescription)
	p.Country = stringOrEmpty(country)
	p.Telephone = stringOrEmpty(telephone)
	p.CPVCodes = domain.Selection(codes)
	if p.CPVCodes == nil {
		p.CPVCodes = domain.Selection{}
	}
	return &p, nil
}

// Upsert inserts or replaces the editable fields. created_at of an existing
// row is preserved and written back into p.
func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	codes := []string(p.CPVCodes)
	if codes == nil {
		codes = []string{}
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   full_name = EXCLUDED.full_name,
		   company_name = EXCLUDED.company_name,
		   company_description = EXCLUDED.company_description,
		   country = EXCLUDED.country,
		   telephone = EXCLUDED.telephone,
		   cpv_codes = EXCLUDED.cpv_codes,
		   updated_at = EXCLUDED.updated_at
		 RETURNING created_at`,
		p.ID, p.FullName,
		nullableString(p.CompanyName), nullableString(p.CompanyDescription),
		nullableString(p.Country), nullableString(p.Telephone),
		codes, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.CreatedAt)
}

func (r *ProfileRepository) UpdateCPVCodes(ctx context.Context, id string, codes domain.Selection) error {
	raw := []string(codes)
	if raw == nil {
		raw = []string{}
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE profiles SET cpv_codes = $1, updated_at = now() WHERE id = $2`,
		raw, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
