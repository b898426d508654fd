package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/auth"
)

const (
	selectSiteByHashSQL = `SELECT id, key_hash, name FROM sites
	WHERE key_hash = $1 AND active`

	upsertSiteSQL = `INSERT INTO sites (id, key_hash, name)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE
	SET key_hash = EXCLUDED.key_hash, name = EXCLUDED.name, active = true`
)

var _ auth.Repository = (*SiteRepository)(nil)

// SiteRepository provides API key lookups backed by PostgreSQL.
type SiteRepository struct {
	pool *pgxpool.Pool
}

// NewSiteRepository returns a SiteRepository that uses the given pool.
func NewSiteRepository(pool *pgxpool.Pool) *SiteRepository {
	return &SiteRepository{pool: pool}
}

// FindByHash looks up an active site by the HMAC-SHA256 hash of its key.
// It returns nil when no active site matches.
func (r *SiteRepository) FindByHash(ctx context.Context, hash string) (*auth.Site, error) {
	var s auth.Site
	err := r.pool.QueryRow(ctx, selectSiteByHashSQL, hash).Scan(&s.ID, &s.KeyHash, &s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find site by hash")
	}
	return &s, nil
}

// Upsert registers or re-activates a site.
func (r *SiteRepository) Upsert(ctx context.Context, s auth.Site) error {
	if _, err := r.pool.Exec(ctx, upsertSiteSQL, s.ID, s.KeyHash, s.Name); err != nil {
		return errors.Wrapf(err, "upsert site %q", s.ID)
	}
	return nil
}
