package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/cart"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/settings"
)

const (
	selectProductSettingsSQL = `SELECT product_id, label, discount FROM product_settings
	WHERE option_name = $1`

	deleteProductSettingsSQL = `DELETE FROM product_settings WHERE option_name = $1`
)

var _ settings.Store = (*SettingsRepository)(nil)

// SettingsRepository implements settings.Store backed by PostgreSQL. Each
// option is the set of product_settings rows sharing its name.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// ProductConfig loads the products configured under option. An option with
// no rows yields an empty mapping.
func (r *SettingsRepository) ProductConfig(ctx context.Context, option string) (settings.ProductConfig, error) {
	rows, err := r.pool.Query(ctx, selectProductSettingsSQL, option)
	if err != nil {
		return nil, errors.Wrapf(err, "query option %q", option)
	}

	cfg := settings.ProductConfig{}
	var (
		id       int64
		label    string
		discount decimal.Decimal
	)
	if _, err := pgx.ForEachRow(rows, []any{&id, &label, &discount}, func() error {
		cfg[cart.ProductID(id)] = settings.Record{Label: label, Discount: discount}
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "scan option %q", option)
	}
	return cfg, nil
}

// ReplaceProductConfig atomically replaces every row of option with cfg.
func (r *SettingsRepository) ReplaceProductConfig(ctx context.Context, option string, cfg settings.ProductConfig) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteProductSettingsSQL, option); err != nil {
			return errors.Wrap(err, "clear option")
		}

		rows := make([][]any, 0, len(cfg))
		for id, rec := range cfg {
			rows = append(rows, []any{option, int64(id), rec.Label, rec.Discount})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"product_settings"},
			[]string{"option_name", "product_id", "label", "discount"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return errors.Wrap(err, "copy option rows")
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "replace option %q", option)
	}
	return nil
}
