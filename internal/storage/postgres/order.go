package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/referral"
)

const (
	selectMetaSQL = `SELECT meta_key, meta_value FROM order_meta
	WHERE order_id = $1 AND meta_key = ANY($2)`

	selectMetaValueSQL = `SELECT meta_value FROM order_meta
	WHERE order_id = $1 AND meta_key = $2`

	insertMetaIfAbsentSQL = `INSERT INTO order_meta (order_id, meta_key, meta_value)
	VALUES ($1, $2, $3)
	ON CONFLICT (order_id, meta_key) DO NOTHING`

	upsertMetaSQL = `INSERT INTO order_meta (order_id, meta_key, meta_value)
	VALUES ($1, $2, $3)
	ON CONFLICT (order_id, meta_key) DO UPDATE
	SET meta_value = EXCLUDED.meta_value, updated_at = now()`
)

var (
	_ referral.Repository = (*OrderMetaRepository)(nil)
	_ referral.OrderMeta  = (*OrderMetaRepository)(nil)
)

// OrderMetaRepository stores referral data as order metadata rows, using the
// host platform's meta keys.
type OrderMetaRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewOrderMetaRepository returns an OrderMetaRepository that uses the given
// pool. Stored dates are read back as midnight in loc.
func NewOrderMetaRepository(pool *pgxpool.Pool, loc *time.Location) *OrderMetaRepository {
	return &OrderMetaRepository{pool: pool, loc: loc}
}

// Find loads the referral window of the order. It returns nil when the order
// has no end date.
func (r *OrderMetaRepository) Find(ctx context.Context, orderID string) (*referral.Record, error) {
	rows, err := r.pool.Query(ctx, selectMetaSQL, orderID,
		[]string{referral.MetaEndDate, referral.MetaStartDate, referral.MetaMarginDays},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "query meta of order %q", orderID)
	}
	meta := make(map[string]string, 3)
	var key, value string
	if _, err := pgx.ForEachRow(rows, []any{&key, &value}, func() error {
		meta[key] = value
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "scan meta of order %q", orderID)
	}

	return recordFromMeta(orderID, meta, r.loc)
}

// SaveIfAbsent writes the window in one transaction. The end date row is
// inserted first with ON CONFLICT DO NOTHING; when it already exists nothing
// else is written.
func (r *OrderMetaRepository) SaveIfAbsent(ctx context.Context, rec *referral.Record) (bool, error) {
	var saved bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertMetaIfAbsentSQL,
			rec.OrderID, referral.MetaEndDate, rec.EndDate.Format(referral.RawLayout))
		if err != nil {
			return errors.Wrap(err, "insert end date")
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		batch.Queue(upsertMetaSQL, rec.OrderID, referral.MetaStartDate, rec.StartDate.Format(referral.RawLayout))
		batch.Queue(upsertMetaSQL, rec.OrderID, referral.MetaMarginDays, strconv.Itoa(rec.MarginDays))
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "write window meta")
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "save window of order %q", rec.OrderID)
	}
	return saved, nil
}

// ReferralCode returns the referral code stored for the order, empty when
// absent.
func (r *OrderMetaRepository) ReferralCode(ctx context.Context, orderID string) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx, selectMetaValueSQL, orderID, referral.MetaReferralCode).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", errors.Wrapf(err, "query referral code of order %q", orderID)
	}
	return code, nil
}

// SetReferralCode stores the referral code of the order.
func (r *OrderMetaRepository) SetReferralCode(ctx context.Context, orderID, code string) error {
	if _, err := r.pool.Exec(ctx, upsertMetaSQL, orderID, referral.MetaReferralCode, code); err != nil {
		return errors.Wrapf(err, "set referral code of order %q", orderID)
	}
	return nil
}

// recordFromMeta rebuilds a Record from raw meta values. Margin days that do
// not parse as an integer read as zero.
func recordFromMeta(orderID string, meta map[string]string, loc *time.Location) (*referral.Record, error) {
	rawEnd, ok := meta[referral.MetaEndDate]
	if !ok || rawEnd == "" {
		return nil, nil
	}
	end, err := time.ParseInLocation(referral.RawLayout, rawEnd, loc)
	if err != nil {
		return nil, errors.Wrapf(err, "parse end date of order %q", orderID)
	}

	rec := &referral.Record{OrderID: orderID, EndDate: end}
	if rawStart := meta[referral.MetaStartDate]; rawStart != "" {
		if rec.StartDate, err = time.ParseInLocation(referral.RawLayout, rawStart, loc); err != nil {
			return nil, errors.Wrapf(err, "parse start date of order %q", orderID)
		}
	}
	rec.MarginDays, _ = strconv.Atoi(meta[referral.MetaMarginDays])
	return rec, nil
}
