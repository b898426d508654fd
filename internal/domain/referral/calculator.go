// Package referral computes the discount window granted to referred orders.
//
// An order moves from "referred, pending" to "referred, computed" exactly once,
// when the host reports it processed. Orders without a referral code never
// get a record.
package referral

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/hook"
)

// Channel is the log channel of the calculator.
const Channel = "referral-pricing"

// Calculator derives and persists referral discount windows.
type Calculator struct {
	records Repository
	meta    OrderMeta
	loc     *time.Location
	now     func() time.Time
	lg      *zap.Logger
	tracer  trace.Tracer

	computed metric.Int64Counter
}

var _ hook.Registrar = (*Calculator)(nil)

// NewCalculator creates a Calculator. Dates are computed in loc.
func NewCalculator(
	records Repository,
	meta OrderMeta,
	loc *time.Location,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Calculator, error) {
	computed, err := mp.Meter("referral").Int64Counter("referral.windows_computed",
		metric.WithDescription("Referral discount windows persisted"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create computed counter")
	}
	return &Calculator{
		records:  records,
		meta:     meta,
		loc:      loc,
		now:      time.Now,
		lg:       lg.Named(Channel),
		tracer:   tp.Tracer("referral"),
		computed: computed,
	}, nil
}

// Register installs the calculator on the order processed event.
func (c *Calculator) Register(b *hook.Bus) {
	b.On(hook.EventOrderProcessed, Channel, func(ctx context.Context, req *hook.Request) error {
		return c.OnOrderProcessed(ctx, req.OrderID)
	})
}

// OnOrderProcessed computes and stores the discount window of a referred
// order. Empty ids, orders already computed and orders without a referral
// code are left untouched. Repeated deliveries for the same order are no-ops.
func (c *Calculator) OnOrderProcessed(ctx context.Context, orderID string) error {
	if orderID == "" {
		return nil
	}

	ctx, span := c.tracer.Start(ctx, "referral.OnOrderProcessed",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	existing, err := c.records.Find(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "find record")
	}
	if existing != nil {
		return nil
	}

	code, err := c.meta.ReferralCode(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "read referral code")
	}
	if code == "" {
		return nil
	}

	start := Today(c.now(), c.loc)
	rec := &Record{
		OrderID:    orderID,
		StartDate:  start,
		EndDate:    EndDate(start),
		MarginDays: MarginDays,
	}

	saved, err := c.records.SaveIfAbsent(ctx, rec)
	if err != nil {
		return errors.Wrap(err, "save record")
	}
	if !saved {
		c.lg.Debug("Referral window already stored by a concurrent delivery",
			zap.String("order_id", orderID),
		)
		return nil
	}

	c.computed.Add(ctx, 1)
	span.SetAttributes(attribute.String("referral.end_date", rec.EndDate.Format(RawLayout)))
	c.lg.Info("Referral discount window computed",
		zap.String("order_id", orderID),
		zap.String("start_date", rec.StartDate.Format(RawLayout)),
		zap.String("end_date", rec.EndDate.Format(RawLayout)),
	)
	return nil
}

// Info returns the stored window of the order, or nil when none exists.
func (c *Calculator) Info(ctx context.Context, orderID string) (*Info, error) {
	rec, err := c.records.Find(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "find record")
	}
	if rec == nil {
		return nil, nil
	}
	return InfoOf(rec), nil
}

// RecordReferralCode stores the referral code captured at checkout, trimmed.
// Empty codes are ignored so a later delivery cannot erase an earlier code.
func (c *Calculator) RecordReferralCode(ctx context.Context, orderID, code string) error {
	code = strings.TrimSpace(code)
	if orderID == "" || code == "" {
		return nil
	}
	if err := c.meta.SetReferralCode(ctx, orderID, code); err != nil {
		return errors.Wrap(err, "set referral code")
	}
	return nil
}
