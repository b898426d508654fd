// Package coupongate hides and disables coupons for carts holding products
// covered by the referral programme.
//
// The decision is recomputed at every integration point: the cart can change
// between two hooks of the same request (AJAX cart updates), and the host gives
// no ordering guarantee between its hooks and cart mutations.
package coupongate

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/cart"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/settings"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/hook"
)

// Channel is the log channel of the gate.
const Channel = "coupon-gate"

// Style blocks emitted when coupons are suppressed.
const (
	CartStyle = `.woocommerce-form-coupon-toggle,
.woocommerce-form-coupon,
form.checkout_coupon,
.cart .coupon,
.showcoupon {
	display: none !important;
}`

	CheckoutStyle = `.woocommerce-checkout .woocommerce-form-coupon-toggle,
.woocommerce-checkout .checkout_coupon {
	display: none !important;
}`
)

// Config holds non-dependency configuration for the Gate.
type Config struct {
	// Option names the product option whose keys trigger suppression.
	// Defaults to settings.DefaultProductOption.
	Option string
}

// Gate decides per request whether coupon features must be suppressed.
type Gate struct {
	carts    cart.Store
	settings settings.Store
	option   string
	lg       *zap.Logger

	suppressed metric.Int64Counter
}

var _ hook.Registrar = (*Gate)(nil)

// NewGate creates a Gate reading carts and product options from the given
// stores.
func NewGate(
	cfg Config,
	carts cart.Store,
	store settings.Store,
	lg *zap.Logger,
	meter metric.Meter,
) (*Gate, error) {
	if cfg.Option == "" {
		cfg.Option = settings.DefaultProductOption
	}
	suppressed, err := meter.Int64Counter("coupon_gate.suppressed",
		metric.WithDescription("Integration points where coupons were suppressed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create suppressed counter")
	}
	return &Gate{
		carts:      carts,
		settings:   store,
		option:     cfg.Option,
		lg:         lg.Named(Channel),
		suppressed: suppressed,
	}, nil
}

// Register installs the gate's handlers on the bus.
func (g *Gate) Register(b *hook.Bus) {
	b.On(hook.EventCartPageRender, Channel, g.OnCartPageRender)
	b.On(hook.EventCheckoutPageRender, Channel, g.OnCheckoutPageRender)
	b.On(hook.EventApplicationInit, Channel, g.OnInit)
	b.Filter(hook.FilterCouponsEnabled, Channel, g.FilterCouponsEnabled)
}

// CartProductIDs returns the distinct product and variation ids of the
// request's cart. Admin requests, sessions without a cart and empty carts
// yield an empty snapshot.
func (g *Gate) CartProductIDs(ctx context.Context, req *hook.Request) (cart.Snapshot, error) {
	if req.Admin {
		return cart.Snapshot{}, nil
	}
	lines, err := g.carts.Lines(ctx, req.SessionID)
	switch {
	case errors.Is(err, cart.ErrNoCart):
		return cart.Snapshot{}, nil
	case err != nil:
		return nil, errors.Wrap(err, "read cart")
	}
	return cart.SnapshotOf(lines), nil
}

// RequiresSuppression reports whether any product of the cart is a key of the
// configured product option.
func (g *Gate) RequiresSuppression(ctx context.Context, req *hook.Request) (bool, error) {
	_, ok, err := g.evaluate(ctx, req)
	return ok, err
}

func (g *Gate) evaluate(ctx context.Context, req *hook.Request) (cart.Snapshot, bool, error) {
	ids, err := g.CartProductIDs(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if len(ids) == 0 {
		return ids, false, nil
	}

	cfg, err := g.settings.ProductConfig(ctx, g.option)
	if err != nil {
		return nil, false, errors.Wrapf(err, "read option %q", g.option)
	}
	for _, id := range ids {
		if cfg.Has(id) {
			return ids, true, nil
		}
	}
	return ids, false, nil
}

// OnCartPageRender hides the coupon forms and toggles on the cart and
// checkout views.
func (g *Gate) OnCartPageRender(ctx context.Context, req *hook.Request) error {
	if !req.IsCartOrCheckout() {
		return nil
	}
	ids, ok, err := g.evaluate(ctx, req)
	if err != nil || !ok {
		return err
	}

	req.EmitStyle(CartStyle)
	g.count(ctx, hook.EventCartPageRender)
	g.lg.Info("Coupons hidden for referral products",
		zap.String("page", string(req.Page)),
		zap.String("page_id", req.PageID),
		zap.Int64s("products", ids.Int64s()),
	)
	return nil
}

// OnCheckoutPageRender hides the checkout-specific coupon elements.
func (g *Gate) OnCheckoutPageRender(ctx context.Context, req *hook.Request) error {
	if req.Page != hook.PageCheckout {
		return nil
	}
	ok, err := g.RequiresSuppression(ctx, req)
	if err != nil || !ok {
		return err
	}

	req.EmitStyle(CheckoutStyle)
	g.count(ctx, hook.EventCheckoutPageRender)
	return nil
}

// OnInit removes the host's "enter a coupon code" toggle so it is never
// rendered, whatever the stylesheet does.
func (g *Gate) OnInit(ctx context.Context, req *hook.Request) error {
	ok, err := g.RequiresSuppression(ctx, req)
	if err != nil || !ok {
		return err
	}

	req.RemoveComponent(hook.ComponentCheckoutCouponForm)
	g.count(ctx, hook.EventApplicationInit)
	return nil
}

// FilterCouponsEnabled forces coupons off for suppressed carts and passes the
// value through otherwise.
func (g *Gate) FilterCouponsEnabled(ctx context.Context, req *hook.Request, enabled bool) (bool, error) {
	ids, ok, err := g.evaluate(ctx, req)
	if err != nil {
		return enabled, err
	}
	if !ok {
		return enabled, nil
	}

	g.count(ctx, hook.FilterCouponsEnabled)
	g.lg.Info("Coupons disabled for referral products",
		zap.Bool("requested", enabled),
		zap.Int64s("products", ids.Int64s()),
	)
	return false, nil
}

func (g *Gate) count(ctx context.Context, point string) {
	g.suppressed.Add(ctx, 1, metric.WithAttributes(attribute.String("point", point)))
}
