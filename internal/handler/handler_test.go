package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/auth"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/cart"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/coupongate"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/referral"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/settings"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/hook"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/storage/memory"
)

const (
	testKey    = "test-key"
	testPepper = "pepper"
)

type env struct {
	srv    http.Handler
	carts  *memory.Carts
	orders *memory.Orders
}

func newEnv(t *testing.T) *env {
	t.Helper()

	carts := memory.NewCarts()
	store := memory.NewSettings()
	orders := memory.NewOrders()
	require.NoError(t, store.ReplaceProductConfig(context.Background(), settings.DefaultProductOption, settings.ProductConfig{
		6524: {Label: "Abonnement", Discount: decimal.RequireFromString("7.50")},
	}))

	lg := zap.NewNop()
	gate, err := coupongate.NewGate(coupongate.Config{}, carts, store, lg, metricnoop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	calc, err := referral.NewCalculator(orders, orders, time.UTC, lg,
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	bus := hook.NewBus().Install(gate, calc)
	sites := memory.NewSites(auth.Site{ID: "shop", KeyHash: auth.Hash([]byte(testPepper), testKey)})
	h := NewHandler(bus, calc, carts, auth.NewAuthenticator(sites, []byte(testPepper)))

	return &env{srv: h.Routes(), carts: carts, orders: orders}
}

func (e *env) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("api_key", testKey)
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestAuthentication(t *testing.T) {
	e := newEnv(t)

	for _, key := range []string{"", "wrong"} {
		req := httptest.NewRequest(http.MethodPost, "/api/hooks/application_init", nil)
		if key != "" {
			req.Header.Set("api_key", key)
		}
		w := httptest.NewRecorder()
		e.srv.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, map[string]any{"code": float64(401), "message": "unauthorized"}, decode(t, w))
	}
}

func TestCartSyncAndHooks(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPut, "/api/carts/sess-1",
		`{"lines":[{"product_id":6524,"variation_id":0,"quantity":1},{"product_id":12,"quantity":2}]}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	lines, err := e.carts.Lines(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []cart.Line{{ProductID: 6524, Quantity: 1}, {ProductID: 12, Quantity: 2}}, lines)

	t.Run("cart page hides coupons", func(t *testing.T) {
		w := e.do(http.MethodPost, "/api/hooks/cart_page_render", `{"session_id":"sess-1","page":"cart","page_id":7}`)
		require.Equal(t, http.StatusOK, w.Code)

		body := decode(t, w)
		assert.Equal(t, []any{coupongate.CartStyle}, body["styles"])
		assert.Equal(t, []any{}, body["removed_components"])
	})

	t.Run("checkout page hides coupons", func(t *testing.T) {
		w := e.do(http.MethodPost, "/api/hooks/checkout_page_render", `{"session_id":"sess-1","page":"checkout"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{coupongate.CheckoutStyle}, decode(t, w)["styles"])
	})

	t.Run("init removes coupon form", func(t *testing.T) {
		w := e.do(http.MethodPost, "/api/hooks/application_init", `{"session_id":"sess-1"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{hook.ComponentCheckoutCouponForm}, decode(t, w)["removed_components"])
	})

	t.Run("admin is never suppressed", func(t *testing.T) {
		w := e.do(http.MethodPost, "/api/hooks/cart_page_render", `{"session_id":"sess-1","page":"cart","admin":true}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{}, decode(t, w)["styles"])
	})

	t.Run("filter forces false", func(t *testing.T) {
		w := e.do(http.MethodPost, "/api/filters/coupons_enabled", `{"session_id":"sess-1","value":true}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]any{"value": false}, decode(t, w))
	})

	t.Run("cleared cart restores coupons", func(t *testing.T) {
		require.Equal(t, http.StatusNoContent, e.do(http.MethodPut, "/api/carts/sess-1", `{"lines":[]}`).Code)

		w := e.do(http.MethodPost, "/api/filters/coupons_enabled", `{"session_id":"sess-1","value":true}`)
		assert.Equal(t, map[string]any{"value": true}, decode(t, w))
	})
}

func TestCartSync_StringIdentifiers(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPut, "/api/carts/sess-2",
		`{"lines":[{"product_id":"12","variation_id":"6524","quantity":1},{"product_id":"7","variation_id":null,"quantity":1}]}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	lines, err := e.carts.Lines(context.Background(), "sess-2")
	require.NoError(t, err)
	assert.Equal(t, []cart.Line{
		{ProductID: 12, VariationID: 6524, Quantity: 1},
		{ProductID: 7, Quantity: 1},
	}, lines)

	w = e.do(http.MethodPost, "/api/filters/coupons_enabled", `{"session_id":"sess-2","value":true}`)
	assert.Equal(t, map[string]any{"value": false}, decode(t, w))
}

func TestFilter_PassThrough(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "no cart keeps false", body: `{"session_id":"none","value":false}`, want: false},
		{name: "no cart keeps true", body: `{"session_id":"none","value":true}`, want: true},
		{name: "missing value defaults to true", body: ``, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/api/filters/coupons_enabled", tt.body)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, map[string]any{"value": tt.want}, decode(t, w))
		})
	}
}

func TestUnknownRoutes(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/api/hooks/wp_footer", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/api/filters/shipping_enabled", `{}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, e.do(http.MethodGet, "/api/hooks/application_init", ``).Code)
}

func TestBadBodies(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "hook not an object", method: http.MethodPost, path: "/api/hooks/cart_page_render", body: `[1]`},
		{name: "admin not a bool", method: http.MethodPost, path: "/api/hooks/cart_page_render", body: `{"admin":"yes"}`},
		{name: "cart line without product", method: http.MethodPut, path: "/api/carts/s", body: `{"lines":[{"quantity":1}]}`},
		{name: "cart line with non numeric id", method: http.MethodPut, path: "/api/carts/s", body: `{"lines":[{"product_id":"abc"}]}`},
		{name: "referral code not a string", method: http.MethodPost, path: "/api/orders/1/processed", body: `{"referral_code":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, float64(400), decode(t, w)["code"])
		})
	}
}

func TestOrderProcessed(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/api/orders/1001/referral-pricing", ``)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// No referral code: nothing is computed.
	require.Equal(t, http.StatusNoContent, e.do(http.MethodPost, "/api/orders/1000/processed", ``).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/orders/1000/referral-pricing", ``).Code)

	require.Equal(t, http.StatusNoContent, e.do(http.MethodPost, "/api/orders/1001/processed", `{"referral_code":"PARRAIN-42"}`).Code)
	// Redelivery without a code neither erases the code nor moves the window.
	require.Equal(t, http.StatusNoContent, e.do(http.MethodPost, "/api/orders/1001/processed", ``).Code)

	code, err := e.orders.ReferralCode(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, "PARRAIN-42", code)

	w = e.do(http.MethodGet, "/api/orders/1001/referral-pricing", ``)
	require.Equal(t, http.StatusOK, w.Code)

	start := referral.Today(time.Now(), time.UTC)
	end := referral.EndDate(start)
	assert.Equal(t, map[string]any{
		"start_date":             start.Format(referral.RawLayout),
		"end_date":               end.Format(referral.RawLayout),
		"start_date_formatted":   start.Format(referral.DisplayLayout),
		"end_date_formatted":     end.Format(referral.DisplayLayout),
		"margin_days":            float64(2),
		"discount_period_months": float64(12),
	}, decode(t, w))
}

type failingReferrals struct{}

func (failingReferrals) RecordReferralCode(context.Context, string, string) error {
	return errors.New("db down")
}

func (failingReferrals) Info(context.Context, string) (*referral.Info, error) {
	return nil, errors.New("db down")
}

func TestInternalErrors(t *testing.T) {
	sites := memory.NewSites(auth.Site{ID: "shop", KeyHash: auth.Hash([]byte(testPepper), testKey)})
	h := NewHandler(hook.NewBus(), failingReferrals{}, memory.NewCarts(), auth.NewAuthenticator(sites, []byte(testPepper)))
	e := &env{srv: h.Routes()}

	for _, w := range []*httptest.ResponseRecorder{
		e.do(http.MethodPost, "/api/orders/1/processed", `{"referral_code":"X"}`),
		e.do(http.MethodGet, "/api/orders/1/referral-pricing", ``),
	} {
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, map[string]any{"code": float64(500), "message": "internal error"}, decode(t, w))
	}
}

func TestDecodeHookPayload(t *testing.T) {
	p, err := decodeHookPayload([]byte(`{"session_id":"s","admin":null,"page":"checkout","page_id":"42","order_id":99,"extra":{"a":[1,2]}}`))
	require.NoError(t, err)

	assert.Equal(t, "s", p.req.SessionID)
	assert.False(t, p.req.Admin)
	assert.Equal(t, hook.PageCheckout, p.req.Page)
	assert.Equal(t, "42", p.req.PageID)
	assert.Equal(t, "99", p.req.OrderID)
	assert.False(t, p.hasValue)

	p, err = decodeHookPayload(nil)
	require.NoError(t, err)
	assert.Equal(t, hook.PageOther, p.req.Page)
}
