// Package handler exposes the hook bus and the referral calculator to the
// host platform over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/auth"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/cart"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/referral"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/hook"
)

// maxBodyBytes caps request bodies; the host only sends small documents.
const maxBodyBytes = 1 << 20

// Referrals is the part of the referral calculator the HTTP layer uses.
type Referrals interface {
	RecordReferralCode(ctx context.Context, orderID, code string) error
	Info(ctx context.Context, orderID string) (*referral.Info, error)
}

var _ Referrals = (*referral.Calculator)(nil)

// Handler serves the /api routes.
type Handler struct {
	bus       *hook.Bus
	referrals Referrals
	carts     cart.Syncer
	auth      *auth.Authenticator
}

// NewHandler creates a Handler. Requests are authenticated with a.
func NewHandler(bus *hook.Bus, referrals Referrals, carts cart.Syncer, a *auth.Authenticator) *Handler {
	return &Handler{
		bus:       bus,
		referrals: referrals,
		carts:     carts,
		auth:      a,
	}
}

// Routes returns the authenticated API mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/hooks/{event}", h.dispatchHook)
	mux.HandleFunc("POST /api/filters/{filter}", h.applyFilter)
	mux.HandleFunc("POST /api/orders/{id}/processed", h.orderProcessed)
	mux.HandleFunc("GET /api/orders/{id}/referral-pricing", h.referralPricing)
	mux.HandleFunc("PUT /api/carts/{session_id}", h.replaceCart)
	return h.authenticate(mux)
}

// authenticate rejects requests without a valid api_key header and tags the
// request logger with the calling site.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site, err := h.auth.Authenticate(r.Context(), r.Header.Get("api_key"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := r.Context()
		ctx = zctx.Base(ctx, zctx.From(ctx).With(zap.String("site_id", site.ID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// fail logs err with the request logger and answers 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}
