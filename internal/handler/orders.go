package handler

import (
	"net/http"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/hook"
)

// orderProcessed stores the optional checkout referral code, then delivers
// order_processed for the order.
func (h *Handler) orderProcessed(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	data, err := readBody(w, r)
	if err != nil {
		badBody(w, err)
		return
	}
	code, err := decodeReferralCode(data)
	if err != nil {
		badBody(w, err)
		return
	}

	ctx := r.Context()
	if err := h.referrals.RecordReferralCode(ctx, orderID, code); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.bus.Dispatch(ctx, hook.EventOrderProcessed, &hook.Request{OrderID: orderID}); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) referralPricing(w http.ResponseWriter, r *http.Request) {
	info, err := h.referrals.Info(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, "no referral pricing for order")
		return
	}
	writeJSON(w, http.StatusOK, encodeInfo(info))
}
