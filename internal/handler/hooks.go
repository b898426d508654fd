package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/hook"
)

// badBody answers 413 for oversized bodies and 400 otherwise.
func badBody(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
}

func (h *Handler) payload(w http.ResponseWriter, r *http.Request) (*hookPayload, bool) {
	data, err := readBody(w, r)
	if err != nil {
		badBody(w, err)
		return nil, false
	}
	p, err := decodeHookPayload(data)
	if err != nil {
		badBody(w, err)
		return nil, false
	}
	return p, true
}

// dispatchHook runs the handlers of a lifecycle event and returns the
// directives they queued for the host.
func (h *Handler) dispatchHook(w http.ResponseWriter, r *http.Request) {
	event := r.PathValue("event")
	if !h.bus.Known(event) {
		writeError(w, http.StatusNotFound, "unknown event "+event)
		return
	}
	p, ok := h.payload(w, r)
	if !ok {
		return
	}

	if err := h.bus.Dispatch(r.Context(), event, &p.req); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeDirectives(&p.req))
}

// applyFilter passes "value" through a boolean filter chain. A missing value
// stands for the host default, true.
func (h *Handler) applyFilter(w http.ResponseWriter, r *http.Request) {
	p, ok := h.payload(w, r)
	if !ok {
		return
	}
	v := true
	if p.hasValue {
		v = p.value
	}

	out, err := h.bus.ApplyBool(r.Context(), r.PathValue("filter"), &p.req, v)
	switch {
	case errors.Is(err, hook.ErrUnknownEvent):
		writeError(w, http.StatusNotFound, "unknown filter "+r.PathValue("filter"))
	case err != nil:
		fail(w, r, err)
	default:
		writeJSON(w, http.StatusOK, encodeValue(out))
	}
}
