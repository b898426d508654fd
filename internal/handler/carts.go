package handler

import "net/http"

// replaceCart mirrors the host session cart. An empty line list clears it.
func (h *Handler) replaceCart(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		badBody(w, err)
		return
	}
	lines, err := decodeCart(data)
	if err != nil {
		badBody(w, err)
		return
	}
	if err := h.carts.Replace(r.Context(), r.PathValue("session_id"), lines); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
