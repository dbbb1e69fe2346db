package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// GetStateHandler: GET /api/auctions/{auctionID}/state
func (h *Handler) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := auctionIDParam(w, r)
	if !ok {
		return
	}
	st, err := h.Service.State(r.Context(), auctionID)
	if err != nil {
		h.writeError(w, r, "state", auctionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": st})
}

// GetEventsHandler: GET /api/auctions/{auctionID}/events?limit=N, новые сначала
func (h *Handler) GetEventsHandler(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := auctionIDParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "invalid limit", map[string]any{"limit": v})
			return
		}
		limit = n
	}

	events, err := h.Service.Events(r.Context(), auctionID, limit)
	if err != nil {
		h.writeError(w, r, "events", auctionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "events": events})
}

func auctionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "auctionID")
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid auction id", map[string]any{"auction_id": raw})
		return uuid.Nil, false
	}
	return id, true
}
