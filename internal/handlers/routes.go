package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// CORS: одинаковые заголовки на каждом ответе, preflight OPTIONS → 204
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", "*")
		hdr.Set("Access-Control-Allow-Methods", "POST,OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		hdr.Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// NewRouter собирает маршруты Action API
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		// действия
		r.Post("/actions/open_auction", h.OpenAuctionHandler())
		r.Post("/actions/close_auction", h.CloseAuctionHandler())
		r.Post("/actions/pause_auction", h.PauseAuctionHandler())
		r.Post("/actions/resume_auction", h.ResumeAuctionHandler())
		r.Post("/actions/next_player", h.NextPlayerHandler())
		r.Post("/actions/place_bid", h.PlaceBidHandler())
		r.Post("/actions/sell_player", h.SellPlayerHandler())
		r.Post("/actions/mark_unsold", h.MarkUnsoldHandler())
		r.Post("/actions/undo_bid", h.UndoBidHandler())
		r.Post("/actions/undo_sold", h.UndoSoldHandler())
		r.Post("/actions/undo_unsold", h.UndoUnsoldHandler())

		// чтение
		r.Get("/auctions/{auctionID}/state", h.GetStateHandler)
		r.Get("/auctions/{auctionID}/events", h.GetEventsHandler)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	return r
}
