package handlers

import (
	"context"
	"net/http"

	"draftauction/internal/auction"

	"github.com/google/uuid"
)

type actionRequest interface {
	TargetAuction() uuid.UUID
}

// actionHandler: POST /api/actions/{action}. Тело декодируется в T,
// проверяется и передаётся в run.
func actionHandler[T actionRequest](h *Handler, action string, run func(context.Context, T) (*auction.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if !h.decode(w, r, &req) {
			return
		}
		res, err := run(r.Context(), req)
		if err != nil {
			h.writeError(w, r, action, req.TargetAuction(), err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) OpenAuctionHandler() http.HandlerFunc {
	return actionHandler(h, auction.ActionOpenAuction, h.Service.OpenAuction)
}

func (h *Handler) CloseAuctionHandler() http.HandlerFunc {
	return actionHandler(h, auction.ActionCloseAuction, h.Service.CloseAuction)
}

func (h *Handler) PauseAuctionHandler() http.HandlerFunc {
	return actionHandler(h, auction.ActionPauseAuction, h.Service.PauseAuction)
}

func (h *Handler) ResumeAuctionHandler() http.HandlerFunc {
	return actionHandler(h, auction.ActionResumeAuction, h.Service.ResumeAuction)
}

func (h *Handler) NextPlayerHandler() http.HandlerFunc {
	return actionHandler(h, auction.ActionNextPlayer, h.Service.NextPlayer)
}

func (h *Handler) PlaceBidHandler() http.HandlerFunc {
	return actionHandler(h, auction.ActionPlaceBid, h.Service.PlaceBid)
}

func (h *Handler) SellPlayerHandler() http.HandlerFunc {
	return actionHandler(h, auction.ActionSellPlayer, h.Service.SellPlayer)
}

func (h *Handler) MarkUnsoldHandler() http.HandlerFunc {
	return actionHandler(h, auction.ActionMarkUnsold, h.Service.MarkUnsold)
}

func (h *Handler) UndoBidHandler() http.HandlerFunc {
	return actionHandler(h, auction.ActionUndoBid, h.Service.UndoBid)
}

func (h *Handler) UndoSoldHandler() http.HandlerFunc {
	return actionHandler(h, auction.ActionUndoSold, h.Service.UndoSold)
}

func (h *Handler) UndoUnsoldHandler() http.HandlerFunc {
	return actionHandler(h, auction.ActionUndoUnsold, h.Service.UndoUnsold)
}
