package handlers

import (
	"context"

	"draftauction/internal/auction"
	"draftauction/models"

	"github.com/google/uuid"
)

// AuctionService: то, что обработчикам нужно от машины состояний аукциона
type AuctionService interface {
	OpenAuction(ctx context.Context, req auction.AuctionRequest) (*auction.Result, error)
	CloseAuction(ctx context.Context, req auction.AuctionRequest) (*auction.Result, error)
	PauseAuction(ctx context.Context, req auction.AuctionRequest) (*auction.Result, error)
	ResumeAuction(ctx context.Context, req auction.AuctionRequest) (*auction.Result, error)

	NextPlayer(ctx context.Context, req auction.PlayerRequest) (*auction.Result, error)
	PlaceBid(ctx context.Context, req auction.BidRequest) (*auction.Result, error)
	SellPlayer(ctx context.Context, req auction.PlayerRequest) (*auction.Result, error)
	MarkUnsold(ctx context.Context, req auction.PlayerRequest) (*auction.Result, error)

	UndoBid(ctx context.Context, req auction.PlayerRequest) (*auction.Result, error)
	UndoSold(ctx context.Context, req auction.UndoRequest) (*auction.Result, error)
	UndoUnsold(ctx context.Context, req auction.UndoRequest) (*auction.Result, error)

	State(ctx context.Context, auctionID uuid.UUID) (*auction.State, error)
	Events(ctx context.Context, auctionID uuid.UUID, limit int) ([]models.AuctionEvent, error)
}

var _ AuctionService = (*auction.Service)(nil)
