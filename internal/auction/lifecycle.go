package auction

import (
	"context"
	"fmt"

	"draftauction/models"
)

// Переходы аукциона: draft → live ⇄ paused, live|paused → completed.
// Переход в текущий статус ничего не пишет и возвращает ok.

func (s *Service) OpenAuction(ctx context.Context, req AuctionRequest) (*Result, error) {
	return s.execute(ctx, ActionOpenAuction, req.AuctionID, req.IdempotencyKey,
		func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error) {
			switch a.Status {
			case models.AuctionLive:
				return okResult(), nil
			case models.AuctionCompleted:
				return nil, ErrAuctionCompleted
			}
			return transition(ctx, tx, a, models.AuctionLive, models.EventAuctionOpened)
		})
}

func (s *Service) CloseAuction(ctx context.Context, req AuctionRequest) (*Result, error) {
	return s.execute(ctx, ActionCloseAuction, req.AuctionID, req.IdempotencyKey,
		func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error) {
			if a.Status == models.AuctionCompleted {
				return okResult(), nil
			}
			return transition(ctx, tx, a, models.AuctionCompleted, models.EventAuctionClosed)
		})
}

func (s *Service) PauseAuction(ctx context.Context, req AuctionRequest) (*Result, error) {
	return s.execute(ctx, ActionPauseAuction, req.AuctionID, req.IdempotencyKey,
		func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error) {
			switch a.Status {
			case models.AuctionPaused:
				return okResult(), nil
			case models.AuctionLive:
				return transition(ctx, tx, a, models.AuctionPaused, models.EventAuctionPaused)
			}
			return nil, ErrAuctionNotLive
		})
}

func (s *Service) ResumeAuction(ctx context.Context, req AuctionRequest) (*Result, error) {
	return s.execute(ctx, ActionResumeAuction, req.AuctionID, req.IdempotencyKey,
		func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error) {
			switch a.Status {
			case models.AuctionLive:
				return okResult(), nil
			case models.AuctionPaused:
				return transition(ctx, tx, a, models.AuctionLive, models.EventAuctionResumed)
			}
			return nil, ErrAuctionNotPaused
		})
}

func transition(ctx context.Context, tx Tx, a *models.Auction, to, eventType string) (*Result, error) {
	from := a.Status
	if err := tx.UpdateAuctionStatus(ctx, a.ID, to); err != nil {
		return nil, fmt.Errorf("update auction status: %w", err)
	}
	a.Status = to
	err := record(ctx, tx, a.ID, eventType, map[string]any{
		"from": from,
		"to":   to,
	})
	if err != nil {
		return nil, err
	}
	return okResult(), nil
}
