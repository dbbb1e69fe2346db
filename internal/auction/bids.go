package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"draftauction/internal/rules"
	"draftauction/models"

	"github.com/shopspring/decimal"
)

// PlaceBid принимает ставку. Сервер считает обязательную сумму сам:
// первая ставка равна базовой цене, каждая следующая = текущая + шаг.
// Сумма клиента должна совпасть с ней, иначе 400.
func (s *Service) PlaceBid(ctx context.Context, req BidRequest) (*Result, error) {
	return s.execute(ctx, ActionPlaceBid, req.AuctionID, req.IdempotencyKey,
		func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error) {
			if a.Status != models.AuctionLive {
				return nil, ErrAuctionNotLive
			}

			team, err := tx.GetTeam(ctx, a.ID, req.TeamID)
			if errors.Is(err, models.ErrNotFound) {
				return nil, ErrTeamNotInAuction
			}
			if err != nil {
				return nil, fmt.Errorf("load team: %w", err)
			}

			p, err := resolvePlayer(ctx, tx, a, req.PlayerID)
			if err != nil {
				return nil, err
			}
			if p.Status == models.PlayerSold {
				return nil, ErrPlayerAlreadySold
			}
			if !p.OnTheBlock() {
				return nil, ErrPlayerNotAvailable
			}

			amount := *req.Amount
			dup, err := tx.HasRecentBid(ctx, &models.Bid{
				AuctionID: a.ID,
				TeamID:    team.ID,
				PlayerID:  p.ID,
				Amount:    amount,
			}, s.dedupeWindow)
			if err != nil {
				return nil, fmt.Errorf("check duplicate bid: %w", err)
			}
			if dup {
				s.log.Debug("duplicate bid absorbed",
					slog.String("auction_id", a.ID.String()),
					slog.String("team_id", team.ID.String()),
					slog.String("amount", amount.String()))
				return &Result{OK: true, Deduped: true}, nil
			}

			incrementRules, err := tx.ListIncrementRules(ctx, a.ID)
			if err != nil {
				return nil, fmt.Errorf("load increment rules: %w", err)
			}
			var current *decimal.Decimal
			top, err := tx.HighestBid(ctx, a.ID, p.ID)
			switch {
			case err == nil:
				current = &top.Amount
			case !errors.Is(err, models.ErrNotFound):
				return nil, fmt.Errorf("load highest bid: %w", err)
			}

			base := p.OpeningPrice(a)
			required := rules.NextRequiredBid(current, base, incrementRules)
			if !amount.Equal(required) {
				if current == nil {
					return nil, invalid(msgInvalidAmount, map[string]any{"expected": base})
				}
				return nil, invalid(msgInvalidAmount, map[string]any{
					"current":      *current,
					"step":         rules.Step(*current, incrementRules),
					"requiredNext": required,
				})
			}

			ts, err := tx.TeamStanding(ctx, a.ID, team.ID)
			if err != nil {
				return nil, fmt.Errorf("load team standing: %w", err)
			}
			standing := rules.StandingOf(*ts)
			if standing.SlotsLeft() == 0 {
				return nil, ErrRosterFull
			}
			if !rules.CanAfford(standing, a.BasePrice, required) {
				return nil, invalid(msgInsufficientPurse, map[string]any{
					"max_bid":    rules.MaxBid(standing, a.BasePrice),
					"remaining":  standing.Remaining(),
					"slots_left": standing.SlotsLeft(),
				})
			}

			bid := &models.Bid{
				AuctionID: a.ID,
				TeamID:    team.ID,
				PlayerID:  p.ID,
				Amount:    required,
				ByUser:    req.ByUser,
			}
			if err := tx.InsertBid(ctx, bid); err != nil {
				return nil, fmt.Errorf("insert bid: %w", err)
			}
			err = record(ctx, tx, a.ID, models.EventBidPlaced, map[string]any{
				"bid_id":      bid.ID,
				"team_id":     team.ID,
				"team_name":   team.Name,
				"player_id":   p.ID,
				"player_name": p.Name,
				"amount":      bid.Amount,
				"by_user":     bid.ByUser,
			})
			if err != nil {
				return nil, err
			}
			return &Result{OK: true, PlayerID: &p.ID, Amount: &bid.Amount}, nil
		})
}

// UndoBid удаляет последнюю ставку по игроку
func (s *Service) UndoBid(ctx context.Context, req PlayerRequest) (*Result, error) {
	return s.execute(ctx, ActionUndoBid, req.AuctionID, req.IdempotencyKey,
		func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error) {
			p, err := resolvePlayer(ctx, tx, a, req.PlayerID)
			if err != nil {
				return nil, err
			}
			if p.Status == models.PlayerSold {
				return nil, ErrPlayerAlreadySold
			}

			last, err := tx.DeleteLatestBid(ctx, a.ID, p.ID)
			if errors.Is(err, models.ErrNotFound) {
				return nil, ErrNoBidsToUndo
			}
			if err != nil {
				return nil, fmt.Errorf("delete latest bid: %w", err)
			}
			err = record(ctx, tx, a.ID, models.EventBidReverted, map[string]any{
				"bid_id":      last.ID,
				"team_id":     last.TeamID,
				"player_id":   p.ID,
				"player_name": p.Name,
				"amount":      last.Amount,
			})
			if err != nil {
				return nil, err
			}
			return &Result{OK: true, PlayerID: &p.ID}, nil
		})
}
