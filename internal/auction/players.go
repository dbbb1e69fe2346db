package auction

import (
	"context"
	"errors"
	"fmt"

	"draftauction/internal/queue"
	"draftauction/models"
)

// NextPlayer ставит на торги следующего игрока из очереди или явно указанного
func (s *Service) NextPlayer(ctx context.Context, req PlayerRequest) (*Result, error) {
	return s.execute(ctx, ActionNextPlayer, req.AuctionID, req.IdempotencyKey,
		func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error) {
			if a.Status == models.AuctionCompleted {
				return nil, ErrAuctionCompleted
			}

			playerID, err := queue.SelectNext(ctx, tx, a, req.PlayerID)
			switch {
			case errors.Is(err, queue.ErrInvalidScope):
				return nil, ErrSetNotSelected
			case errors.Is(err, queue.ErrEmpty):
				return nil, ErrNoEligiblePlayer
			case err != nil:
				return nil, fmt.Errorf("select next player: %w", err)
			}

			p, err := tx.GetPlayer(ctx, a.ID, playerID)
			if errors.Is(err, models.ErrNotFound) {
				return nil, ErrPlayerNotFound
			}
			if err != nil {
				return nil, fmt.Errorf("load player: %w", err)
			}
			if p.Status == models.PlayerSold {
				return nil, ErrPlayerAlreadySold
			}

			if err := tx.SetCurrentPlayer(ctx, a.ID, &p.ID); err != nil {
				return nil, fmt.Errorf("set current player: %w", err)
			}
			err = record(ctx, tx, a.ID, models.EventCurrentPlayerSet, map[string]any{
				"player_id":   p.ID,
				"player_name": p.Name,
				"scope":       a.QueueScope,
			})
			if err != nil {
				return nil, err
			}
			return &Result{OK: true, PlayerID: &p.ID}, nil
		})
}

// SellPlayer продаёт игрока команде с наибольшей ставкой
func (s *Service) SellPlayer(ctx context.Context, req PlayerRequest) (*Result, error) {
	return s.execute(ctx, ActionSellPlayer, req.AuctionID, req.IdempotencyKey,
		func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error) {
			p, err := resolvePlayer(ctx, tx, a, req.PlayerID)
			if err != nil {
				return nil, err
			}
			// повторная продажа без undo_sold не должна создать вторую запись
			if p.Status == models.PlayerSold {
				return nil, ErrPlayerAlreadySold
			}
			if !p.OnTheBlock() {
				return nil, ErrPlayerNotAvailable
			}

			top, err := tx.HighestBid(ctx, a.ID, p.ID)
			if errors.Is(err, models.ErrNotFound) {
				return nil, ErrNoBidsToSell
			}
			if err != nil {
				return nil, fmt.Errorf("load highest bid: %w", err)
			}
			team, err := tx.GetTeam(ctx, a.ID, top.TeamID)
			if err != nil {
				return nil, fmt.Errorf("load winning team: %w", err)
			}

			sale := &models.Assignment{
				AuctionID: a.ID,
				PlayerID:  p.ID,
				TeamID:    top.TeamID,
				Price:     top.Amount,
			}
			if err := tx.InsertAssignment(ctx, sale); err != nil {
				return nil, fmt.Errorf("insert assignment: %w", err)
			}
			if err := tx.SetPlayerStatus(ctx, p.ID, models.PlayerSold); err != nil {
				return nil, fmt.Errorf("mark player sold: %w", err)
			}
			if err := releaseIfCurrent(ctx, tx, a, p.ID); err != nil {
				return nil, err
			}

			err = record(ctx, tx, a.ID, models.EventPlayerSold, map[string]any{
				"player_id":   p.ID,
				"player_name": p.Name,
				"team_id":     team.ID,
				"team_name":   team.Name,
				"price":       sale.Price,
			})
			if err != nil {
				return nil, err
			}
			return &Result{OK: true, PlayerID: &p.ID, Amount: &sale.Price}, nil
		})
}

// MarkUnsold снимает игрока с торгов без продажи
func (s *Service) MarkUnsold(ctx context.Context, req PlayerRequest) (*Result, error) {
	return s.execute(ctx, ActionMarkUnsold, req.AuctionID, req.IdempotencyKey,
		func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error) {
			p, err := resolvePlayer(ctx, tx, a, req.PlayerID)
			if err != nil {
				return nil, err
			}
			switch p.Status {
			case models.PlayerUnsold:
				if err := releaseIfCurrent(ctx, tx, a, p.ID); err != nil {
					return nil, err
				}
				return &Result{OK: true, PlayerID: &p.ID}, nil
			case models.PlayerSold:
				return nil, ErrPlayerAlreadySold
			case models.PlayerAvailable:
			default:
				return nil, ErrPlayerNotAvailable
			}

			if err := tx.SetPlayerStatus(ctx, p.ID, models.PlayerUnsold); err != nil {
				return nil, fmt.Errorf("mark player unsold: %w", err)
			}
			if err := releaseIfCurrent(ctx, tx, a, p.ID); err != nil {
				return nil, err
			}
			err = record(ctx, tx, a.ID, models.EventPlayerUnsold, map[string]any{
				"player_id":   p.ID,
				"player_name": p.Name,
			})
			if err != nil {
				return nil, err
			}
			return &Result{OK: true, PlayerID: &p.ID}, nil
		})
}

// UndoSold отменяет продажу: удаляет Assignment, игрок снова доступен
func (s *Service) UndoSold(ctx context.Context, req UndoRequest) (*Result, error) {
	return s.execute(ctx, ActionUndoSold, req.AuctionID, req.IdempotencyKey,
		func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error) {
			p, err := resolvePlayer(ctx, tx, a, req.PlayerID)
			if err != nil {
				return nil, err
			}
			sale, err := tx.GetAssignment(ctx, a.ID, p.ID)
			if errors.Is(err, models.ErrNotFound) {
				return nil, ErrNoSaleToUndo
			}
			if err != nil {
				return nil, fmt.Errorf("load assignment: %w", err)
			}

			if err := tx.DeleteAssignment(ctx, sale.ID); err != nil {
				return nil, fmt.Errorf("delete assignment: %w", err)
			}
			if err := tx.SetPlayerStatus(ctx, p.ID, models.PlayerAvailable); err != nil {
				return nil, fmt.Errorf("mark player available: %w", err)
			}
			err = record(ctx, tx, a.ID, models.EventPlayerSoldReverted, map[string]any{
				"player_id":   p.ID,
				"player_name": p.Name,
				"team_id":     sale.TeamID,
				"price":       sale.Price,
			})
			if err != nil {
				return nil, err
			}
			return &Result{OK: true, PlayerID: &p.ID}, nil
		})
}

// UndoUnsold возвращает непроданного игрока в доступные
func (s *Service) UndoUnsold(ctx context.Context, req UndoRequest) (*Result, error) {
	return s.execute(ctx, ActionUndoUnsold, req.AuctionID, req.IdempotencyKey,
		func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error) {
			p, err := resolvePlayer(ctx, tx, a, req.PlayerID)
			if err != nil {
				return nil, err
			}
			if p.Status != models.PlayerUnsold {
				return nil, ErrNotUnsold
			}
			if err := tx.SetPlayerStatus(ctx, p.ID, models.PlayerAvailable); err != nil {
				return nil, fmt.Errorf("mark player available: %w", err)
			}
			err = record(ctx, tx, a.ID, models.EventPlayerUnsoldReverted, map[string]any{
				"player_id":   p.ID,
				"player_name": p.Name,
			})
			if err != nil {
				return nil, err
			}
			return &Result{OK: true, PlayerID: &p.ID}, nil
		})
}
