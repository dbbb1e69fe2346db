package auction

import (
	"context"
	"errors"
	"fmt"

	"draftauction/internal/rules"
	"draftauction/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultEventsLimit = 50
	MaxEventsLimit     = 200
)

// TeamView: команда с остатком кошелька и максимальной ставкой.
// Те же числа видят консоль, сводка и оверлеи.
type TeamView struct {
	models.TeamStanding
	Remaining decimal.Decimal `json:"remaining"`
	SlotsLeft int             `json:"slots_left"`
	MaxBid    decimal.Decimal `json:"max_bid"`
	Eligible  bool            `json:"eligible"`
}

// State: производное состояние аукциона для консоли и оверлеев
type State struct {
	Auction       *models.Auction  `json:"auction"`
	CurrentPlayer *models.Player   `json:"current_player"`
	HighestBid    *models.Bid      `json:"highest_bid"`
	CurrentPrice  *decimal.Decimal `json:"current_price"`
	NextBid       *decimal.Decimal `json:"next_bid"`
	Teams         []TeamView       `json:"teams"`
}

func (s *Service) State(ctx context.Context, auctionID uuid.UUID) (*State, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load auction: %w", err)
	}

	var (
		standings      []models.TeamStanding
		incrementRules []models.IncrementRule
		player         *models.Player
		top            *models.Bid
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		standings, err = s.store.ListTeamStandings(gctx, a.ID)
		return err
	})
	g.Go(func() error {
		var err error
		incrementRules, err = s.store.ListIncrementRules(gctx, a.ID)
		return err
	})
	if a.CurrentPlayerID != nil {
		playerID := *a.CurrentPlayerID
		g.Go(func() error {
			var err error
			player, err = s.store.GetPlayer(gctx, a.ID, playerID)
			return err
		})
		g.Go(func() error {
			var err error
			top, err = s.store.HighestBid(gctx, a.ID, playerID)
			if errors.Is(err, models.ErrNotFound) {
				top = nil
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load auction state: %w", err)
	}

	st := &State{Auction: a, CurrentPlayer: player, HighestBid: top}
	if player != nil {
		var current *decimal.Decimal
		if top != nil {
			current = &top.Amount
		}
		base := player.OpeningPrice(a)
		next := rules.NextRequiredBid(current, base, incrementRules)
		if current == nil {
			current = &base
		}
		st.CurrentPrice = current
		st.NextBid = &next
	}

	st.Teams = make([]TeamView, 0, len(standings))
	for _, ts := range standings {
		standing := rules.StandingOf(ts)
		view := TeamView{
			TeamStanding: ts,
			Remaining:    standing.Remaining(),
			SlotsLeft:    standing.SlotsLeft(),
			MaxBid:       rules.MaxBid(standing, a.BasePrice),
		}
		view.Eligible = a.Status == models.AuctionLive &&
			st.NextBid != nil &&
			player.OnTheBlock() &&
			rules.CanAfford(standing, a.BasePrice, *st.NextBid)
		st.Teams = append(st.Teams, view)
	}
	return st, nil
}

// Events возвращает журнал событий, новые сначала
func (s *Service) Events(ctx context.Context, auctionID uuid.UUID, limit int) ([]models.AuctionEvent, error) {
	if limit <= 0 {
		limit = DefaultEventsLimit
	}
	if limit > MaxEventsLimit {
		limit = MaxEventsLimit
	}
	if _, err := s.store.GetAuction(ctx, auctionID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, fmt.Errorf("load auction: %w", err)
	}
	events, err := s.store.ListEvents(ctx, auctionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
