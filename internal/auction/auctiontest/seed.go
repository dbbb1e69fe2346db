package auctiontest

import (
	"sort"

	"draftauction/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddAuction сохраняет аукцион; пустые поля получают значения по умолчанию
func (s *Store) AddAuction(a models.Auction) models.Auction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = models.AuctionDraft
	}
	if a.QueueScope == "" {
		a.QueueScope = models.ScopeDefault
	}
	a.CreatedAt = s.tick()
	s.d.auctions[a.ID] = a
	return a
}

func (s *Store) AddTeam(auctionID uuid.UUID, name string, purse int64, maxPlayers int) models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := models.Team{
		ID:         uuid.New(),
		AuctionID:  auctionID,
		Name:       name,
		PurseTotal: decimal.NewFromInt(purse),
		MaxPlayers: maxPlayers,
		CreatedAt:  s.tick(),
	}
	s.d.teams[t.ID] = t
	return t
}

// AddPlayer сохраняет игрока; порядок вызовов задаёт порядок очереди
func (s *Store) AddPlayer(p models.Player) models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.PlayerAvailable
	}
	p.CreatedAt = s.tick()
	s.d.players[p.ID] = p
	return p
}

func (s *Store) AddIncrementRule(auctionID uuid.UUID, threshold, increment int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.rules = append(s.d.rules, models.IncrementRule{
		ID:        uuid.New(),
		AuctionID: auctionID,
		Threshold: decimal.NewFromInt(threshold),
		Increment: decimal.NewFromInt(increment),
	})
}

func (s *Store) Auction(id uuid.UUID) models.Auction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.auctions[id]
}

func (s *Store) Player(id uuid.UUID) models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.players[id]
}

// Bids возвращает ставки по игроку в порядке создания
func (s *Store) Bids(auctionID, playerID uuid.UUID) []models.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	bids := s.d.playerBids(auctionID, playerID)
	sort.Slice(bids, func(i, j int) bool { return bids[i].CreatedAt.Before(bids[j].CreatedAt) })
	return bids
}

func (s *Store) Assignments(auctionID uuid.UUID) []models.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Assignment
	for _, a := range s.d.assignments {
		if a.AuctionID == auctionID {
			out = append(out, a)
		}
	}
	return out
}

// Events возвращает журнал в порядке записи
func (s *Store) Events(auctionID uuid.UUID) []models.AuctionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuctionEvent
	for _, e := range s.d.events {
		if e.AuctionID == auctionID {
			out = append(out, e)
		}
	}
	return out
}
