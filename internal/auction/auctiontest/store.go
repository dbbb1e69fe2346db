// Package auctiontest содержит хранилище в памяти для тестов сервиса и хэндлеров.
// Транзакции выполняются по одной и откатываются целиком при ошибке.
package auctiontest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"draftauction/internal/auction"
	"draftauction/internal/queue"
	"draftauction/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var _ auction.Store = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	clock time.Time
	d     *data

	// FailOn: имя метода Tx, который вернёт FailErr (для проверки отката)
	FailOn  string
	FailErr error
}

type data struct {
	auctions    map[uuid.UUID]models.Auction
	teams       map[uuid.UUID]models.Team
	players     map[uuid.UUID]models.Player
	rules       []models.IncrementRule
	bids        []models.Bid
	assignments map[uuid.UUID]models.Assignment
	events      []models.AuctionEvent
	idempotency map[string][]byte
}

func NewStore() *Store {
	return &Store{
		clock: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		d: &data{
			auctions:    map[uuid.UUID]models.Auction{},
			teams:       map[uuid.UUID]models.Team{},
			players:     map[uuid.UUID]models.Player{},
			assignments: map[uuid.UUID]models.Assignment{},
			idempotency: map[string][]byte{},
		},
	}
}

func (d *data) clone() *data {
	c := &data{
		auctions:    make(map[uuid.UUID]models.Auction, len(d.auctions)),
		teams:       make(map[uuid.UUID]models.Team, len(d.teams)),
		players:     make(map[uuid.UUID]models.Player, len(d.players)),
		rules:       append([]models.IncrementRule(nil), d.rules...),
		bids:        append([]models.Bid(nil), d.bids...),
		assignments: make(map[uuid.UUID]models.Assignment, len(d.assignments)),
		events:      append([]models.AuctionEvent(nil), d.events...),
		idempotency: make(map[string][]byte, len(d.idempotency)),
	}
	for k, v := range d.auctions {
		c.auctions[k] = v
	}
	for k, v := range d.teams {
		c.teams[k] = v
	}
	for k, v := range d.players {
		c.players[k] = v
	}
	for k, v := range d.assignments {
		c.assignments[k] = v
	}
	for k, v := range d.idempotency {
		c.idempotency[k] = v
	}
	return c
}

// tick сдвигает часы на миллисекунду, чтобы created_at строго возрастал
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

// Advance сдвигает часы хранилища
func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(d)
}

func (s *Store) InTx(ctx context.Context, fn func(tx auction.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{store: s, d: s.d.clone()}
	if err := fn(t); err != nil {
		return err
	}
	s.d = t.d
	return nil
}

// Reader вне транзакции

func (s *Store) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getAuction(auctionID)
}

func (s *Store) GetPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getPlayer(auctionID, playerID)
}

func (s *Store) GetTeam(ctx context.Context, auctionID, teamID uuid.UUID) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getTeam(auctionID, teamID)
}

func (s *Store) ListIncrementRules(ctx context.Context, auctionID uuid.UUID) ([]models.IncrementRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listRules(auctionID), nil
}

func (s *Store) HighestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.highestBid(auctionID, playerID)
}

func (s *Store) TeamStanding(ctx context.Context, auctionID, teamID uuid.UUID) (*models.TeamStanding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.teamStanding(auctionID, teamID)
}

func (s *Store) ListTeamStandings(ctx context.Context, auctionID uuid.UUID) ([]models.TeamStanding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listStandings(auctionID), nil
}

func (s *Store) ListEvents(ctx context.Context, auctionID uuid.UUID, limit int) ([]models.AuctionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.listEvents(auctionID, limit), nil
}

// общие запросы

func (d *data) getAuction(id uuid.UUID) (*models.Auction, error) {
	a, ok := d.auctions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

func (d *data) getPlayer(auctionID, playerID uuid.UUID) (*models.Player, error) {
	p, ok := d.players[playerID]
	if !ok || p.AuctionID != auctionID {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (d *data) getTeam(auctionID, teamID uuid.UUID) (*models.Team, error) {
	t, ok := d.teams[teamID]
	if !ok || t.AuctionID != auctionID {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func (d *data) listRules(auctionID uuid.UUID) []models.IncrementRule {
	var out []models.IncrementRule
	for _, r := range d.rules {
		if r.AuctionID == auctionID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Threshold.LessThan(out[j].Threshold) })
	return out
}

func (d *data) playerBids(auctionID, playerID uuid.UUID) []models.Bid {
	var out []models.Bid
	for _, b := range d.bids {
		if b.AuctionID == auctionID && b.PlayerID == playerID {
			out = append(out, b)
		}
	}
	return out
}

func (d *data) highestBid(auctionID, playerID uuid.UUID) (*models.Bid, error) {
	var top *models.Bid
	for _, b := range d.playerBids(auctionID, playerID) {
		if top == nil || b.Amount.GreaterThan(top.Amount) ||
			(b.Amount.Equal(top.Amount) && b.CreatedAt.After(top.CreatedAt)) {
			top = &b
		}
	}
	if top == nil {
		return nil, models.ErrNotFound
	}
	return top, nil
}

func (d *data) standingOf(t models.Team) models.TeamStanding {
	ts := models.TeamStanding{Team: t, Spent: decimal.Zero}
	for _, a := range d.assignments {
		if a.TeamID == t.ID {
			ts.Spent = ts.Spent.Add(a.Price)
			ts.Bought++
		}
	}
	return ts
}

func (d *data) teamStanding(auctionID, teamID uuid.UUID) (*models.TeamStanding, error) {
	t, err := d.getTeam(auctionID, teamID)
	if err != nil {
		return nil, err
	}
	ts := d.standingOf(*t)
	return &ts, nil
}

func (d *data) listStandings(auctionID uuid.UUID) []models.TeamStanding {
	var out []models.TeamStanding
	for _, t := range d.teams {
		if t.AuctionID == auctionID {
			out = append(out, d.standingOf(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *data) listEvents(auctionID uuid.UUID, limit int) []models.AuctionEvent {
	var out []models.AuctionEvent
	for i := len(d.events) - 1; i >= 0 && len(out) < limit; i-- {
		if d.events[i].AuctionID == auctionID {
			out = append(out, d.events[i])
		}
	}
	return out
}

func idempotencyKey(auctionID uuid.UUID, action, key string) string {
	return auctionID.String() + "|" + action + "|" + key
}

// tx: рабочая копия данных, применяется при успешном завершении

type tx struct {
	store *Store
	d     *data
}

func (t *tx) fail(method string) error {
	if t.store.FailOn == method {
		if t.store.FailErr != nil {
			return t.store.FailErr
		}
		return errors.New("injected failure in " + method)
	}
	return nil
}

func (t *tx) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	return t.d.getAuction(auctionID)
}

func (t *tx) GetPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Player, error) {
	return t.d.getPlayer(auctionID, playerID)
}

func (t *tx) GetTeam(ctx context.Context, auctionID, teamID uuid.UUID) (*models.Team, error) {
	return t.d.getTeam(auctionID, teamID)
}

func (t *tx) ListIncrementRules(ctx context.Context, auctionID uuid.UUID) ([]models.IncrementRule, error) {
	return t.d.listRules(auctionID), nil
}

func (t *tx) HighestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	return t.d.highestBid(auctionID, playerID)
}

func (t *tx) TeamStanding(ctx context.Context, auctionID, teamID uuid.UUID) (*models.TeamStanding, error) {
	return t.d.teamStanding(auctionID, teamID)
}

func (t *tx) ListTeamStandings(ctx context.Context, auctionID uuid.UUID) ([]models.TeamStanding, error) {
	return t.d.listStandings(auctionID), nil
}

func (t *tx) ListEvents(ctx context.Context, auctionID uuid.UUID, limit int) ([]models.AuctionEvent, error) {
	return t.d.listEvents(auctionID, limit), nil
}

func (t *tx) NextQueuedPlayer(ctx context.Context, auctionID uuid.UUID, f queue.Filter) (*models.Player, error) {
	var candidates []models.Player
	for _, p := range t.d.players {
		if p.AuctionID == auctionID && f.Matches(&p) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, models.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID.String() < candidates[j].ID.String()
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return &candidates[0], nil
}

func (t *tx) LockAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	if err := t.fail("LockAuction"); err != nil {
		return nil, err
	}
	return t.d.getAuction(auctionID)
}

func (t *tx) UpdateAuctionStatus(ctx context.Context, auctionID uuid.UUID, status string) error {
	if err := t.fail("UpdateAuctionStatus"); err != nil {
		return err
	}
	a, ok := t.d.auctions[auctionID]
	if !ok {
		return models.ErrNotFound
	}
	a.Status = status
	t.d.auctions[auctionID] = a
	return nil
}

func (t *tx) SetCurrentPlayer(ctx context.Context, auctionID uuid.UUID, playerID *uuid.UUID) error {
	if err := t.fail("SetCurrentPlayer"); err != nil {
		return err
	}
	a, ok := t.d.auctions[auctionID]
	if !ok {
		return models.ErrNotFound
	}
	if playerID != nil {
		id := *playerID
		a.CurrentPlayerID = &id
	} else {
		a.CurrentPlayerID = nil
	}
	t.d.auctions[auctionID] = a
	return nil
}

func (t *tx) SetPlayerStatus(ctx context.Context, playerID uuid.UUID, status string) error {
	if err := t.fail("SetPlayerStatus"); err != nil {
		return err
	}
	p, ok := t.d.players[playerID]
	if !ok {
		return models.ErrNotFound
	}
	p.Status = status
	t.d.players[playerID] = p
	return nil
}

func (t *tx) HasRecentBid(ctx context.Context, bid *models.Bid, window time.Duration) (bool, error) {
	since := t.store.clock.Add(-window)
	for _, b := range t.d.bids {
		if b.AuctionID == bid.AuctionID && b.TeamID == bid.TeamID && b.PlayerID == bid.PlayerID &&
			b.Amount.Equal(bid.Amount) && b.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) InsertBid(ctx context.Context, bid *models.Bid) error {
	if err := t.fail("InsertBid"); err != nil {
		return err
	}
	bid.ID = uuid.New()
	bid.CreatedAt = t.store.tick()
	t.d.bids = append(t.d.bids, *bid)
	return nil
}

func (t *tx) DeleteLatestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	if err := t.fail("DeleteLatestBid"); err != nil {
		return nil, err
	}
	latest := -1
	for i, b := range t.d.bids {
		if b.AuctionID != auctionID || b.PlayerID != playerID {
			continue
		}
		if latest < 0 || !b.CreatedAt.Before(t.d.bids[latest].CreatedAt) {
			latest = i
		}
	}
	if latest < 0 {
		return nil, models.ErrNotFound
	}
	removed := t.d.bids[latest]
	t.d.bids = append(t.d.bids[:latest:latest], t.d.bids[latest+1:]...)
	return &removed, nil
}

func (t *tx) InsertAssignment(ctx context.Context, a *models.Assignment) error {
	if err := t.fail("InsertAssignment"); err != nil {
		return err
	}
	for _, existing := range t.d.assignments {
		if existing.PlayerID == a.PlayerID {
			// так же ведёт себя db.Tx на UNIQUE(player_id)
			return auction.ErrPlayerAlreadySold
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = t.store.tick()
	t.d.assignments[a.ID] = *a
	return nil
}

func (t *tx) GetAssignment(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Assignment, error) {
	for _, a := range t.d.assignments {
		if a.AuctionID == auctionID && a.PlayerID == playerID {
			return &a, nil
		}
	}
	return nil, models.ErrNotFound
}

func (t *tx) DeleteAssignment(ctx context.Context, assignmentID uuid.UUID) error {
	if err := t.fail("DeleteAssignment"); err != nil {
		return err
	}
	delete(t.d.assignments, assignmentID)
	return nil
}

func (t *tx) InsertEvent(ctx context.Context, e *models.AuctionEvent) error {
	if err := t.fail("InsertEvent"); err != nil {
		return err
	}
	e.ID = uuid.New()
	e.CreatedAt = t.store.tick()
	t.d.events = append(t.d.events, *e)
	return nil
}

func (t *tx) GetIdempotentResult(ctx context.Context, auctionID uuid.UUID, action, key string) ([]byte, error) {
	raw, ok := t.d.idempotency[idempotencyKey(auctionID, action, key)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return raw, nil
}

func (t *tx) SaveIdempotentResult(ctx context.Context, auctionID uuid.UUID, action, key string, result []byte) error {
	if err := t.fail("SaveIdempotentResult"); err != nil {
		return err
	}
	t.d.idempotency[idempotencyKey(auctionID, action, key)] = append([]byte(nil), result...)
	return nil
}
