// Package db реализует хранилище аукциона поверх Postgres (sqlx + lib/pq).
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"draftauction/internal/auction"
	"draftauction/internal/feed"
	"draftauction/internal/queue"
	"draftauction/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const (
	auctionColumns    = `id, name, status, base_price, total_purse, max_players_per_team, queue_scope, current_set_id, current_player_id, created_at, updated_at`
	teamColumns       = `id, auction_id, name, purse_total, max_players, created_at`
	playerColumns     = `id, auction_id, name, base_price, category, set_id, status, created_at`
	bidColumns        = `id, auction_id, team_id, player_id, amount, by_user, created_at`
	assignmentColumns = `id, auction_id, player_id, team_id, price, created_at`
	eventColumns      = `id, auction_id, type, payload, created_at`
)

// Storage: доступ к БД вне транзакции и точка входа в транзакции
type Storage struct {
	queries
	db *sqlx.DB
}

var _ auction.Store = (*Storage)(nil)

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{queries: queries{q: db}, db: db}
}

// InTx выполняет fn в транзакции; ошибка или паника откатывают её
func (s *Storage) InTx(ctx context.Context, fn func(tx auction.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&Tx{queries: queries{q: sqlTx}}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Tx: запросы внутри транзакции действия
type Tx struct {
	queries
}

var _ auction.Tx = (*Tx)(nil)

// queries: общие запросы для Storage и Tx
type queries struct {
	q sqlx.ExtContext
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

// Auction (Аукцион)

func (s queries) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	a := &models.Auction{}
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	if err := sqlx.GetContext(ctx, s.q, a, query, auctionID); err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (t *Tx) LockAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	a := &models.Auction{}
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, t.q, a, query, auctionID); err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (t *Tx) UpdateAuctionStatus(ctx context.Context, auctionID uuid.UUID, status string) error {
	query := `UPDATE auctions SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := t.q.ExecContext(ctx, query, auctionID, status)
	return err
}

func (t *Tx) SetCurrentPlayer(ctx context.Context, auctionID uuid.UUID, playerID *uuid.UUID) error {
	query := `UPDATE auctions SET current_player_id = $2, updated_at = NOW() WHERE id = $1`
	_, err := t.q.ExecContext(ctx, query, auctionID, playerID)
	return err
}

// Team (Команда)

func (s queries) GetTeam(ctx context.Context, auctionID, teamID uuid.UUID) (*models.Team, error) {
	t := &models.Team{}
	query := `SELECT ` + teamColumns + ` FROM teams WHERE auction_id = $1 AND id = $2`
	if err := sqlx.GetContext(ctx, s.q, t, query, auctionID, teamID); err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

const standingQuery = `
        SELECT t.id, t.auction_id, t.name, t.purse_total, t.max_players, t.created_at,
               COALESCE(SUM(a.price), 0) AS spent,
               COUNT(a.id) AS bought
        FROM teams t
        LEFT JOIN assignments a ON a.team_id = t.id
        WHERE t.auction_id = $1`

func (s queries) TeamStanding(ctx context.Context, auctionID, teamID uuid.UUID) (*models.TeamStanding, error) {
	ts := &models.TeamStanding{}
	query := standingQuery + ` AND t.id = $2 GROUP BY t.id`
	if err := sqlx.GetContext(ctx, s.q, ts, query, auctionID, teamID); err != nil {
		return nil, notFound(err)
	}
	return ts, nil
}

func (s queries) ListTeamStandings(ctx context.Context, auctionID uuid.UUID) ([]models.TeamStanding, error) {
	standings := []models.TeamStanding{}
	query := standingQuery + ` GROUP BY t.id ORDER BY t.name ASC`
	if err := sqlx.SelectContext(ctx, s.q, &standings, query, auctionID); err != nil {
		return nil, err
	}
	return standings, nil
}

// Player (Игрок)

func (s queries) GetPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Player, error) {
	p := &models.Player{}
	query := `SELECT ` + playerColumns + ` FROM players WHERE auction_id = $1 AND id = $2`
	if err := sqlx.GetContext(ctx, s.q, p, query, auctionID, playerID); err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// NextQueuedPlayer: первый подходящий игрок в порядке добавления
func (t *Tx) NextQueuedPlayer(ctx context.Context, auctionID uuid.UUID, f queue.Filter) (*models.Player, error) {
	p := &models.Player{}
	query := `
        SELECT ` + playerColumns + `
        FROM players
        WHERE auction_id = $1
          AND status = $2
          AND ($3::uuid IS NULL OR set_id = $3)
        ORDER BY created_at ASC, id ASC
        LIMIT 1`
	if err := sqlx.GetContext(ctx, t.q, p, query, auctionID, f.Status, f.SetID); err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (t *Tx) SetPlayerStatus(ctx context.Context, playerID uuid.UUID, status string) error {
	query := `UPDATE players SET status = $2 WHERE id = $1`
	res, err := t.q.ExecContext(ctx, query, playerID, status)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Increment rules (Шаги ставок)

func (s queries) ListIncrementRules(ctx context.Context, auctionID uuid.UUID) ([]models.IncrementRule, error) {
	rules := []models.IncrementRule{}
	query := `
        SELECT id, auction_id, threshold, increment
        FROM increment_rules
        WHERE auction_id = $1
        ORDER BY threshold ASC`
	if err := sqlx.SelectContext(ctx, s.q, &rules, query, auctionID); err != nil {
		return nil, err
	}
	return rules, nil
}

// Bid (Ставка)

func (s queries) HighestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	b := &models.Bid{}
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE auction_id = $1 AND player_id = $2
        ORDER BY amount DESC, created_at DESC
        LIMIT 1`
	if err := sqlx.GetContext(ctx, s.q, b, query, auctionID, playerID); err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (t *Tx) HasRecentBid(ctx context.Context, bid *models.Bid, window time.Duration) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS (
            SELECT 1 FROM bids
            WHERE auction_id = $1 AND team_id = $2 AND player_id = $3 AND amount = $4
              AND created_at > clock_timestamp() - make_interval(secs => $5)
        )`
	err := sqlx.GetContext(ctx, t.q, &exists, query,
		bid.AuctionID, bid.TeamID, bid.PlayerID, bid.Amount, window.Seconds())
	return exists, err
}

func (t *Tx) InsertBid(ctx context.Context, bid *models.Bid) error {
	query := `
        INSERT INTO bids (auction_id, team_id, player_id, amount, by_user, created_at)
        VALUES ($1, $2, $3, $4, $5, clock_timestamp())
        RETURNING id, created_at`
	return t.q.QueryRowxContext(ctx, query,
		bid.AuctionID, bid.TeamID, bid.PlayerID, bid.Amount, bid.ByUser).
		Scan(&bid.ID, &bid.CreatedAt)
}

// DeleteLatestBid удаляет самую позднюю ставку по игроку и возвращает её
func (t *Tx) DeleteLatestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	b := &models.Bid{}
	query := `
        DELETE FROM bids
        WHERE id = (
            SELECT id FROM bids
            WHERE auction_id = $1 AND player_id = $2
            ORDER BY created_at DESC
            LIMIT 1
        )
        RETURNING ` + bidColumns
	if err := sqlx.GetContext(ctx, t.q, b, query, auctionID, playerID); err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// Assignment (Продажа)

func (t *Tx) InsertAssignment(ctx context.Context, a *models.Assignment) error {
	query := `
        INSERT INTO assignments (auction_id, player_id, team_id, price)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	err := t.q.QueryRowxContext(ctx, query, a.AuctionID, a.PlayerID, a.TeamID, a.Price).
		Scan(&a.ID, &a.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return auction.ErrPlayerAlreadySold
	}
	return err
}

func (t *Tx) GetAssignment(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Assignment, error) {
	a := &models.Assignment{}
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE auction_id = $1 AND player_id = $2`
	if err := sqlx.GetContext(ctx, t.q, a, query, auctionID, playerID); err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (t *Tx) DeleteAssignment(ctx context.Context, assignmentID uuid.UUID) error {
	query := `DELETE FROM assignments WHERE id = $1`
	_, err := t.q.ExecContext(ctx, query, assignmentID)
	return err
}

// Events (Журнал)

func (s queries) ListEvents(ctx context.Context, auctionID uuid.UUID, limit int) ([]models.AuctionEvent, error) {
	events := []models.AuctionEvent{}
	query := `
        SELECT ` + eventColumns + `
        FROM auction_events
        WHERE auction_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2`
	if err := sqlx.SelectContext(ctx, s.q, &events, query, auctionID, limit); err != nil {
		return nil, err
	}
	return events, nil
}

// InsertEvent пишет событие и ставит уведомление в ту же транзакцию:
// Postgres отправит его подписчикам только после коммита.
func (t *Tx) InsertEvent(ctx context.Context, e *models.AuctionEvent) error {
	query := `
        INSERT INTO auction_events (auction_id, type, payload, created_at)
        VALUES ($1, $2, $3, clock_timestamp())
        RETURNING id, created_at`
	err := t.q.QueryRowxContext(ctx, query, e.AuctionID, e.Type, e.Payload).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return err
	}

	note, err := json.Marshal(feed.Notification{EventID: e.ID, AuctionID: e.AuctionID, Type: e.Type})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	_, err = t.q.ExecContext(ctx, `SELECT pg_notify($1, $2)`, feed.Channel, string(note))
	return err
}

// Idempotency keys (Ключи идемпотентности)

func (t *Tx) GetIdempotentResult(ctx context.Context, auctionID uuid.UUID, action, key string) ([]byte, error) {
	var result []byte
	query := `SELECT result FROM idempotency_keys WHERE auction_id = $1 AND action = $2 AND key = $3`
	if err := sqlx.GetContext(ctx, t.q, &result, query, auctionID, action, key); err != nil {
		return nil, notFound(err)
	}
	return result, nil
}

func (t *Tx) SaveIdempotentResult(ctx context.Context, auctionID uuid.UUID, action, key string, result []byte) error {
	query := `
        INSERT INTO idempotency_keys (auction_id, action, key, result)
        VALUES ($1, $2, $3, $4)`
	_, err := t.q.ExecContext(ctx, query, auctionID, action, key, result)
	return err
}
