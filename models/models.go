package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// ErrNotFound возвращается, если запрос к хранилищу не нашёл строку
var ErrNotFound = errors.New("not found")

func init() {
	// суммы отдаём в JSON числами, а не строками
	decimal.MarshalJSONWithoutQuotes = true
}

// Статусы аукциона
const (
	AuctionDraft     = "draft"
	AuctionLive      = "live"
	AuctionPaused    = "paused"
	AuctionCompleted = "completed"
)

// Статусы игрока
const (
	PlayerAvailable = "available"
	PlayerUnsold    = "unsold"
	PlayerSold      = "sold"
	PlayerWithheld  = "withheld"
)

// Область очереди
const (
	ScopeDefault = "default"
	ScopeUnsold  = "unsold"
	ScopeSet     = "set"
)

// Типы событий
const (
	EventAuctionOpened        = "auction_opened"
	EventAuctionClosed        = "auction_closed"
	EventAuctionPaused        = "auction_paused"
	EventAuctionResumed       = "auction_resumed"
	EventCurrentPlayerSet     = "current_player_set"
	EventBidPlaced            = "bid_placed"
	EventPlayerSold           = "player_sold"
	EventPlayerUnsold         = "player_unsold"
	EventBidReverted          = "bid_reverted"
	EventPlayerSoldReverted   = "player_sold_reverted"
	EventPlayerUnsoldReverted = "player_unsold_reverted"
)

// Сущность Аукциона
type Auction struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	Status            string          `db:"status" json:"status"`
	BasePrice         decimal.Decimal `db:"base_price" json:"base_price"`
	TotalPurse        decimal.Decimal `db:"total_purse" json:"total_purse"`
	MaxPlayersPerTeam int             `db:"max_players_per_team" json:"max_players_per_team"`
	QueueScope        string          `db:"queue_scope" json:"queue_scope"`
	CurrentSetID      *uuid.UUID      `db:"current_set_id" json:"current_set_id"`
	CurrentPlayerID   *uuid.UUID      `db:"current_player_id" json:"current_player_id"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"-"`
}

// Сущность Команды. Траты и размер состава не хранятся, а считаются по Assignment.
type Team struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	AuctionID  uuid.UUID       `db:"auction_id" json:"auction_id"`
	Name       string          `db:"name" json:"name"`
	PurseTotal decimal.Decimal `db:"purse_total" json:"purse_total"`
	MaxPlayers int             `db:"max_players" json:"max_players"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// TeamStanding: команда вместе с вычисленными тратами и размером состава
type TeamStanding struct {
	Team
	Spent  decimal.Decimal `db:"spent" json:"spent"`
	Bought int             `db:"bought" json:"bought"`
}

// Сущность Игрока (в рамках аукциона)
type Player struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	AuctionID uuid.UUID        `db:"auction_id" json:"auction_id"`
	Name      string           `db:"name" json:"name"`
	BasePrice *decimal.Decimal `db:"base_price" json:"base_price"`
	Category  string           `db:"category" json:"category"`
	SetID     *uuid.UUID       `db:"set_id" json:"set_id"`
	Status    string           `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// OpeningPrice возвращает базовую цену игрока, либо цену аукциона по умолчанию
func (p *Player) OpeningPrice(a *Auction) decimal.Decimal {
	if p.BasePrice != nil {
		return *p.BasePrice
	}
	return a.BasePrice
}

// OnTheBlock: игрока можно выставить на торги и продать.
// Непроданный игрок снова торгуется в круге unsold.
func (p *Player) OnTheBlock() bool {
	return p.Status == PlayerAvailable || p.Status == PlayerUnsold
}

// Сущность Сета (группа игроков)
type Set struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AuctionID uuid.UUID `db:"auction_id" json:"auction_id"`
	Name      string    `db:"name" json:"name"`
	Ordering  int       `db:"ordering" json:"ordering"`
}

// Сущность Ставки. Только добавление; удаляется лишь через undo.
type Bid struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	AuctionID uuid.UUID       `db:"auction_id" json:"auction_id"`
	TeamID    uuid.UUID       `db:"team_id" json:"team_id"`
	PlayerID  uuid.UUID       `db:"player_id" json:"player_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	ByUser    string          `db:"by_user" json:"by_user"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Сущность Продажи: команда купила игрока за цену
type Assignment struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	AuctionID uuid.UUID       `db:"auction_id" json:"auction_id"`
	PlayerID  uuid.UUID       `db:"player_id" json:"player_id"`
	TeamID    uuid.UUID       `db:"team_id" json:"team_id"`
	Price     decimal.Decimal `db:"price" json:"price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Правило шага ставки
type IncrementRule struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	AuctionID uuid.UUID       `db:"auction_id" json:"auction_id"`
	Threshold decimal.Decimal `db:"threshold" json:"threshold"`
	Increment decimal.Decimal `db:"increment" json:"increment"`
}

// Событие журнала аукциона
type AuctionEvent struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	AuctionID uuid.UUID      `db:"auction_id" json:"auction_id"`
	Type      string         `db:"type" json:"type"`
	Payload   types.JSONText `db:"payload" json:"payload"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
