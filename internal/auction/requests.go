package auction

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Названия действий; они же пути Action API и ключ идемпотентности
const (
	ActionOpenAuction   = "open_auction"
	ActionCloseAuction  = "close_auction"
	ActionPauseAuction  = "pause_auction"
	ActionResumeAuction = "resume_auction"
	ActionNextPlayer    = "next_player"
	ActionPlaceBid      = "place_bid"
	ActionSellPlayer    = "sell_player"
	ActionMarkUnsold    = "mark_unsold"
	ActionUndoBid       = "undo_bid"
	ActionUndoSold      = "undo_sold"
	ActionUndoUnsold    = "undo_unsold"
)

type AuctionRequest struct {
	AuctionID      uuid.UUID `json:"auction_id" validate:"required"`
	IdempotencyKey string    `json:"idempotency_key,omitempty" validate:"max=128"`
}

// TargetAuction возвращает аукцион, к которому относится действие
func (r AuctionRequest) TargetAuction() uuid.UUID {
	return r.AuctionID
}

// PlayerRequest: игрок необязателен, по умолчанию берётся текущий
type PlayerRequest struct {
	AuctionRequest
	PlayerID *uuid.UUID `json:"player_id,omitempty"`
}

// UndoRequest: для отмены продажи и непроданности игрок обязателен
type UndoRequest struct {
	AuctionRequest
	PlayerID *uuid.UUID `json:"player_id" validate:"required"`
}

type BidRequest struct {
	AuctionRequest
	TeamID   uuid.UUID        `json:"team_id" validate:"required"`
	PlayerID *uuid.UUID       `json:"player_id,omitempty"`
	Amount   *decimal.Decimal `json:"amount" validate:"required"`
	ByUser   string           `json:"by_user,omitempty" validate:"max=200"`
}

// Result: тело успешного ответа любого действия
type Result struct {
	OK       bool             `json:"ok"`
	PlayerID *uuid.UUID       `json:"player_id,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Deduped  bool             `json:"deduped,omitempty"`
}
