package auction

import (
	"context"
	"time"

	"draftauction/internal/queue"
	"draftauction/models"

	"github.com/google/uuid"
)

// Reader: запросы на чтение, доступные и вне транзакции.
// Отсутствие строки сообщается через models.ErrNotFound.
type Reader interface {
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	GetPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Player, error)
	GetTeam(ctx context.Context, auctionID, teamID uuid.UUID) (*models.Team, error)
	ListIncrementRules(ctx context.Context, auctionID uuid.UUID) ([]models.IncrementRule, error)
	HighestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error)
	TeamStanding(ctx context.Context, auctionID, teamID uuid.UUID) (*models.TeamStanding, error)
	ListTeamStandings(ctx context.Context, auctionID uuid.UUID) ([]models.TeamStanding, error)
	ListEvents(ctx context.Context, auctionID uuid.UUID, limit int) ([]models.AuctionEvent, error)
}

// Tx: операции внутри одной транзакции действия
type Tx interface {
	Reader
	queue.Finder

	// LockAuction читает аукцион с блокировкой строки до конца транзакции
	LockAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	UpdateAuctionStatus(ctx context.Context, auctionID uuid.UUID, status string) error
	SetCurrentPlayer(ctx context.Context, auctionID uuid.UUID, playerID *uuid.UUID) error

	SetPlayerStatus(ctx context.Context, playerID uuid.UUID, status string) error

	// HasRecentBid ищет такую же ставку (аукцион, команда, игрок, сумма) за последние window
	HasRecentBid(ctx context.Context, bid *models.Bid, window time.Duration) (bool, error)
	InsertBid(ctx context.Context, bid *models.Bid) error
	DeleteLatestBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error)

	InsertAssignment(ctx context.Context, a *models.Assignment) error
	GetAssignment(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Assignment, error)
	DeleteAssignment(ctx context.Context, assignmentID uuid.UUID) error

	InsertEvent(ctx context.Context, e *models.AuctionEvent) error

	GetIdempotentResult(ctx context.Context, auctionID uuid.UUID, action, key string) ([]byte, error)
	SaveIdempotentResult(ctx context.Context, auctionID uuid.UUID, action, key string, result []byte) error
}

// Store: хранилище. InTx откатывает транзакцию, если fn вернула ошибку.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
