// Package auction реализует машину состояний аукциона и игроков.
// Каждое действие выполняется в одной транзакции: блокировка аукциона,
// проверка ключа идемпотентности, валидация, запись, событие в журнал.
package auction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"draftauction/models"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/jmoiron/sqlx/types"
)

const (
	DefaultDedupeWindow    = 10 * time.Second
	DefaultReplayCacheSize = 1024
)

type Options struct {
	// DedupeWindow: окно, в котором одинаковая ставка считается повтором
	DedupeWindow    time.Duration
	ReplayCacheSize int
	Logger          *slog.Logger
}

type Service struct {
	store        Store
	dedupeWindow time.Duration
	replays      *lru.Cache
	log          *slog.Logger
}

func NewService(store Store, opts Options) (*Service, error) {
	if opts.DedupeWindow <= 0 {
		opts.DedupeWindow = DefaultDedupeWindow
	}
	if opts.ReplayCacheSize <= 0 {
		opts.ReplayCacheSize = DefaultReplayCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	replays, err := lru.New(opts.ReplayCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create replay cache: %w", err)
	}
	return &Service{
		store:        store,
		dedupeWindow: opts.DedupeWindow,
		replays:      replays,
		log:          opts.Logger,
	}, nil
}

type actionFunc func(ctx context.Context, tx Tx, a *models.Auction) (*Result, error)

// execute выполняет действие в транзакции под блокировкой аукциона.
// При непустом key повтор с тем же (аукцион, действие, ключ) возвращает
// сохранённый результат и ничего не пишет.
func (s *Service) execute(ctx context.Context, action string, auctionID uuid.UUID, key string, fn actionFunc) (*Result, error) {
	cacheKey := replayKey(auctionID, action, key)
	if key != "" {
		if v, ok := s.replays.Get(cacheKey); ok {
			s.log.Debug("idempotent replay from cache",
				slog.String("action", action),
				slog.String("auction_id", auctionID.String()))
			res := *v.(*Result)
			return &res, nil
		}
	}

	var res *Result
	err := s.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.LockAuction(ctx, auctionID)
		if errors.Is(err, models.ErrNotFound) {
			return ErrAuctionNotFound
		}
		if err != nil {
			return fmt.Errorf("lock auction: %w", err)
		}

		if key != "" {
			raw, err := tx.GetIdempotentResult(ctx, auctionID, action, key)
			switch {
			case err == nil:
				var stored Result
				if err := json.Unmarshal(raw, &stored); err != nil {
					return fmt.Errorf("decode stored result: %w", err)
				}
				res = &stored
				return nil
			case !errors.Is(err, models.ErrNotFound):
				return fmt.Errorf("load idempotency key: %w", err)
			}
		}

		r, err := fn(ctx, tx, a)
		if err != nil {
			return err
		}

		if key != "" {
			raw, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			if err := tx.SaveIdempotentResult(ctx, auctionID, action, key, raw); err != nil {
				return fmt.Errorf("save idempotency key: %w", err)
			}
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if key != "" {
		cached := *res
		s.replays.Add(cacheKey, &cached)
	}
	return res, nil
}

func replayKey(auctionID uuid.UUID, action, key string) string {
	return auctionID.String() + "|" + action + "|" + key
}

// record добавляет событие в журнал аукциона
func record(ctx context.Context, tx Tx, auctionID uuid.UUID, eventType string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	e := &models.AuctionEvent{
		AuctionID: auctionID,
		Type:      eventType,
		Payload:   types.JSONText(raw),
	}
	if err := tx.InsertEvent(ctx, e); err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	return nil
}

// resolvePlayer: явно указанный игрок, иначе текущий игрок аукциона
func resolvePlayer(ctx context.Context, tx Tx, a *models.Auction, explicit *uuid.UUID) (*models.Player, error) {
	var playerID uuid.UUID
	switch {
	case explicit != nil:
		playerID = *explicit
	case a.CurrentPlayerID != nil:
		playerID = *a.CurrentPlayerID
	default:
		return nil, ErrNoPlayerLoaded
	}
	p, err := tx.GetPlayer(ctx, a.ID, playerID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player: %w", err)
	}
	return p, nil
}

// releaseIfCurrent снимает игрока с торгов, если он сейчас на торгах
func releaseIfCurrent(ctx context.Context, tx Tx, a *models.Auction, playerID uuid.UUID) error {
	if a.CurrentPlayerID == nil || *a.CurrentPlayerID != playerID {
		return nil
	}
	if err := tx.SetCurrentPlayer(ctx, a.ID, nil); err != nil {
		return fmt.Errorf("clear current player: %w", err)
	}
	a.CurrentPlayerID = nil
	return nil
}

func okResult() *Result {
	return &Result{OK: true}
}
