// event-tail печатает события аукциона по мере их фиксации в БД.
//
//	event-tail -auction <uuid>
//
// Без -auction выводит события всех аукционов.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"draftauction/internal/config"
	"draftauction/internal/feed"

	"github.com/google/uuid"
)

func main() {
	auctionFlag := flag.String("auction", "", "auction id to follow")
	flag.Parse()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	auctionID := uuid.Nil
	if *auctionFlag != "" {
		auctionID, err = uuid.Parse(*auctionFlag)
		if err != nil {
			slog.Error("invalid auction id", slog.String("auction", *auctionFlag))
			os.Exit(2)
		}
	}

	f, err := feed.Open(cfg.Database.Conn, feed.Options{Logger: logger})
	if err != nil {
		slog.Error("failed to open feed", slog.Any("error", err))
		os.Exit(1)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub := f.Subscribe(auctionID)
	defer sub.Close()

	go func() {
		if err := f.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("feed stopped", slog.Any("error", err))
		}
		stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-sub.C():
			if !ok {
				return
			}
			slog.Info("event",
				slog.String("type", n.Type),
				slog.String("auction_id", n.AuctionID.String()),
				slog.String("event_id", n.EventID.String()))
		}
	}
}
