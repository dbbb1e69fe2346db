package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"draftauction/db"
	"draftauction/db/migrations"
	"draftauction/internal/auction"
	"draftauction/internal/config"
	"draftauction/internal/handlers"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	dbConn, err := sqlx.Connect("postgres", cfg.Database.Conn)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	if cfg.Database.MaxOpenConns > 0 {
		dbConn.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		dbConn.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}

	if err := migrations.Run(dbConn.DB); err != nil {
		return err
	}

	store := db.NewStorage(dbConn)
	svc, err := auction.NewService(store, auction.Options{
		DedupeWindow:    cfg.Auction.DedupeWindow.Duration,
		ReplayCacheSize: cfg.Auction.ReplayCacheSize,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	h := handlers.NewHandler(svc, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: handlers.NewRouter(h),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("addr", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
