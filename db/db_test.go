package db_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"draftauction/db"
	"draftauction/db/migrations"
	"draftauction/internal/auction"
	"draftauction/internal/feed"
	"draftauction/internal/queue"
	"draftauction/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// withSearchPath направляет соединение в отдельную схему
func withSearchPath(conn, schema string) string {
	if strings.Contains(conn, "://") {
		sep := "?"
		if strings.Contains(conn, "?") {
			sep = "&"
		}
		return conn + sep + "search_path=" + schema
	}
	return conn + " search_path=" + schema
}

type seeded struct {
	conn      string
	dbConn    *sqlx.DB
	storage   *db.Storage
	auctionID uuid.UUID
	teamID    uuid.UUID
	setID     uuid.UUID
	first     uuid.UUID
	inSet     uuid.UUID
}

// setupDB: чистая схема с миграциями и одним живым аукционом.
// Нужен Postgres из POSTGRES_CONN.
func setupDB(t *testing.T) *seeded {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	base := os.Getenv("POSTGRES_CONN")
	if base == "" {
		t.Skip("POSTGRES_CONN is not set")
	}

	admin, err := sqlx.Connect("postgres", base)
	require.NoError(t, err)
	schema := "draft_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	_, err = admin.Exec(`CREATE SCHEMA ` + schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		admin.Exec(`DROP SCHEMA ` + schema + ` CASCADE`)
		admin.Close()
	})

	conn := withSearchPath(base, schema)
	dbConn, err := sqlx.Connect("postgres", conn)
	require.NoError(t, err)
	t.Cleanup(func() { dbConn.Close() })
	require.NoError(t, migrations.Run(dbConn.DB))

	s := &seeded{conn: conn, dbConn: dbConn, storage: db.NewStorage(dbConn)}
	require.NoError(t, dbConn.Get(&s.auctionID, `
        INSERT INTO auctions (name, status, base_price, total_purse, max_players_per_team)
        VALUES ('Premier Draft', 'live', 200, 10000, 5)
        RETURNING id`))
	require.NoError(t, dbConn.Get(&s.teamID, `
        INSERT INTO teams (auction_id, name, purse_total, max_players)
        VALUES ($1, 'Falcons', 10000, 5) RETURNING id`, s.auctionID))
	require.NoError(t, dbConn.Get(&s.setID, `
        INSERT INTO player_sets (auction_id, name, ordering)
        VALUES ($1, 'Marquee', 1) RETURNING id`, s.auctionID))
	require.NoError(t, dbConn.Get(&s.first, `
        INSERT INTO players (auction_id, name, created_at)
        VALUES ($1, 'Rao', NOW() - INTERVAL '2 minutes') RETURNING id`, s.auctionID))
	require.NoError(t, dbConn.Get(&s.inSet, `
        INSERT INTO players (auction_id, name, set_id, created_at)
        VALUES ($1, 'Iyer', $2, NOW() - INTERVAL '1 minute') RETURNING id`, s.auctionID, s.setID))
	_, err = dbConn.Exec(`
        INSERT INTO increment_rules (auction_id, threshold, increment)
        VALUES ($1, 1000, 50), ($1, 5000, 100)`, s.auctionID)
	require.NoError(t, err)
	return s
}

func TestStorage_NextQueuedPlayer(t *testing.T) {
	s := setupDB(t)
	ctx := context.Background()

	err := s.storage.InTx(ctx, func(tx auction.Tx) error {
		p, err := tx.NextQueuedPlayer(ctx, s.auctionID, queue.Filter{Status: models.PlayerAvailable})
		require.NoError(t, err)
		require.Equal(t, s.first, p.ID)

		p, err = tx.NextQueuedPlayer(ctx, s.auctionID, queue.Filter{Status: models.PlayerAvailable, SetID: &s.setID})
		require.NoError(t, err)
		require.Equal(t, s.inSet, p.ID)

		_, err = tx.NextQueuedPlayer(ctx, s.auctionID, queue.Filter{Status: models.PlayerUnsold})
		require.ErrorIs(t, err, models.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestStorage_BidsAndRecentBidWindow(t *testing.T) {
	s := setupDB(t)
	ctx := context.Background()

	err := s.storage.InTx(ctx, func(tx auction.Tx) error {
		bid := &models.Bid{
			AuctionID: s.auctionID,
			TeamID:    s.teamID,
			PlayerID:  s.first,
			Amount:    decimal.NewFromInt(200),
			ByUser:    "console",
		}
		require.NoError(t, tx.InsertBid(ctx, bid))
		require.NotEqual(t, uuid.Nil, bid.ID)

		dup, err := tx.HasRecentBid(ctx, bid, 10*time.Second)
		require.NoError(t, err)
		require.True(t, dup)

		other := *bid
		other.Amount = decimal.NewFromInt(250)
		dup, err = tx.HasRecentBid(ctx, &other, 10*time.Second)
		require.NoError(t, err)
		require.False(t, dup)

		top, err := tx.HighestBid(ctx, s.auctionID, s.first)
		require.NoError(t, err)
		require.Equal(t, bid.ID, top.ID)
		require.True(t, top.Amount.Equal(decimal.NewFromInt(200)))
		return nil
	})
	require.NoError(t, err)

	// окно в прошлом: ставка уже не считается повтором
	_, err = s.dbConn.Exec(`UPDATE bids SET created_at = created_at - INTERVAL '1 minute'`)
	require.NoError(t, err)
	err = s.storage.InTx(ctx, func(tx auction.Tx) error {
		dup, err := tx.HasRecentBid(ctx, &models.Bid{
			AuctionID: s.auctionID, TeamID: s.teamID, PlayerID: s.first, Amount: decimal.NewFromInt(200),
		}, 10*time.Second)
		require.NoError(t, err)
		require.False(t, dup)
		return nil
	})
	require.NoError(t, err)
}

func TestStorage_RollbackOnError(t *testing.T) {
	s := setupDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.storage.InTx(ctx, func(tx auction.Tx) error {
		require.NoError(t, tx.InsertBid(ctx, &models.Bid{
			AuctionID: s.auctionID, TeamID: s.teamID, PlayerID: s.first, Amount: decimal.NewFromInt(200),
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.storage.HighestBid(ctx, s.auctionID, s.first)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorage_AssignmentUniqueAndStanding(t *testing.T) {
	s := setupDB(t)
	ctx := context.Background()
	sale := func() *models.Assignment {
		return &models.Assignment{AuctionID: s.auctionID, PlayerID: s.first, TeamID: s.teamID, Price: decimal.NewFromInt(450)}
	}

	require.NoError(t, s.storage.InTx(ctx, func(tx auction.Tx) error {
		return tx.InsertAssignment(ctx, sale())
	}))

	err := s.storage.InTx(ctx, func(tx auction.Tx) error {
		return tx.InsertAssignment(ctx, sale())
	})
	require.ErrorIs(t, err, auction.ErrPlayerAlreadySold)

	ts, err := s.storage.TeamStanding(ctx, s.auctionID, s.teamID)
	require.NoError(t, err)
	require.Equal(t, 1, ts.Bought)
	require.True(t, ts.Spent.Equal(decimal.NewFromInt(450)))
}

func TestStorage_ServiceRoundTripNotifiesFeed(t *testing.T) {
	s := setupDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f, err := feed.Open(s.conn, feed.Options{Logger: logger})
	require.NoError(t, err)
	defer f.Close()
	sub := f.Subscribe(s.auctionID)
	go f.Run(ctx)

	svc, err := auction.NewService(s.storage, auction.Options{Logger: logger})
	require.NoError(t, err)
	req := auction.AuctionRequest{AuctionID: s.auctionID}

	res, err := svc.NextPlayer(ctx, auction.PlayerRequest{AuctionRequest: req})
	require.NoError(t, err)
	require.Equal(t, s.first, *res.PlayerID)

	amount := decimal.NewFromInt(200)
	bidReq := auction.BidRequest{AuctionRequest: req, TeamID: s.teamID, Amount: &amount}
	_, err = svc.PlaceBid(ctx, bidReq)
	require.NoError(t, err)
	res, err = svc.PlaceBid(ctx, bidReq)
	require.NoError(t, err)
	require.True(t, res.Deduped)

	events, err := svc.Events(ctx, s.auctionID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, models.EventBidPlaced, events[0].Type)

	var got []string
	for len(got) < 2 {
		select {
		case n := <-sub.C():
			got = append(got, n.Type)
		case <-ctx.Done():
			t.Fatalf("got %v before timeout", got)
		}
	}
	require.Equal(t, []string{models.EventCurrentPlayerSet, models.EventBidPlaced}, got)
}
