package handlers_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"draftauction/internal/auction"
	"draftauction/internal/auction/auctiontest"
	"draftauction/internal/handlers"
	"draftauction/internal/handlers/testutils"
	"draftauction/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *auctiontest.Store
	handler *handlers.Handler
	router  http.Handler
	auction models.Auction
	team    models.Team
	player  models.Player
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := auctiontest.NewStore()
	a := store.AddAuction(models.Auction{
		Name:              "Premier Draft",
		Status:            models.AuctionLive,
		BasePrice:         decimal.NewFromInt(200),
		TotalPurse:        decimal.NewFromInt(10000),
		MaxPlayersPerTeam: 5,
	})
	store.AddIncrementRule(a.ID, 1000, 50)
	team := store.AddTeam(a.ID, "Falcons", 10000, 5)
	player := store.AddPlayer(models.Player{AuctionID: a.ID, Name: "Rao"})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := auction.NewService(store, auction.Options{Logger: logger})
	require.NoError(t, err)
	h := handlers.NewHandler(svc, logger)

	return &fixture{
		store:   store,
		handler: h,
		router:  handlers.NewRouter(h),
		auction: a,
		team:    team,
		player:  player,
	}
}

func (f *fixture) post(t *testing.T, action, body string) (*http.Response, map[string]any) {
	t.Helper()
	return f.send(t, action, body)
}

// send отправляет действие; body кодируется в JSON, строка уходит как есть
func (f *fixture) send(t *testing.T, action string, body any) (*http.Response, map[string]any) {
	t.Helper()
	req := testutils.NewJSONRequest(t, http.MethodPost, "/api/actions/"+action, body)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	res := w.Result()
	return res, testutils.DecodeJSON(t, res)
}

func (f *fixture) loadPlayer(t *testing.T) {
	t.Helper()
	res, _ := f.post(t, "next_player", fmt.Sprintf(`{"auction_id":%q}`, f.auction.ID))
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func requireCORS(t *testing.T, res *http.Response) {
	t.Helper()
	require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "POST,OPTIONS", res.Header.Get("Access-Control-Allow-Methods"))
	require.Equal(t, "authorization, x-client-info, apikey, content-type", res.Header.Get("Access-Control-Allow-Headers"))
	require.Equal(t, "86400", res.Header.Get("Access-Control-Max-Age"))
}

func TestPingHandler(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	w := httptest.NewRecorder()

	f.handler.PingHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(body))
}

func TestPreflight(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/actions/place_bid", "/api/actions/undo_sold", "/api/unknown"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		w := httptest.NewRecorder()

		f.router.ServeHTTP(w, req)

		res := w.Result()
		require.Equal(t, http.StatusNoContent, res.StatusCode, path)
		requireCORS(t, res)
		res.Body.Close()
	}
}

func TestPlaceBidHandler(t *testing.T) {
	f := newFixture(t)
	f.loadPlayer(t)

	res, body := f.post(t, "place_bid", fmt.Sprintf(
		`{"auction_id":%q,"team_id":%q,"amount":200,"by_user":"console"}`, f.auction.ID, f.team.ID))
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "application/json", res.Header.Get("Content-Type"))
	requireCORS(t, res)
	require.Equal(t, true, body["ok"])
	require.Equal(t, float64(200), body["amount"])
	require.Equal(t, f.player.ID.String(), body["player_id"])

	// повтор той же ставки поглощается
	res, body = f.post(t, "place_bid", fmt.Sprintf(
		`{"auction_id":%q,"team_id":%q,"amount":"200"}`, f.auction.ID, f.team.ID))
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, true, body["deduped"])
	require.Len(t, f.store.Bids(f.auction.ID, f.player.ID), 1)
}

func TestPlaceBidHandler_WrongAmount(t *testing.T) {
	f := newFixture(t)
	f.loadPlayer(t)

	res, body := f.post(t, "place_bid", fmt.Sprintf(
		`{"auction_id":%q,"team_id":%q,"amount":250}`, f.auction.ID, f.team.ID))
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	requireCORS(t, res)
	require.Equal(t, "invalid bid amount", body["error"])
	require.Equal(t, map[string]any{"expected": float64(200)}, body["details"])
}

func TestActionHandlers_RequestValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name    string
		action  string
		body    string
		error   string
		details map[string]any
	}{
		{
			name:   "malformed json",
			action: "open_auction",
			body:   `{"auction_id":`,
			error:  "invalid JSON body",
		},
		{
			name:    "missing auction",
			action:  "pause_auction",
			body:    `{}`,
			error:   "invalid request",
			details: map[string]any{"auction_id": "required"},
		},
		{
			name:    "bid without team and amount",
			action:  "place_bid",
			body:    fmt.Sprintf(`{"auction_id":%q}`, f.auction.ID),
			error:   "invalid request",
			details: map[string]any{"team_id": "required", "amount": "required"},
		},
		{
			name:    "undo sold needs player",
			action:  "undo_sold",
			body:    fmt.Sprintf(`{"auction_id":%q}`, f.auction.ID),
			error:   "invalid request",
			details: map[string]any{"player_id": "required"},
		},
		{
			name:   "unknown auction",
			action: "open_auction",
			body:   fmt.Sprintf(`{"auction_id":%q}`, uuid.New()),
			error:  "auction not found",
		},
		{
			name:   "no player loaded",
			action: "sell_player",
			body:   fmt.Sprintf(`{"auction_id":%q}`, f.auction.ID),
			error:  "no player loaded",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, body := f.post(t, tc.action, tc.body)
			require.Equal(t, http.StatusBadRequest, res.StatusCode)
			require.Equal(t, tc.error, body["error"])
			if tc.details != nil {
				require.Equal(t, tc.details, body["details"])
			}
		})
	}
}

func TestActionHandlers_UnexpectedFailureIs500(t *testing.T) {
	f := newFixture(t)
	f.loadPlayer(t)
	f.store.FailOn = "InsertBid"
	f.store.FailErr = errors.New("deadlock detected")

	res, body := f.post(t, "place_bid", fmt.Sprintf(
		`{"auction_id":%q,"team_id":%q,"amount":200}`, f.auction.ID, f.team.ID))
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
	requireCORS(t, res)
	require.Equal(t, "insert bid: deadlock detected", body["error"])
	require.Empty(t, f.store.Bids(f.auction.ID, f.player.ID))
}

func TestActionHandlers_SaleFlow(t *testing.T) {
	f := newFixture(t)
	f.loadPlayer(t)
	auctionBody := fmt.Sprintf(`{"auction_id":%q}`, f.auction.ID)
	playerBody := fmt.Sprintf(`{"auction_id":%q,"player_id":%q}`, f.auction.ID, f.player.ID)

	res, _ := f.post(t, "place_bid", fmt.Sprintf(
		`{"auction_id":%q,"team_id":%q,"amount":200}`, f.auction.ID, f.team.ID))
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body := f.post(t, "sell_player", auctionBody)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, float64(200), body["amount"])

	res, body = f.post(t, "sell_player", playerBody)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, "player already sold", body["error"])

	res, _ = f.post(t, "undo_sold", playerBody)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, models.PlayerAvailable, f.store.Player(f.player.ID).Status)

	res, _ = f.post(t, "mark_unsold", playerBody)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = f.post(t, "undo_unsold", playerBody)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = f.post(t, "undo_bid", playerBody)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, body = f.post(t, "undo_bid", playerBody)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, "no bids to undo", body["error"])
}

func TestActionHandlers_Lifecycle(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{"auction_id":%q}`, f.auction.ID)

	res, _ := f.post(t, "pause_auction", body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, out := f.post(t, "place_bid", fmt.Sprintf(
		`{"auction_id":%q,"team_id":%q,"amount":200}`, f.auction.ID, f.team.ID))
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, "auction not live", out["error"])

	res, _ = f.post(t, "resume_auction", body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = f.post(t, "close_auction", body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, out = f.post(t, "open_auction", body)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, "auction completed", out["error"])
	require.Equal(t, models.AuctionCompleted, f.store.Auction(f.auction.ID).Status)
}

func TestGetStateHandler(t *testing.T) {
	f := newFixture(t)
	f.loadPlayer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auctions/"+f.auction.ID.String()+"/state", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"auctionID": f.auction.ID.String()})
	w := httptest.NewRecorder()

	f.handler.GetStateHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out struct {
		OK    bool `json:"ok"`
		State struct {
			Auction       models.Auction  `json:"auction"`
			CurrentPlayer models.Player   `json:"current_player"`
			NextBid       decimal.Decimal `json:"next_bid"`
			Teams         []struct {
				Name     string          `json:"name"`
				MaxBid   decimal.Decimal `json:"max_bid"`
				Eligible bool            `json:"eligible"`
			} `json:"teams"`
		} `json:"state"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.True(t, out.OK)
	st := out.State
	require.Equal(t, models.AuctionLive, st.Auction.Status)
	require.Equal(t, "Rao", st.CurrentPlayer.Name)
	require.True(t, st.NextBid.Equal(decimal.NewFromInt(200)))
	require.Len(t, st.Teams, 1)
	require.Equal(t, "Falcons", st.Teams[0].Name)
	require.True(t, st.Teams[0].Eligible)
	require.True(t, st.Teams[0].MaxBid.Equal(decimal.NewFromInt(9200)))
}

func TestGetStateHandler_BadID(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/auctions/nope/state", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"auctionID": "nope"})
	w := httptest.NewRecorder()

	f.handler.GetStateHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Contains(t, string(body), "invalid auction id")
}

func TestGetEventsHandler(t *testing.T) {
	f := newFixture(t)
	f.loadPlayer(t)
	_, _ = f.post(t, "place_bid", fmt.Sprintf(
		`{"auction_id":%q,"team_id":%q,"amount":200}`, f.auction.ID, f.team.ID))

	req := httptest.NewRequest(http.MethodGet, "/api/auctions/"+f.auction.ID.String()+"/events?limit=1", nil)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out struct {
		OK     bool                  `json:"ok"`
		Events []models.AuctionEvent `json:"events"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.True(t, out.OK)
	require.Len(t, out.Events, 1)
	require.Equal(t, models.EventBidPlaced, out.Events[0].Type)
	require.Contains(t, string(out.Events[0].Payload), `"team_name":"Falcons"`)

	req = httptest.NewRequest(http.MethodGet, "/api/auctions/"+f.auction.ID.String()+"/events?limit=ten", nil)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownAction(t *testing.T) {
	f := newFixture(t)
	res, body := f.post(t, "buy_everyone", `{}`)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Equal(t, "not found", body["error"])
	requireCORS(t, res)
}

func TestPlaceBidHandler_TypedRequest(t *testing.T) {
	f := newFixture(t)
	f.loadPlayer(t)
	amount := decimal.NewFromInt(200)

	res, body := f.send(t, "place_bid", auction.BidRequest{
		AuctionRequest: auction.AuctionRequest{AuctionID: f.auction.ID, IdempotencyKey: "console-1"},
		TeamID:         f.team.ID,
		Amount:         &amount,
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, true, body["ok"])
	require.Equal(t, float64(200), body["amount"])
}
