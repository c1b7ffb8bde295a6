package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/models"
	"stonksnote/internal/services"
)

const (
	testBrokerID = "01928c5e-1111-7000-8000-000000000001"
	testEquityID = "01928c5e-2222-7000-8000-000000000001"
)

func setupTraderRouter(trader *mockTrader, catalog *mockCatalogService, audit *mockAuditService) *gin.Engine {
	h := NewTraderHandler(&mockTraderProvider{trader: trader}, catalog, audit)
	r := gin.New()
	g := r.Group("/trades", injectUserID(testUserID))
	g.GET("/brokers", h.GetBrokers)
	g.POST("/brokers", h.AddBrokers)
	g.DELETE("/brokers/primary", h.UnsetPrimary)
	g.DELETE("/brokers/:id", h.RemoveBroker)
	g.PUT("/brokers/:id/primary", h.SetPrimary)
	g.GET("/wallet", h.GetWallet)
	g.POST("/wallet/deposit", h.Deposit)
	g.POST("/wallet/withdraw", h.Withdraw)
	g.GET("/stash", h.GetStashes)
	g.GET("/stash/:equity_id", h.GetStash)
	g.POST("/stash", h.AddStash)
	g.POST("/buy", h.Buy)
	g.POST("/sell", h.Sell)
	g.GET("/marks", h.GetMarks)
	g.POST("/marks/add", h.AddMark)
	g.POST("/marks/remove", h.RemoveMark)
	g.POST("/marks/clear", h.ClearMarks)
	return r
}

func TestTraderHandler_Brokers(t *testing.T) {
	t.Run("add passes options through", func(t *testing.T) {
		var gotIDs []string
		var gotOpts services.AddBrokerOptions
		trader := &mockTrader{
			addBrokerFn: func(ids []string, opts services.AddBrokerOptions) error {
				gotIDs, gotOpts = ids, opts
				return nil
			},
		}
		audit := &mockAuditService{}
		r := setupTraderRouter(trader, &mockCatalogService{}, audit)

		rec := doRequest(r, "POST", "/trades/brokers",
			`{"broker_ids":["`+testBrokerID+`"],"wallet":"1000","is_primary":true}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(gotIDs) != 1 || gotIDs[0] != testBrokerID {
			t.Errorf("unexpected broker ids %v", gotIDs)
		}
		if !gotOpts.Wallet.Equal(decimal.NewFromInt(1000)) || !gotOpts.IsPrimary {
			t.Errorf("unexpected options %+v", gotOpts)
		}
		if len(audit.calls) != 1 || audit.calls[0].action != models.AuditActionBrokerAttach {
			t.Errorf("expected broker.attach audit, got %+v", audit.calls)
		}
	})

	t.Run("add rejects empty list", func(t *testing.T) {
		r := setupTraderRouter(&mockTrader{}, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/brokers", `{"broker_ids":[]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("add maps unknown broker to 404", func(t *testing.T) {
		trader := &mockTrader{
			addBrokerFn: func(_ []string, _ services.AddBrokerOptions) error { return apperrors.ErrBrokerNotFound },
		}
		r := setupTraderRouter(trader, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/brokers", `{"broker_ids":["`+testBrokerID+`"]}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BROKER_NOT_FOUND")
	})

	t.Run("remove returns 204", func(t *testing.T) {
		var removed []string
		trader := &mockTrader{removeBrokerFn: func(ids []string) error { removed = ids; return nil }}
		r := setupTraderRouter(trader, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "DELETE", "/trades/brokers/"+testBrokerID, "")

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if len(removed) != 1 || removed[0] != testBrokerID {
			t.Errorf("unexpected removal %v", removed)
		}
	})

	t.Run("remove rejects malformed id", func(t *testing.T) {
		r := setupTraderRouter(&mockTrader{}, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "DELETE", "/trades/brokers/42", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("set primary returns the new primary", func(t *testing.T) {
		var primary string
		trader := &mockTrader{setPrimaryFn: func(id string) error { primary = id; return nil }}
		r := setupTraderRouter(trader, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "PUT", "/trades/brokers/"+testBrokerID+"/primary", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if primary != testBrokerID {
			t.Errorf("expected SetPrimary(%s), got %q", testBrokerID, primary)
		}
	})

	t.Run("unset primary returns 204", func(t *testing.T) {
		r := setupTraderRouter(&mockTrader{}, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "DELETE", "/trades/brokers/primary", "")

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	})
}

func TestTraderHandler_Wallet(t *testing.T) {
	t.Run("deposit returns new balance", func(t *testing.T) {
		trader := &mockTrader{
			depositFn: func(amount decimal.Decimal, _ string) (decimal.Decimal, error) {
				return amount.Add(decimal.NewFromInt(10)), nil
			},
		}
		r := setupTraderRouter(trader, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/wallet/deposit", `{"amount":"90.5"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := parseJSON(t, rec)["wallet"]; got != "100.5" {
			t.Errorf("expected wallet 100.5, got %v", got)
		}
	})

	t.Run("deposit without brokers is 422", func(t *testing.T) {
		trader := &mockTrader{
			depositFn: func(_ decimal.Decimal, _ string) (decimal.Decimal, error) {
				return decimal.Zero, apperrors.ErrMissingBrokers
			},
		}
		r := setupTraderRouter(trader, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/wallet/deposit", `{"amount":"10"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "MISSING_BROKERS")
	})

	t.Run("withdraw uses the named broker", func(t *testing.T) {
		var gotBroker string
		trader := &mockTrader{
			withdrawFn: func(_ decimal.Decimal, brokerID string) (decimal.Decimal, error) {
				gotBroker = brokerID
				return decimal.Zero, nil
			},
		}
		audit := &mockAuditService{}
		r := setupTraderRouter(trader, &mockCatalogService{}, audit)

		rec := doRequest(r, "POST", "/trades/wallet/withdraw", `{"amount":"5","broker_id":"`+testBrokerID+`"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotBroker != testBrokerID {
			t.Errorf("expected broker %s, got %q", testBrokerID, gotBroker)
		}
		if len(audit.calls) != 1 || audit.calls[0].action != models.AuditActionWalletWithdraw {
			t.Errorf("expected wallet.withdraw audit, got %+v", audit.calls)
		}
	})

	t.Run("get wallet reads query broker", func(t *testing.T) {
		trader := &mockTrader{
			getWalletFn: func(brokerID string) (decimal.Decimal, error) {
				if brokerID != testBrokerID {
					t.Errorf("unexpected broker %q", brokerID)
				}
				return decimal.RequireFromString("498.52"), nil
			},
		}
		r := setupTraderRouter(trader, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "GET", "/trades/wallet?broker_id="+testBrokerID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := parseJSON(t, rec)["wallet"]; got != "498.52" {
			t.Errorf("expected 498.52, got %v", got)
		}
	})
}

func TestTraderHandler_Stash(t *testing.T) {
	t.Run("missing holding is 404", func(t *testing.T) {
		trader := &mockTrader{
			getStashFn: func(_ string) (*services.StashView, error) { return nil, apperrors.ErrStashNotFound },
		}
		r := setupTraderRouter(trader, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "GET", "/trades/stash/"+testEquityID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "STASH_NOT_FOUND")
	})

	t.Run("add stash for unknown equity returns null", func(t *testing.T) {
		trader := &mockTrader{
			addStashFn: func(_ string) (*models.Stash, error) { return nil, nil },
		}
		r := setupTraderRouter(trader, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/stash", `{"equity_id":"`+testEquityID+`"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stash, ok := parseJSON(t, rec)["stash"]; !ok || stash != nil {
			t.Errorf("expected null stash, got %v", stash)
		}
	})
}

func TestTraderHandler_Trade(t *testing.T) {
	t.Run("buy by symbol resolves the equity", func(t *testing.T) {
		var got services.TradeRequest
		trader := &mockTrader{
			buyFn: func(req services.TradeRequest) (*services.TradeResult, error) {
				got = req
				return &services.TradeResult{
					Gross:    decimal.RequireFromString("500"),
					Fees:     decimal.RequireFromString("1.475"),
					Total:    decimal.RequireFromString("501.475"),
					Currency: "PHP",
					Trade:    &models.Trade{Base: models.Base{ID: "01928c5e-3333-7000-8000-000000000001"}, Action: models.TradeBuy},
				}, nil
			},
		}
		catalog := &mockCatalogService{
			findEquityByTickerFn: func(ticker string) (*models.Equity, error) {
				return &models.Equity{Base: models.Base{ID: testEquityID}, Ticker: ticker}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupTraderRouter(trader, catalog, audit)

		rec := doRequest(r, "POST", "/trades/buy", `{"symbol":"BDO","shares":100,"price":"5"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.EquityID != testEquityID || got.Shares != 100 || !got.Price.Equal(decimal.NewFromInt(5)) {
			t.Errorf("unexpected trade request %+v", got)
		}
		if total := parseJSON(t, rec)["total"]; total != "501.475" {
			t.Errorf("expected total 501.475, got %v", total)
		}
		if len(audit.calls) != 1 || audit.calls[0].action != models.AuditActionBuy {
			t.Errorf("expected trade.buy audit, got %+v", audit.calls)
		}
	})

	t.Run("buy without equity is 400", func(t *testing.T) {
		r := setupTraderRouter(&mockTrader{}, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/buy", `{"shares":100,"price":"5"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("buy with zero shares is 400", func(t *testing.T) {
		r := setupTraderRouter(&mockTrader{}, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/buy", `{"equity_id":"`+testEquityID+`","shares":0,"price":"5"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("buy without funds is 422", func(t *testing.T) {
		trader := &mockTrader{
			buyFn: func(_ services.TradeRequest) (*services.TradeResult, error) { return nil, apperrors.ErrNotEnoughFunds },
		}
		audit := &mockAuditService{}
		r := setupTraderRouter(trader, &mockCatalogService{}, audit)

		rec := doRequest(r, "POST", "/trades/buy", `{"equity_id":"`+testEquityID+`","shares":100,"price":"5"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "NOT_ENOUGH_FUNDS")
		if len(audit.calls) != 0 {
			t.Errorf("expected no audit entry for a rejected trade, got %+v", audit.calls)
		}
	})

	t.Run("sell beyond holding is 422", func(t *testing.T) {
		trader := &mockTrader{
			sellFn: func(_ services.TradeRequest) (*services.TradeResult, error) {
				return nil, apperrors.ErrInsufficientShares
			},
		}
		r := setupTraderRouter(trader, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/sell", `{"equity_id":"`+testEquityID+`","shares":10,"price":"5"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INSUFFICIENT_SHARES")
	})
}

func TestTraderHandler_Marks(t *testing.T) {
	t.Run("add by symbol returns 201", func(t *testing.T) {
		var gotIDs []string
		trader := &mockTrader{
			addMarkFn: func(ids []string, _ services.MarkOptions) ([]models.Mark, error) {
				gotIDs = ids
				return []models.Mark{{Base: models.Base{ID: "01928c5e-4444-7000-8000-000000000001"}, EquityID: ids[0], IsActive: true}}, nil
			},
		}
		catalog := &mockCatalogService{
			findEquityByTickerFn: func(ticker string) (*models.Equity, error) {
				return &models.Equity{Base: models.Base{ID: testEquityID}, Ticker: ticker}, nil
			},
		}
		r := setupTraderRouter(trader, catalog, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/marks/add", `{"symbol":"BDO","expires":"2030-01-01T00:00:00Z"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(gotIDs) != 1 || gotIDs[0] != testEquityID {
			t.Errorf("unexpected equity ids %v", gotIDs)
		}
		mark := parseJSON(t, rec)["mark"].(map[string]interface{})
		if mark["is_active"] != true {
			t.Errorf("expected active mark, got %v", mark)
		}
		if _, ok := mark["author_id"]; ok {
			t.Error("author_id should not be exported")
		}
	})

	t.Run("already marked returns 200", func(t *testing.T) {
		r := setupTraderRouter(&mockTrader{}, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/marks/add", `{"symbol":"BDO"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["created"] != false {
			t.Error("expected created=false")
		}
	})

	t.Run("unknown symbol is 404", func(t *testing.T) {
		catalog := &mockCatalogService{
			findEquityByTickerFn: func(_ string) (*models.Equity, error) { return nil, apperrors.ErrEquityNotFound },
		}
		r := setupTraderRouter(&mockTrader{}, catalog, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/marks/add", `{"symbol":"NOPE"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "EQUITY_NOT_FOUND")
	})

	t.Run("remove and clear report counts", func(t *testing.T) {
		trader := &mockTrader{
			removeMarkFn: func(_ []string) (int, error) { return 1, nil },
			clearMarksFn: func() (int, error) { return 3, nil },
		}
		r := setupTraderRouter(trader, &mockCatalogService{}, &mockAuditService{})

		rec := doRequest(r, "POST", "/trades/marks/remove", `{"symbol":"BDO"}`)
		if rec.Code != http.StatusOK || parseJSON(t, rec)["removed"] != float64(1) {
			t.Fatalf("unexpected remove response %d: %s", rec.Code, rec.Body.String())
		}

		rec = doRequest(r, "POST", "/trades/marks/clear", "")
		if rec.Code != http.StatusOK || parseJSON(t, rec)["removed"] != float64(3) {
			t.Fatalf("unexpected clear response %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestTraderHandler_UnknownUser(t *testing.T) {
	h := NewTraderHandler(&mockTraderProvider{err: apperrors.ErrUserNotFound}, &mockCatalogService{}, &mockAuditService{})
	r := gin.New()
	r.GET("/trades/brokers", injectUserID(testUserID), h.GetBrokers)

	rec := doRequest(r, "GET", "/trades/brokers", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
