package services

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"stonksnote/internal/models"
	"stonksnote/internal/testutil"
)

func TestBuy(t *testing.T) {
	t.Run("buy_flow", func(t *testing.T) {
		db, user, tr := newTestTrader(t)
		b := testutil.CreateTestBroker(t, db, "0.00295", "0.00395")
		e := testutil.CreateTestEquity(t, db, "COL")
		testutil.AssertNoError(t, tr.AddBroker([]string{b.ID}, AddBrokerOptions{Wallet: decimal.NewFromInt(1000)}))

		res, err := tr.Buy(TradeRequest{EquityID: e.ID, Shares: 100, Price: decimal.RequireFromString("5.00")})
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "500", res.Gross)
		testutil.AssertDecimal(t, "1.475", res.Fees)
		testutil.AssertDecimal(t, "501.475", res.Total)
		testutil.AssertDecimal(t, "498.52", res.Wallet)
		if res.Shares != 100 {
			t.Errorf("expected 100 shares held, got %d", res.Shares)
		}
		if res.Currency != "PHP" {
			t.Errorf("expected PHP, got %s", res.Currency)
		}

		wallet, err := tr.GetWallet("")
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "498.52", wallet)

		stash, err := tr.GetStash(e.ID)
		testutil.AssertNoError(t, err)
		if stash.Shares != 100 || stash.IsResolved {
			t.Errorf("expected open holding of 100, got %+v", stash)
		}
		if stash.Ticker != "COL" {
			t.Errorf("expected ticker COL, got %s", stash.Ticker)
		}

		var trades []models.Trade
		testutil.AssertNoError(t, db.Where("author_id = ?", user.ID).Find(&trades).Error)
		if len(trades) != 1 {
			t.Fatalf("expected 1 trade row, got %d", len(trades))
		}
		if trades[0].Action != models.TradeBuy {
			t.Errorf("expected buy, got %s", trades[0].Action)
		}
		if trades[0].StashID != stash.ID || trades[0].BrokerID != b.ID {
			t.Errorf("trade not linked to stash and broker: %+v", trades[0])
		}

		ub, err := tr.GetUserBroker("")
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "500", ub.Traded)
	})

	t.Run("not_enough_funds_writes_nothing", func(t *testing.T) {
		db, user, tr := newTestTrader(t)
		b := testutil.CreateTestBroker(t, db, "0.00295", "0.00395")
		e := testutil.CreateTestEquity(t, db, "BEL")
		testutil.AssertNoError(t, tr.AddBroker([]string{b.ID}, AddBrokerOptions{Wallet: decimal.NewFromInt(500)}))

		_, err := tr.Buy(TradeRequest{EquityID: e.ID, Shares: 100, Price: decimal.NewFromInt(5)})
		testutil.AssertAppError(t, err, "NOT_ENOUGH_FUNDS")

		wallet, err := tr.GetWallet("")
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "500", wallet)

		has, err := tr.HasStash(e.ID)
		testutil.AssertNoError(t, err)
		if has {
			t.Error("expected no stash to be created")
		}
		var n int64
		db.Model(&models.Trade{}).Where("author_id = ?", user.ID).Count(&n)
		if n != 0 {
			t.Errorf("expected no trade rows, got %d", n)
		}
	})

	t.Run("unknown_equity", func(t *testing.T) {
		db, _, tr := newTestTrader(t)
		b := testutil.CreateTestBroker(t, db, "0.00295", "0.00395")
		testutil.AssertNoError(t, tr.AddBroker([]string{b.ID}, AddBrokerOptions{Wallet: decimal.NewFromInt(1000)}))

		_, err := tr.Buy(TradeRequest{
			EquityID: "0192f0a4-0000-7000-8000-000000000000",
			Shares:   1,
			Price:    decimal.NewFromInt(1),
		})
		testutil.AssertAppError(t, err, "EQUITY_NOT_FOUND")
	})

	t.Run("no_brokers", func(t *testing.T) {
		db, _, tr := newTestTrader(t)
		e := testutil.CreateTestEquity(t, db, "ELI")

		_, err := tr.Buy(TradeRequest{EquityID: e.ID, Shares: 1, Price: decimal.NewFromInt(1)})
		testutil.AssertAppError(t, err, "MISSING_BROKERS")
	})

	t.Run("explicit_broker_and_currency", func(t *testing.T) {
		db, _, tr := newTestTrader(t)
		b1 := testutil.CreateTestBroker(t, db, "0.00295", "0.00395")
		b2 := testutil.CreateTestBroker(t, db, "0", "0")
		e := testutil.CreateTestEquity(t, db, "FDC")
		testutil.AssertNoError(t, tr.AddBroker([]string{b1.ID}, AddBrokerOptions{IsPrimary: true}))
		testutil.AssertNoError(t, tr.AddBroker([]string{b2.ID}, AddBrokerOptions{Wallet: decimal.NewFromInt(100)}))

		res, err := tr.Buy(TradeRequest{
			EquityID: e.ID,
			Shares:   10,
			Price:    decimal.NewFromInt(3),
			BrokerID: b2.ID,
			Currency: "usd",
		})
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "70", res.Wallet)
		if res.Currency != "USD" {
			t.Errorf("expected USD, got %s", res.Currency)
		}
		if res.Trade.BrokerID != b2.ID {
			t.Errorf("expected trade at %s, got %s", b2.ID, res.Trade.BrokerID)
		}
	})

	t.Run("invalid_requests", func(t *testing.T) {
		_, _, tr := newTestTrader(t)
		const id = "0192f0a4-0000-7000-8000-000000000000"

		tests := []struct {
			name string
			req  TradeRequest
		}{
			{"missing_equity", TradeRequest{Shares: 1, Price: decimal.NewFromInt(1)}},
			{"zero_shares", TradeRequest{EquityID: id, Price: decimal.NewFromInt(1)}},
			{"negative_price", TradeRequest{EquityID: id, Shares: 1, Price: decimal.NewFromInt(-1)}},
			{"unknown_currency", TradeRequest{EquityID: id, Shares: 1, Price: decimal.NewFromInt(1), Currency: "ZZZ"}},
			{"malformed_equity", TradeRequest{EquityID: "x", Shares: 1, Price: decimal.NewFromInt(1)}},
			{"malformed_broker", TradeRequest{EquityID: id, BrokerID: "col", Shares: 1, Price: decimal.NewFromInt(1)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := tr.Buy(tt.req)
				testutil.AssertAppError(t, err, "INVALID_INPUT")
			})
		}
	})
}

func TestSell(t *testing.T) {
	setup := func(t *testing.T) (*Trader, *models.Equity) {
		t.Helper()
		db, _, tr := newTestTrader(t)
		b := testutil.CreateTestBroker(t, db, "0.00295", "0.00395")
		e := testutil.CreateTestEquity(t, db, "SMC")
		testutil.AssertNoError(t, tr.AddBroker([]string{b.ID}, AddBrokerOptions{Wallet: decimal.NewFromInt(1000)}))
		_, err := tr.Buy(TradeRequest{EquityID: e.ID, Shares: 100, Price: decimal.NewFromInt(5)})
		testutil.AssertNoError(t, err)
		return tr, e
	}

	t.Run("partial_then_full", func(t *testing.T) {
		tr, e := setup(t)

		res, err := tr.Sell(TradeRequest{EquityID: e.ID, Shares: 40, Price: decimal.NewFromInt(5)})
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "200", res.Gross)
		testutil.AssertDecimal(t, "0.79", res.Fees)
		testutil.AssertDecimal(t, "199.21", res.Total)
		testutil.AssertDecimal(t, "697.73", res.Wallet)
		if res.Shares != 60 {
			t.Errorf("expected 60 shares left, got %d", res.Shares)
		}

		res, err = tr.Sell(TradeRequest{EquityID: e.ID, Shares: 60, Price: decimal.NewFromInt(5)})
		testutil.AssertNoError(t, err)
		if res.Shares != 0 || !res.Trade.IsResolved {
			t.Errorf("expected closed position, got shares=%d resolved=%v", res.Shares, res.Trade.IsResolved)
		}

		stash, err := tr.GetStash(e.ID)
		testutil.AssertNoError(t, err)
		if !stash.IsResolved {
			t.Error("expected stash to be resolved")
		}
	})

	t.Run("fees_above_proceeds", func(t *testing.T) {
		db, _, tr := newTestTrader(t)
		b := testutil.CreateTestBroker(t, db, "0", "2")
		e := testutil.CreateTestEquity(t, db, "BEL")
		testutil.AssertNoError(t, tr.AddBroker([]string{b.ID}, AddBrokerOptions{Wallet: decimal.NewFromInt(500)}))
		_, err := tr.Buy(TradeRequest{EquityID: e.ID, Shares: 100, Price: decimal.NewFromInt(5)})
		testutil.AssertNoError(t, err)

		_, err = tr.Sell(TradeRequest{EquityID: e.ID, Shares: 100, Price: decimal.NewFromInt(10)})
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		wallet, err := tr.GetWallet("")
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "0", wallet)
		stash, err := tr.GetStash(e.ID)
		testutil.AssertNoError(t, err)
		if stash.Shares != 100 {
			t.Errorf("expected 100 shares kept, got %d", stash.Shares)
		}
	})

	t.Run("insufficient_shares", func(t *testing.T) {
		tr, e := setup(t)

		_, err := tr.Sell(TradeRequest{EquityID: e.ID, Shares: 101, Price: decimal.NewFromInt(5)})
		testutil.AssertAppError(t, err, "INSUFFICIENT_SHARES")

		stash, err := tr.GetStash(e.ID)
		testutil.AssertNoError(t, err)
		if stash.Shares != 100 {
			t.Errorf("expected holding unchanged, got %d", stash.Shares)
		}
	})

	t.Run("no_holding", func(t *testing.T) {
		db, _, tr := newTestTrader(t)
		b := testutil.CreateTestBroker(t, db, "0.00295", "0.00395")
		e := testutil.CreateTestEquity(t, db, "PA")
		testutil.AssertNoError(t, tr.AddBroker([]string{b.ID}, AddBrokerOptions{}))

		_, err := tr.Sell(TradeRequest{EquityID: e.ID, Shares: 1, Price: decimal.NewFromInt(5)})
		testutil.AssertAppError(t, err, "INSUFFICIENT_SHARES")
	})

	t.Run("reopens_after_buy", func(t *testing.T) {
		tr, e := setup(t)
		_, err := tr.Sell(TradeRequest{EquityID: e.ID, Shares: 100, Price: decimal.NewFromInt(5)})
		testutil.AssertNoError(t, err)

		res, err := tr.Buy(TradeRequest{EquityID: e.ID, Shares: 10, Price: decimal.NewFromInt(5)})
		testutil.AssertNoError(t, err)
		if res.Shares != 10 || res.Trade.IsResolved {
			t.Errorf("expected reopened position, got %+v", res)
		}
	})
}

func TestConcurrentBuysNeverOverdraw(t *testing.T) {
	db, _, tr := newTestTrader(t)
	b := testutil.CreateTestBroker(t, db, "0", "0")
	e := testutil.CreateTestEquity(t, db, "JFC")
	testutil.AssertNoError(t, tr.AddBroker([]string{b.ID}, AddBrokerOptions{Wallet: decimal.NewFromInt(500)}))

	const buyers = 10
	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = tr.Buy(TradeRequest{EquityID: e.ID, Shares: 10, Price: decimal.NewFromInt(10)})
		}()
	}
	wg.Wait()

	filled := 0
	for _, err := range errs {
		if err == nil {
			filled++
			continue
		}
		testutil.AssertAppError(t, err, "NOT_ENOUGH_FUNDS")
	}
	if filled != 5 {
		t.Errorf("expected 5 filled buys, got %d", filled)
	}

	wallet, err := tr.GetWallet(b.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, "0", wallet)

	stash, err := tr.GetStash(e.ID)
	testutil.AssertNoError(t, err)
	if stash.Shares != 50 {
		t.Errorf("expected 50 shares, got %d", stash.Shares)
	}
}
