package services

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"stonksnote/internal/models"
	"stonksnote/internal/testutil"
)

func auditEntries(t *testing.T, svc AuditServicer, userID string) []models.AuditLog {
	t.Helper()
	var entries []models.AuditLog
	testutil.AssertNoError(t, svc.(*auditService).db.Where("user_id = ?", userID).Order("created_at, id").Find(&entries).Error)
	return entries
}

func decodeChanges(t *testing.T, entry models.AuditLog) map[string]any {
	t.Helper()
	var changes map[string]any
	if err := json.Unmarshal([]byte(entry.Changes), &changes); err != nil {
		t.Fatalf("changes are not JSON: %v", err)
	}
	return changes
}

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewAuditService(db)
	user := testutil.CreateTestUser(t, db)

	svc.Log(user.ID, models.AuditActionGroupChange, "group", "g-1", "127.0.0.1", map[string]any{"added": 2})
	svc.Log(user.ID, models.AuditActionRegister, "user", user.ID, "", nil)

	entries := auditEntries(t, svc, user.ID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if changes := decodeChanges(t, entries[0]); changes["added"] != float64(2) {
		t.Errorf("expected added 2, got %v", changes["added"])
	}
	if entries[1].Changes != "" {
		t.Errorf("expected empty changes, got %q", entries[1].Changes)
	}
}

func TestAuditLogTrade(t *testing.T) {
	db, user, tr := newTestTrader(t)
	svc := NewAuditService(db)
	b := testutil.CreateTestBroker(t, db, "0.00295", "0.00395")
	e := testutil.CreateTestEquity(t, db, "BDO")
	testutil.AssertNoError(t, tr.AddBroker([]string{b.ID}, AddBrokerOptions{Wallet: decimal.NewFromInt(1000)}))

	bought, err := tr.Buy(TradeRequest{EquityID: e.ID, Shares: 100, Price: decimal.NewFromInt(5)})
	testutil.AssertNoError(t, err)
	svc.LogTrade(user.ID, "10.0.0.1", NewTradeAudit(e.ID, bought))

	sold, err := tr.Sell(TradeRequest{EquityID: e.ID, Shares: 40, Price: decimal.NewFromInt(6)})
	testutil.AssertNoError(t, err)
	svc.LogTrade(user.ID, "10.0.0.1", NewTradeAudit(e.ID, sold))

	entries := auditEntries(t, svc, user.ID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	buy := entries[0]
	if buy.Action != models.AuditActionBuy || buy.ResourceType != "trade" || buy.ResourceID != bought.Trade.ID {
		t.Errorf("unexpected buy entry %+v", buy)
	}
	changes := decodeChanges(t, buy)
	if changes["equity_id"] != e.ID || changes["broker_id"] != b.ID {
		t.Errorf("expected equity and broker ids in changes, got %v", changes)
	}
	if changes["shares"] != float64(100) || changes["price"] != "5" || changes["total"] != bought.Total.String() {
		t.Errorf("unexpected trade figures %v", changes)
	}
	if changes["wallet"] != bought.Wallet.String() || changes["currency"] != bought.Currency {
		t.Errorf("expected wallet and currency after the trade, got %v", changes)
	}

	if entries[1].Action != models.AuditActionSell || entries[1].ResourceID != sold.Trade.ID {
		t.Errorf("unexpected sell entry %+v", entries[1])
	}
}

func TestAuditLogMark(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewAuditService(db)
	user := testutil.CreateTestUser(t, db)
	title := "0192f0a4-0000-7000-8000-00000000000a"

	svc.LogMark(user.ID, models.AuditActionMarkAdd, "", MarkAudit{MarkID: "m-1", EquityID: "e-1", Ticker: "ALI", TitleID: &title})
	svc.LogMark(user.ID, models.AuditActionMarkRemove, "", MarkAudit{EquityID: "e-1", Ticker: "ALI", Removed: 1})
	svc.LogMark(user.ID, models.AuditActionMarkRemove, "", MarkAudit{Removed: 3})

	entries := auditEntries(t, svc, user.ID)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	tests := []struct {
		resourceType, resourceID string
		key                      string
		want                     any
	}{
		{"mark", "m-1", "title_id", title},
		{"equity", "e-1", "removed", float64(1)},
		{"mark", "", "removed", float64(3)},
	}
	for i, tt := range tests {
		entry := entries[i]
		if entry.ResourceType != tt.resourceType || entry.ResourceID != tt.resourceID {
			t.Errorf("entry %d: expected %s/%s, got %s/%s", i, tt.resourceType, tt.resourceID, entry.ResourceType, entry.ResourceID)
		}
		if got := decodeChanges(t, entry)[tt.key]; got != tt.want {
			t.Errorf("entry %d: expected %s=%v, got %v", i, tt.key, tt.want, got)
		}
	}
}
