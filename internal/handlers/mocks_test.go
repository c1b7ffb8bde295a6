package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stonksnote/internal/models"
	"stonksnote/internal/pagination"
	"stonksnote/internal/services"
	"stonksnote/internal/validator"
)

const testUserID = "01928c5e-8e4e-7d2a-9f6b-3b1d2c4e5f60"

// --- mock services ---

type mockUserService struct {
	createUserFn            func(email, password, firstName, lastName, currency string) (*models.User, error)
	getUserByEmailFn        func(email string) (*models.User, error)
	getUserByIDFn           func(id string) (*models.User, error)
	attemptLoginFn          func(email, password string) (*models.User, error)
	storeRefreshTokenHashFn func(userID string, tokenHash string) error
	getRefreshTokenHashFn   func(userID string) (string, error)
	updateProfileFn         func(userID string, display, currency *string) (*models.User, error)
}

func (m *mockUserService) CreateUser(email, password, firstName, lastName, currency string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(email, password, firstName, lastName, currency)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByEmail(email string) (*models.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(email)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByID(id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{Base: models.Base{ID: id}}, nil
}

func (m *mockUserService) VerifyPassword(_ *models.User, _ string) bool { return true }

func (m *mockUserService) AttemptLogin(email, password string) (*models.User, error) {
	if m.attemptLoginFn != nil {
		return m.attemptLoginFn(email, password)
	}
	return &models.User{}, nil
}

func (m *mockUserService) StoreRefreshTokenHash(userID string, tokenHash string) error {
	if m.storeRefreshTokenHashFn != nil {
		return m.storeRefreshTokenHashFn(userID, tokenHash)
	}
	return nil
}

func (m *mockUserService) GetRefreshTokenHash(userID string) (string, error) {
	if m.getRefreshTokenHashFn != nil {
		return m.getRefreshTokenHashFn(userID)
	}
	return "", nil
}

func (m *mockUserService) UpdateProfile(userID string, display, currency *string) (*models.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(userID, display, currency)
	}
	return &models.User{Base: models.Base{ID: userID}}, nil
}

type auditCall struct {
	userID, action, resourceType, resourceID string
}

type mockAuditService struct {
	calls []auditCall
}

func (m *mockAuditService) Log(userID, action, resourceType, resourceID, _ string, _ map[string]any) {
	m.calls = append(m.calls, auditCall{userID, action, resourceType, resourceID})
}

func (m *mockAuditService) LogTrade(userID, _ string, trade services.TradeAudit) {
	m.calls = append(m.calls, auditCall{userID, trade.AuditAction(), "trade", trade.TradeID})
}

func (m *mockAuditService) LogMark(userID, action, _ string, mark services.MarkAudit) {
	m.calls = append(m.calls, auditCall{userID, action, "mark", mark.MarkID})
}

// mockTrader implements services.TraderServicer. Unset functions return
// zero values.
type mockTrader struct {
	addBrokerFn      func(ids []string, opts services.AddBrokerOptions) error
	removeBrokerFn   func(ids []string) error
	setPrimaryFn     func(id string) error
	getUserBrokersFn func() ([]services.UserBrokerView, error)
	findUserBrokerFn func(id string) (*services.UserBrokerView, error)
	depositFn        func(amount decimal.Decimal, brokerID string) (decimal.Decimal, error)
	withdrawFn       func(amount decimal.Decimal, brokerID string) (decimal.Decimal, error)
	getWalletFn      func(brokerID string) (decimal.Decimal, error)
	getStashFn       func(equityID string) (*services.StashView, error)
	addStashFn       func(equityID string) (*models.Stash, error)
	buyFn            func(req services.TradeRequest) (*services.TradeResult, error)
	sellFn           func(req services.TradeRequest) (*services.TradeResult, error)
	addMarkFn        func(ids []string, opts services.MarkOptions) ([]models.Mark, error)
	removeMarkFn     func(ids []string) (int, error)
	clearMarksFn     func() (int, error)
	getMarksFn       func() ([]models.Mark, error)
}

func (m *mockTrader) HasPrimary() (bool, error) { return false, nil }
func (m *mockTrader) HasBrokers() (bool, error) { return false, nil }

func (m *mockTrader) AddBroker(ids []string, opts services.AddBrokerOptions) error {
	if m.addBrokerFn != nil {
		return m.addBrokerFn(ids, opts)
	}
	return nil
}

func (m *mockTrader) RemoveBroker(ids []string) error {
	if m.removeBrokerFn != nil {
		return m.removeBrokerFn(ids)
	}
	return nil
}

func (m *mockTrader) SetPrimary(id string) error {
	if m.setPrimaryFn != nil {
		return m.setPrimaryFn(id)
	}
	return nil
}

func (m *mockTrader) UnsetPrimary() error { return nil }

func (m *mockTrader) GetUserBroker(_ string) (*models.UserBroker, error) {
	return &models.UserBroker{}, nil
}

func (m *mockTrader) GetUserBrokers() ([]services.UserBrokerView, error) {
	if m.getUserBrokersFn != nil {
		return m.getUserBrokersFn()
	}
	return []services.UserBrokerView{}, nil
}

func (m *mockTrader) FindUserBroker(id string) (*services.UserBrokerView, error) {
	if m.findUserBrokerFn != nil {
		return m.findUserBrokerFn(id)
	}
	return &services.UserBrokerView{BrokerID: id}, nil
}

func (m *mockTrader) GetPrimary() (*services.UserBrokerView, error) { return nil, nil }

func (m *mockTrader) Deposit(amount decimal.Decimal, brokerID string) (decimal.Decimal, error) {
	if m.depositFn != nil {
		return m.depositFn(amount, brokerID)
	}
	return amount, nil
}

func (m *mockTrader) Withdraw(amount decimal.Decimal, brokerID string) (decimal.Decimal, error) {
	if m.withdrawFn != nil {
		return m.withdrawFn(amount, brokerID)
	}
	return decimal.Zero, nil
}

func (m *mockTrader) GetWallet(brokerID string) (decimal.Decimal, error) {
	if m.getWalletFn != nil {
		return m.getWalletFn(brokerID)
	}
	return decimal.Zero, nil
}

func (m *mockTrader) ResetWallet(amount decimal.Decimal, _ string) (decimal.Decimal, error) {
	return amount, nil
}

func (m *mockTrader) GetStash(equityID string) (*services.StashView, error) {
	if m.getStashFn != nil {
		return m.getStashFn(equityID)
	}
	return &services.StashView{EquityID: equityID}, nil
}

func (m *mockTrader) HasStash(_ string) (bool, error) { return false, nil }

func (m *mockTrader) AddStash(equityID string) (*models.Stash, error) {
	if m.addStashFn != nil {
		return m.addStashFn(equityID)
	}
	return &models.Stash{EquityID: equityID}, nil
}

func (m *mockTrader) GetStashes() ([]services.StashView, error) { return []services.StashView{}, nil }

func (m *mockTrader) Buy(req services.TradeRequest) (*services.TradeResult, error) {
	if m.buyFn != nil {
		return m.buyFn(req)
	}
	return &services.TradeResult{Trade: &models.Trade{}}, nil
}

func (m *mockTrader) Sell(req services.TradeRequest) (*services.TradeResult, error) {
	if m.sellFn != nil {
		return m.sellFn(req)
	}
	return &services.TradeResult{Trade: &models.Trade{}}, nil
}

func (m *mockTrader) AddMark(ids []string, opts services.MarkOptions) ([]models.Mark, error) {
	if m.addMarkFn != nil {
		return m.addMarkFn(ids, opts)
	}
	return []models.Mark{}, nil
}

func (m *mockTrader) RemoveMark(ids []string) (int, error) {
	if m.removeMarkFn != nil {
		return m.removeMarkFn(ids)
	}
	return 0, nil
}

func (m *mockTrader) ClearMarks() (int, error) {
	if m.clearMarksFn != nil {
		return m.clearMarksFn()
	}
	return 0, nil
}

func (m *mockTrader) GetMarks() ([]models.Mark, error) {
	if m.getMarksFn != nil {
		return m.getMarksFn()
	}
	return []models.Mark{}, nil
}

type mockTraderProvider struct {
	trader *mockTrader
	err    error
}

func (p *mockTraderProvider) Trader(_ string) (services.TraderServicer, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.trader, nil
}

type mockCatalogService struct {
	listBrokersFn        func(page pagination.PageRequest) (*pagination.PageResponse[models.Broker], error)
	createBrokerFn       func(in services.BrokerInput) (*models.Broker, error)
	listEquitiesFn       func(page pagination.PageRequest, search string) (*pagination.PageResponse[models.Equity], error)
	findEquityByTickerFn func(ticker string) (*models.Equity, error)
	createEquityFn       func(in services.EquityInput) (*models.Equity, error)
}

func (m *mockCatalogService) ListBrokers(page pagination.PageRequest) (*pagination.PageResponse[models.Broker], error) {
	if m.listBrokersFn != nil {
		return m.listBrokersFn(page)
	}
	resp := pagination.NewPageResponse([]models.Broker{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockCatalogService) GetBroker(id string) (*models.Broker, error) {
	return &models.Broker{Base: models.Base{ID: id}}, nil
}

func (m *mockCatalogService) CreateBroker(in services.BrokerInput) (*models.Broker, error) {
	if m.createBrokerFn != nil {
		return m.createBrokerFn(in)
	}
	return &models.Broker{Name: in.Name}, nil
}

func (m *mockCatalogService) ListEquities(page pagination.PageRequest, search string) (*pagination.PageResponse[models.Equity], error) {
	if m.listEquitiesFn != nil {
		return m.listEquitiesFn(page, search)
	}
	resp := pagination.NewPageResponse([]models.Equity{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockCatalogService) GetEquity(id string) (*models.Equity, error) {
	return &models.Equity{Base: models.Base{ID: id}}, nil
}

func (m *mockCatalogService) FindEquityByTicker(ticker string) (*models.Equity, error) {
	if m.findEquityByTickerFn != nil {
		return m.findEquityByTickerFn(ticker)
	}
	return &models.Equity{Base: models.Base{ID: "01928c5e-0000-7000-8000-000000000001"}, Ticker: ticker}, nil
}

func (m *mockCatalogService) CreateEquity(in services.EquityInput) (*models.Equity, error) {
	if m.createEquityFn != nil {
		return m.createEquityFn(in)
	}
	return &models.Equity{Ticker: in.Ticker, Name: in.Name}, nil
}

func (m *mockCatalogService) EnsureTaxonomy(name, tier string) (*models.Taxonomy, error) {
	return &models.Taxonomy{Name: name, Tier: tier}, nil
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
