package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/models"
	"stonksnote/internal/services"
)

// TraderHandler exposes a user's trading session: brokers, wallets,
// holdings, buy/sell and the watchlist.
type TraderHandler struct {
	traders      services.TraderProvider
	catalog      services.CatalogServicer
	auditService services.AuditServicer
}

// NewTraderHandler creates a new TraderHandler.
func NewTraderHandler(traders services.TraderProvider, catalog services.CatalogServicer, auditService services.AuditServicer) *TraderHandler {
	return &TraderHandler{traders: traders, catalog: catalog, auditService: auditService}
}

// AddBrokerRequest assigns catalog brokers to the user. Wallet and
// IsPrimary only apply when a single new broker is added.
type AddBrokerRequest struct {
	BrokerIDs []string        `json:"broker_ids" binding:"required,min=1,max=50,dive,uuid"`
	Wallet    decimal.Decimal `json:"wallet" swaggertype:"string"`
	IsPrimary bool            `json:"is_primary"`
}

// WalletRequest moves cash in or out of a broker wallet. An empty
// BrokerID uses the primary broker.
type WalletRequest struct {
	Amount   decimal.Decimal `json:"amount" swaggertype:"string"`
	BrokerID string          `json:"broker_id" binding:"omitempty,uuid"`
}

// WalletResponse is the balance after a wallet operation.
type WalletResponse struct {
	Wallet   decimal.Decimal `json:"wallet" swaggertype:"string"`
	BrokerID string          `json:"broker_id,omitempty"`
}

// AddStashRequest opens an empty holding.
type AddStashRequest struct {
	EquityID string `json:"equity_id" binding:"required,uuid"`
}

// ExecuteTradeRequest describes a buy or a sell. The equity is given by id
// or by ticker symbol.
type ExecuteTradeRequest struct {
	EquityID string          `json:"equity_id" binding:"omitempty,uuid"`
	Symbol   string          `json:"symbol" binding:"omitempty,ticker"`
	Shares   int64           `json:"shares" binding:"required,gt=0"`
	Price    decimal.Decimal `json:"price" swaggertype:"string"`
	BrokerID string          `json:"broker_id" binding:"omitempty,uuid"`
	Currency string          `json:"currency" binding:"omitempty,iso4217"`
	Note     string          `json:"note" binding:"max=255"`
}

// MarkRequest names an equity to mark or unmark by ticker.
type MarkRequest struct {
	Symbol  string     `json:"symbol" binding:"required,ticker"`
	Expires *time.Time `json:"expires"`
	TitleID *string    `json:"title_id" binding:"omitempty,uuid"`
}

func (h *TraderHandler) session(c *gin.Context) (services.TraderServicer, string, bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return nil, "", false
	}
	trader, err := h.traders.Trader(userID)
	if err != nil {
		respondWithError(c, err)
		return nil, "", false
	}
	return trader, userID, true
}

// GetBrokers lists the user's brokers
// @Summary     List my brokers
// @Description List the brokers assigned to the authenticated user with wallet balances
// @Tags        trader
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  services.UserBrokerView "Assigned brokers"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Permission denied"
// @Router      /trades/brokers [get]
func (h *TraderHandler) GetBrokers(c *gin.Context) {
	trader, _, ok := h.session(c)
	if !ok {
		return
	}
	brokers, err := trader.GetUserBrokers()
	if err != nil {
		respondWithError(c, err)
		return
	}
	primary, err := trader.GetPrimary()
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brokers": brokers, "primary": primary})
}

// AddBrokers assigns brokers to the user
// @Summary     Add brokers
// @Description Assign catalog brokers to the authenticated user. Already assigned brokers are left untouched.
// @Tags        trader
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body AddBrokerRequest true "Brokers to add"
// @Success     200 {array}  services.UserBrokerView "Assigned brokers"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Broker not found"
// @Router      /trades/brokers [post]
func (h *TraderHandler) AddBrokers(c *gin.Context) {
	trader, userID, ok := h.session(c)
	if !ok {
		return
	}
	var req AddBrokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	opts := services.AddBrokerOptions{Wallet: req.Wallet, IsPrimary: req.IsPrimary}
	if err := trader.AddBroker(req.BrokerIDs, opts); err != nil {
		respondWithError(c, err)
		return
	}
	brokers, err := trader.GetUserBrokers()
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionBrokerAttach, "user_broker", "", c.ClientIP(),
		map[string]any{"broker_ids": req.BrokerIDs, "is_primary": req.IsPrimary})

	c.JSON(http.StatusOK, gin.H{"brokers": brokers})
}

// RemoveBroker unassigns a broker
// @Summary     Remove a broker
// @Description Remove a broker assignment. Removing an unassigned broker is a no-op.
// @Tags        trader
// @Security    BearerAuth
// @Param       id path string true "Broker ID"
// @Success     204 "Removed"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /trades/brokers/{id} [delete]
func (h *TraderHandler) RemoveBroker(c *gin.Context) {
	brokerID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	trader, userID, ok := h.session(c)
	if !ok {
		return
	}
	if err := trader.RemoveBroker([]string{brokerID}); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionBrokerDetach, "broker", brokerID, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}

// SetPrimary makes a broker the user's primary
// @Summary     Set primary broker
// @Description Make the broker the user's primary broker and clear any previous primary
// @Tags        trader
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Broker ID"
// @Success     200 {object} services.UserBrokerView "New primary"
// @Failure     404 {object} ErrorResponse "Broker not assigned"
// @Router      /trades/brokers/{id}/primary [put]
func (h *TraderHandler) SetPrimary(c *gin.Context) {
	brokerID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	trader, userID, ok := h.session(c)
	if !ok {
		return
	}
	if err := trader.SetPrimary(brokerID); err != nil {
		respondWithError(c, err)
		return
	}
	view, err := trader.FindUserBroker(brokerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionBrokerPrimary, "broker", brokerID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"primary": view})
}

// UnsetPrimary clears the primary flag
// @Summary     Unset primary broker
// @Tags        trader
// @Security    BearerAuth
// @Success     204 "Cleared"
// @Router      /trades/brokers/primary [delete]
func (h *TraderHandler) UnsetPrimary(c *gin.Context) {
	trader, userID, ok := h.session(c)
	if !ok {
		return
	}
	if err := trader.UnsetPrimary(); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditActionBrokerPrimary, "broker", "", c.ClientIP(),
		map[string]any{"primary": nil})

	c.Status(http.StatusNoContent)
}

// GetWallet returns a wallet balance
// @Summary     Get wallet
// @Description Get the wallet balance of the given broker, or of the primary broker
// @Tags        trader
// @Produce     json
// @Security    BearerAuth
// @Param       broker_id query string false "Broker ID"
// @Success     200 {object} WalletResponse "Balance"
// @Failure     422 {object} ErrorResponse "No brokers"
// @Router      /trades/wallet [get]
func (h *TraderHandler) GetWallet(c *gin.Context) {
	trader, _, ok := h.session(c)
	if !ok {
		return
	}
	brokerID := c.Query("broker_id")
	wallet, err := trader.GetWallet(brokerID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, WalletResponse{Wallet: wallet, BrokerID: brokerID})
}

// Deposit adds cash to a wallet
// @Summary     Deposit
// @Tags        trader
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body WalletRequest true "Amount and broker"
// @Success     200 {object} WalletResponse "New balance"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     422 {object} ErrorResponse "No brokers"
// @Router      /trades/wallet/deposit [post]
func (h *TraderHandler) Deposit(c *gin.Context) {
	h.moveWallet(c, models.AuditActionWalletDeposit, services.TraderServicer.Deposit)
}

// Withdraw takes cash out of a wallet
// @Summary     Withdraw
// @Description Withdraw from a wallet. The balance never drops below zero.
// @Tags        trader
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body WalletRequest true "Amount and broker"
// @Success     200 {object} WalletResponse "New balance"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     422 {object} ErrorResponse "No brokers"
// @Router      /trades/wallet/withdraw [post]
func (h *TraderHandler) Withdraw(c *gin.Context) {
	h.moveWallet(c, models.AuditActionWalletWithdraw, services.TraderServicer.Withdraw)
}

func (h *TraderHandler) moveWallet(c *gin.Context, action string,
	move func(services.TraderServicer, decimal.Decimal, string) (decimal.Decimal, error)) {
	trader, userID, ok := h.session(c)
	if !ok {
		return
	}
	var req WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	wallet, err := move(trader, req.Amount, req.BrokerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, action, "user_broker", req.BrokerID, c.ClientIP(),
		map[string]any{"amount": req.Amount.String(), "wallet": wallet.String()})

	c.JSON(http.StatusOK, WalletResponse{Wallet: wallet, BrokerID: req.BrokerID})
}

// GetStashes lists the user's holdings
// @Summary     List holdings
// @Tags        trader
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} services.StashView "Holdings"
// @Router      /trades/stash [get]
func (h *TraderHandler) GetStashes(c *gin.Context) {
	trader, _, ok := h.session(c)
	if !ok {
		return
	}
	stashes, err := trader.GetStashes()
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stashes": stashes})
}

// GetStash returns one holding
// @Summary     Get holding
// @Tags        trader
// @Produce     json
// @Security    BearerAuth
// @Param       equity_id path string true "Equity ID"
// @Success     200 {object} services.StashView "Holding"
// @Failure     404 {object} ErrorResponse "Holding not found"
// @Router      /trades/stash/{equity_id} [get]
func (h *TraderHandler) GetStash(c *gin.Context) {
	equityID, err := parsePathID(c, "equity_id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	trader, _, ok := h.session(c)
	if !ok {
		return
	}
	stash, err := trader.GetStash(equityID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stash": stash})
}

// AddStash opens an empty holding
// @Summary     Add holding
// @Description Open an empty holding for an equity. Unknown equities are ignored.
// @Tags        trader
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body AddStashRequest true "Equity"
// @Success     200 {object} models.Stash "Holding"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /trades/stash [post]
func (h *TraderHandler) AddStash(c *gin.Context) {
	trader, _, ok := h.session(c)
	if !ok {
		return
	}
	var req AddStashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	stash, err := trader.AddStash(req.EquityID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stash": stash})
}

// Buy executes a purchase
// @Summary     Buy shares
// @Description Buy shares through the given broker, or the primary broker. The wallet must cover the total including fees.
// @Tags        trader
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ExecuteTradeRequest true "Trade"
// @Success     201 {object} services.TradeResult "Executed trade"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Equity or broker not found"
// @Failure     422 {object} ErrorResponse "No brokers or not enough funds"
// @Router      /trades/buy [post]
func (h *TraderHandler) Buy(c *gin.Context) {
	h.execute(c, services.TraderServicer.Buy)
}

// Sell executes a sale
// @Summary     Sell shares
// @Description Sell shares from a holding through the given broker, or the primary broker.
// @Tags        trader
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ExecuteTradeRequest true "Trade"
// @Success     201 {object} services.TradeResult "Executed trade"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Equity or broker not found"
// @Failure     422 {object} ErrorResponse "No brokers or insufficient shares"
// @Router      /trades/sell [post]
func (h *TraderHandler) Sell(c *gin.Context) {
	h.execute(c, services.TraderServicer.Sell)
}

func (h *TraderHandler) execute(c *gin.Context,
	run func(services.TraderServicer, services.TradeRequest) (*services.TradeResult, error)) {
	trader, userID, ok := h.session(c)
	if !ok {
		return
	}
	var req ExecuteTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	equityID := req.EquityID
	if equityID == "" {
		if req.Symbol == "" {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "equity_id or symbol is required"))
			return
		}
		equity, err := h.catalog.FindEquityByTicker(req.Symbol)
		if err != nil {
			respondWithError(c, err)
			return
		}
		equityID = equity.ID
	}

	result, err := run(trader, services.TradeRequest{
		EquityID: equityID,
		Shares:   req.Shares,
		Price:    req.Price,
		BrokerID: req.BrokerID,
		Currency: req.Currency,
		Note:     req.Note,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.LogTrade(userID, c.ClientIP(), services.NewTradeAudit(equityID, result))

	c.JSON(http.StatusCreated, result)
}

// GetMarks lists the watchlist
// @Summary     List marks
// @Tags        marks
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} models.Mark "Active marks"
// @Router      /trades/marks [get]
func (h *TraderHandler) GetMarks(c *gin.Context) {
	trader, _, ok := h.session(c)
	if !ok {
		return
	}
	marks, err := trader.GetMarks()
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marks": marks})
}

// AddMark watches an equity by ticker
// @Summary     Mark an equity
// @Description Add the equity to the watchlist. Marking an already marked equity changes nothing.
// @Tags        marks
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body MarkRequest true "Symbol and optional expiry"
// @Success     201 {object} models.Mark "Mark created"
// @Success     200 {object} map[string]interface{} "Already marked"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Equity not found"
// @Router      /trades/marks/add [post]
func (h *TraderHandler) AddMark(c *gin.Context) {
	trader, userID, ok := h.session(c)
	if !ok {
		return
	}
	var req MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	equity, err := h.catalog.FindEquityByTicker(req.Symbol)
	if err != nil {
		respondWithError(c, err)
		return
	}

	created, err := trader.AddMark([]string{equity.ID}, services.MarkOptions{Expires: req.Expires, TitleID: req.TitleID})
	if err != nil {
		respondWithError(c, err)
		return
	}
	if len(created) == 0 {
		c.JSON(http.StatusOK, gin.H{"marked": true, "created": false, "equity_id": equity.ID})
		return
	}

	mark := created[0]
	mark.Equity = equity
	h.auditService.LogMark(userID, models.AuditActionMarkAdd, c.ClientIP(), services.MarkAudit{
		MarkID:   mark.ID,
		EquityID: equity.ID,
		Ticker:   equity.Ticker,
		TitleID:  req.TitleID,
		Expires:  req.Expires,
	})

	c.JSON(http.StatusCreated, gin.H{"mark": mark.ToMap("author_id", "deleted_at")})
}

// RemoveMark stops watching an equity
// @Summary     Unmark an equity
// @Tags        marks
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body MarkRequest true "Symbol"
// @Success     200 {object} map[string]interface{} "Number of marks removed"
// @Failure     404 {object} ErrorResponse "Equity not found"
// @Router      /trades/marks/remove [post]
func (h *TraderHandler) RemoveMark(c *gin.Context) {
	trader, userID, ok := h.session(c)
	if !ok {
		return
	}
	var req MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	equity, err := h.catalog.FindEquityByTicker(req.Symbol)
	if err != nil {
		respondWithError(c, err)
		return
	}

	removed, err := trader.RemoveMark([]string{equity.ID})
	if err != nil {
		respondWithError(c, err)
		return
	}
	if removed > 0 {
		h.auditService.LogMark(userID, models.AuditActionMarkRemove, c.ClientIP(),
			services.MarkAudit{EquityID: equity.ID, Ticker: equity.Ticker, Removed: removed})
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// ClearMarks empties the watchlist
// @Summary     Clear marks
// @Tags        marks
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]interface{} "Number of marks removed"
// @Router      /trades/marks/clear [post]
func (h *TraderHandler) ClearMarks(c *gin.Context) {
	trader, userID, ok := h.session(c)
	if !ok {
		return
	}
	removed, err := trader.ClearMarks()
	if err != nil {
		respondWithError(c, err)
		return
	}
	if removed > 0 {
		h.auditService.LogMark(userID, models.AuditActionMarkRemove, c.ClientIP(),
			services.MarkAudit{Removed: removed})
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
