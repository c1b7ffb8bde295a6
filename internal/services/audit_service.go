package services

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stonksnote/internal/logger"
	"stonksnote/internal/models"
)

// TradeAudit is the change set stored with a trade.buy or trade.sell entry.
type TradeAudit struct {
	TradeID  string             `json:"-"`
	Action   models.TradeAction `json:"-"`
	EquityID string             `json:"equity_id"`
	BrokerID string             `json:"broker_id"`
	Shares   int64              `json:"shares"`
	Price    decimal.Decimal    `json:"price"`
	Gross    decimal.Decimal    `json:"gross"`
	Fees     decimal.Decimal    `json:"fees"`
	Total    decimal.Decimal    `json:"total"`
	Wallet   decimal.Decimal    `json:"wallet"`
	Currency string             `json:"currency"`
}

// NewTradeAudit captures an executed trade. result.Trade must be set.
func NewTradeAudit(equityID string, result *TradeResult) TradeAudit {
	return TradeAudit{
		TradeID:  result.Trade.ID,
		Action:   result.Trade.Action,
		EquityID: equityID,
		BrokerID: result.Trade.BrokerID,
		Shares:   result.Trade.Shares,
		Price:    result.Trade.Price,
		Gross:    result.Gross,
		Fees:     result.Fees,
		Total:    result.Total,
		Wallet:   result.Wallet,
		Currency: result.Currency,
	}
}

// AuditAction maps the trade side to its audit action.
func (a TradeAudit) AuditAction() string {
	if a.Action == models.TradeSell {
		return models.AuditActionSell
	}
	return models.AuditActionBuy
}

// MarkAudit is the change set stored with mark.add and mark.remove entries.
// MarkID is set when a single mark was created; a clear carries neither id.
type MarkAudit struct {
	MarkID   string     `json:"-"`
	EquityID string     `json:"equity_id,omitempty"`
	Ticker   string     `json:"ticker,omitempty"`
	TitleID  *string    `json:"title_id,omitempty"`
	Expires  *time.Time `json:"expires,omitempty"`
	Removed  int        `json:"removed,omitempty"`
}

func (a MarkAudit) resource() (string, string) {
	switch {
	case a.MarkID != "":
		return "mark", a.MarkID
	case a.EquityID != "":
		return "equity", a.EquityID
	default:
		return "mark", ""
	}
}

// auditService writes the audit trail. Writes are best-effort: failures are
// logged and never reach the caller.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an untyped event, used for account and group changes.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	var payload any
	if changes != nil {
		payload = changes
	}
	s.record(models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
	}, payload)
}

// LogTrade records an executed buy or sell against its trade row.
func (s *auditService) LogTrade(userID, ipAddress string, trade TradeAudit) {
	s.record(models.AuditLog{
		UserID:       userID,
		Action:       trade.AuditAction(),
		ResourceType: "trade",
		ResourceID:   trade.TradeID,
		IPAddress:    ipAddress,
	}, trade)
}

// LogMark records a watchlist change.
func (s *auditService) LogMark(userID, action, ipAddress string, mark MarkAudit) {
	resourceType, resourceID := mark.resource()
	s.record(models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
	}, mark)
}

func (s *auditService) record(entry models.AuditLog, changes any) {
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit changes", "error", err, "action", entry.Action)
			entry.Changes = "{}"
		} else {
			entry.Changes = string(data)
		}
	}

	if err := s.db.Create(&entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"user_id", entry.UserID,
			"action", entry.Action,
			"resource_id", entry.ResourceID,
		)
	}
}
