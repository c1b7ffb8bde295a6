package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "stonksnote/internal/errors"
)

// TradeAction is the side of a trade.
type TradeAction int8

const (
	TradeBuy  TradeAction = 1
	TradeSell TradeAction = 2
)

// String returns "buy" or "sell".
func (a TradeAction) String() string {
	switch a {
	case TradeBuy:
		return "buy"
	case TradeSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Trade is an append-only record of one executed buy or sell.
type Trade struct {
	Base
	StashID      string          `gorm:"type:uuid;not null;index" json:"stash_id"`
	BrokerID     string          `gorm:"type:uuid;not null;index" json:"broker_id"`
	UserBrokerID string          `gorm:"type:uuid;not null" json:"userbroker_id"`
	AuthorID     string          `gorm:"type:uuid;not null;index" json:"author_id"`
	Action       TradeAction     `gorm:"not null" json:"action"`
	Price        decimal.Decimal `gorm:"type:numeric(16,4);not null" json:"price"`
	Shares       int64           `gorm:"not null" json:"shares"`
	Gross        decimal.Decimal `gorm:"type:numeric(16,4);not null" json:"gross"`
	Fees         decimal.Decimal `gorm:"type:numeric(16,4);not null" json:"fees"`
	Total        decimal.Decimal `gorm:"type:numeric(16,4);not null" json:"total"`
	Currency     string          `gorm:"size:3;not null" json:"currency"`
	Status       string          `gorm:"size:20;not null;default:executed" json:"status"`
	IsResolved   bool            `gorm:"not null;default:false" json:"is_resolved"`
	Note         string          `json:"note,omitempty"`
	Meta         JSONMap         `gorm:"type:text" json:"meta,omitempty"`
	Stash        *Stash          `gorm:"foreignKey:StashID" json:"stash,omitempty"`
	Broker       *Broker         `gorm:"foreignKey:BrokerID" json:"broker,omitempty"`
}

// BeforeUpdate refuses changes to a recorded trade.
func (t *Trade) BeforeUpdate(tx *gorm.DB) error {
	return apperrors.ErrTradeImmutable
}

// BeforeDelete refuses removal of a recorded trade.
func (t *Trade) BeforeDelete(tx *gorm.DB) error {
	return apperrors.ErrTradeImmutable
}

// SoftDelete always fails; trades are the audit trail.
func (t *Trade) SoftDelete(tx *gorm.DB) error {
	return apperrors.ErrTradeImmutable
}

// ToMap exports the trade with the action spelled out.
func (t *Trade) ToMap(exclude ...string) map[string]any {
	out := exportMap(t, exclude...)
	if _, ok := out["action"]; ok {
		out["action_name"] = t.Action.String()
	}
	return out
}
