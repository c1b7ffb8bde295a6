package models

import "gorm.io/gorm"

// Equity statuses.
const (
	EquityActive    = "active"
	EquitySuspended = "suspended"
	EquityDelisted  = "delisted"
)

// Equity is a listed instrument. Ticker is unique per exchange.
type Equity struct {
	Base
	Ticker     string    `gorm:"size:20;not null;uniqueIndex:idx_equity_ticker_exchange" json:"ticker"`
	Name       string    `gorm:"size:191" json:"name"`
	ExchangeID string    `gorm:"type:uuid;not null;uniqueIndex:idx_equity_ticker_exchange" json:"exchange_id"`
	Exchange   *Taxonomy `gorm:"foreignKey:ExchangeID" json:"exchange,omitempty"`
	Category   string    `gorm:"size:50" json:"category"`
	Status     string    `gorm:"size:20;not null;default:active" json:"status"`
	Meta       JSONMap   `gorm:"type:text" json:"meta,omitempty"`
}

// SoftDelete hides the equity from the catalog.
func (e *Equity) SoftDelete(tx *gorm.DB) error {
	return tx.Delete(e).Error
}

// ToMap exports the equity.
func (e *Equity) ToMap(exclude ...string) map[string]any {
	return exportMap(e, exclude...)
}
