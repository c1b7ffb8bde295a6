package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Broker is a brokerage firm from the catalog with its fee schedule.
// BuyFees and SellFees are fractional rates applied to the gross amount.
type Broker struct {
	Base
	Name     string          `gorm:"size:191;not null" json:"name"`
	Short    string          `gorm:"size:50" json:"short"`
	BrokerNo int             `gorm:"index" json:"brokerno"`
	Rating   decimal.Decimal `gorm:"type:numeric(3,1);not null;default:0" json:"rating"`
	Email    string          `json:"email"`
	URL      string          `json:"url"`
	Country  string          `gorm:"size:2" json:"country"`
	Logo     string          `json:"logo"`
	BuyFees  decimal.Decimal `gorm:"type:numeric(7,5);not null;default:0" json:"buyfees"`
	SellFees decimal.Decimal `gorm:"type:numeric(7,5);not null;default:0" json:"sellfees"`
	Currency string          `gorm:"size:3;not null" json:"currency"`
	IsOnline bool            `json:"is_online"`
	IsActive bool            `gorm:"default:true" json:"is_active"`
	Meta     JSONMap         `gorm:"type:text" json:"meta,omitempty"`
	AuthorID *string         `gorm:"type:uuid" json:"author_id,omitempty"`
}

// SoftDelete hides the broker from the catalog.
func (b *Broker) SoftDelete(tx *gorm.DB) error {
	return tx.Delete(b).Error
}

// ToMap exports the broker.
func (b *Broker) ToMap(exclude ...string) map[string]any {
	return exportMap(b, exclude...)
}

// UserBroker statuses.
const (
	UserBrokerActive   = "active"
	UserBrokerInactive = "inactive"
)

// UserBroker joins a user to a broker and carries the cash wallet held there.
// At most one row per user has IsPrimary set.
type UserBroker struct {
	Base
	UserID    string          `gorm:"type:uuid;not null;uniqueIndex:idx_user_broker" json:"user_id"`
	BrokerID  string          `gorm:"type:uuid;not null;uniqueIndex:idx_user_broker" json:"broker_id"`
	Wallet    decimal.Decimal `gorm:"type:numeric(13,2);not null;default:0" json:"wallet"`
	Traded    decimal.Decimal `gorm:"type:numeric(13,2);not null;default:0" json:"traded"`
	Status    string          `gorm:"size:20;not null;default:active" json:"status"`
	IsPrimary bool            `gorm:"not null;default:false;index" json:"is_primary"`
	Meta      JSONMap         `gorm:"type:text" json:"meta,omitempty"`
	Broker    *Broker         `gorm:"foreignKey:BrokerID" json:"broker,omitempty"`
}

// Remove deletes the assignment row so the pair can be assigned again.
func (ub *UserBroker) Remove(tx *gorm.DB) error {
	return tx.Unscoped().Delete(ub).Error
}

// ToMap exports the assignment.
func (ub *UserBroker) ToMap(exclude ...string) map[string]any {
	return exportMap(ub, exclude...)
}
