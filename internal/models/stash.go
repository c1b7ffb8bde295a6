package models

import "gorm.io/gorm"

// Stash is a user's share holding in one equity. It is created on the
// first buy and kept after the position closes; IsResolved marks a
// position that went back to zero shares.
type Stash struct {
	Base
	UserID     string  `gorm:"type:uuid;not null;uniqueIndex:idx_user_equity" json:"user_id"`
	EquityID   string  `gorm:"type:uuid;not null;uniqueIndex:idx_user_equity" json:"equity_id"`
	Shares     int64   `gorm:"not null;default:0" json:"shares"`
	IsResolved bool    `gorm:"not null;default:false" json:"is_resolved"`
	Meta       JSONMap `gorm:"type:text" json:"meta,omitempty"`
	Equity     *Equity `gorm:"foreignKey:EquityID" json:"equity,omitempty"`
}

// SoftDelete hides the holding.
func (s *Stash) SoftDelete(tx *gorm.DB) error {
	return tx.Delete(s).Error
}

// ToMap exports the holding.
func (s *Stash) ToMap(exclude ...string) map[string]any {
	return exportMap(s, exclude...)
}
