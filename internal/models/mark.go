package models

import (
	"time"

	"gorm.io/gorm"
)

// Mark is a watchlist entry. Unmarking deactivates the row and a later
// re-mark creates a new one, so the table keeps the watch history.
type Mark struct {
	Base
	EquityID string     `gorm:"type:uuid;not null;index:idx_mark_author_equity" json:"equity_id"`
	AuthorID string     `gorm:"type:uuid;not null;index:idx_mark_author_equity" json:"author_id"`
	TitleID  *string    `gorm:"type:uuid" json:"title_id,omitempty"`
	Expires  *time.Time `json:"expires,omitempty"`
	IsActive bool       `gorm:"not null;index" json:"is_active"`
	Meta     JSONMap    `gorm:"type:text" json:"meta,omitempty"`
	Equity   *Equity    `gorm:"foreignKey:EquityID" json:"equity,omitempty"`
	Title    *Taxonomy  `gorm:"foreignKey:TitleID" json:"title,omitempty"`
}

// SoftDelete deactivates the mark and stamps deleted_at.
func (m *Mark) SoftDelete(tx *gorm.DB) error {
	now := time.Now()
	err := tx.Model(&Mark{}).Where("id = ?", m.ID).Updates(map[string]any{
		"is_active":  false,
		"deleted_at": now,
	}).Error
	if err != nil {
		return err
	}
	m.IsActive = false
	m.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
	return nil
}

// ToMap exports the mark.
func (m *Mark) ToMap(exclude ...string) map[string]any {
	return exportMap(m, exclude...)
}
