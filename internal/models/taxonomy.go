package models

import "gorm.io/gorm"

// Taxonomy tiers.
const (
	TierExchange  = "exchange"
	TierMarkTitle = "mark_title"
	TierTradeTag  = "trade_tag"
)

// Taxonomy is a tiered label (exchanges, mark titles, trade tags).
type Taxonomy struct {
	Base
	Name        string  `gorm:"size:191;not null;uniqueIndex:idx_taxonomy_name_tier" json:"name"`
	Tier        string  `gorm:"size:32;not null;uniqueIndex:idx_taxonomy_name_tier" json:"tier"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Sort        int     `gorm:"default:100" json:"sort"`
	IsGlobal    bool    `json:"is_global"`
	AuthorID    *string `gorm:"type:uuid" json:"author_id,omitempty"`
}

func (Taxonomy) TableName() string { return "taxonomies" }

// SoftDelete hides the label.
func (t *Taxonomy) SoftDelete(tx *gorm.DB) error {
	return tx.Delete(t).Error
}

// ToMap exports the label.
func (t *Taxonomy) ToMap(exclude ...string) map[string]any {
	return exportMap(t, exclude...)
}
