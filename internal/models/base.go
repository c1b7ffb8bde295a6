package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"stonksnote/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// IsDeleted reports whether the row has been soft-deleted.
func (b *Base) IsDeleted() bool {
	return b.DeletedAt.Valid
}

// SoftDeletable is implemented by rows that are hidden rather than removed.
type SoftDeletable interface {
	SoftDelete(tx *gorm.DB) error
	IsDeleted() bool
}

// Removable is implemented by link rows that are deleted outright so the
// same pair can be created again.
type Removable interface {
	Remove(tx *gorm.DB) error
}

// Serializable is implemented by rows that can be exported as a flat map
// for API responses and audit payloads.
type Serializable interface {
	ToMap(exclude ...string) map[string]any
}

// exportMap renders v through its JSON tags and drops the excluded keys.
func exportMap(v any, exclude ...string) map[string]any {
	out := map[string]any{}
	data, err := json.Marshal(v)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out
	}
	for _, key := range exclude {
		delete(out, key)
	}
	return out
}

// JSONMap is a free-form metadata column stored as JSON text.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported meta type %T", src)
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// All returns every persisted model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Permission{},
		&Group{},
		&User{},
		&Taxonomy{},
		&Broker{},
		&Equity{},
		&UserBroker{},
		&Stash{},
		&Trade{},
		&Mark{},
		&AuditLog{},
	}
}
