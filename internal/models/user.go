package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents the user model in the database
type User struct {
	Base
	Email               string       `gorm:"uniqueIndex;not null" json:"email"`
	Password            string       `gorm:"not null" json:"-"`
	FirstName           string       `json:"first_name"`
	LastName            string       `json:"last_name"`
	Display             string       `gorm:"size:50" json:"display"`
	Currency            string       `gorm:"size:3;not null;default:PHP" json:"currency"`
	IsActive            bool         `gorm:"default:true" json:"is_active"`
	RefreshTokenHash    string       `gorm:"size:64" json:"-"`
	FailedLoginAttempts int          `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time   `json:"-"`
	LastLoginAt         *time.Time   `json:"last_login_at,omitempty"`
	Groups              []Group      `gorm:"many2many:user_groups;" json:"groups,omitempty"`
	Permissions         []Permission `gorm:"many2many:user_permissions;" json:"permissions,omitempty"`
}

// GetID returns the user's id.
func (u *User) GetID() string { return u.ID }

// GetCurrency returns the user's default trading currency.
func (u *User) GetCurrency() string { return u.Currency }

// SoftDelete deactivates the account and hides the row.
func (u *User) SoftDelete(tx *gorm.DB) error {
	if err := tx.Model(u).Update("is_active", false).Error; err != nil {
		return err
	}
	return tx.Delete(u).Error
}

// ToMap exports the user without credentials.
func (u *User) ToMap(exclude ...string) map[string]any {
	return exportMap(u, exclude...)
}
