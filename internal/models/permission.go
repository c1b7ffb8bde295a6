package models

import "gorm.io/gorm"

// Permission is a single capability code of the form "<resource>.<action>".
type Permission struct {
	Base
	Code string `gorm:"uniqueIndex;size:191;not null" json:"code"`
	Name string `gorm:"size:191" json:"name"`
}

// Group is a named bundle of permissions users are enrolled into.
type Group struct {
	Base
	Name        string       `gorm:"uniqueIndex;size:191;not null" json:"name"`
	Summary     string       `json:"summary"`
	Permissions []Permission `gorm:"many2many:group_permissions;" json:"permissions,omitempty"`
}

// PermissionCodes flattens the preloaded permissions of the group.
func (g *Group) PermissionCodes() []string {
	codes := make([]string, 0, len(g.Permissions))
	for _, p := range g.Permissions {
		codes = append(codes, p.Code)
	}
	return codes
}

// SoftDelete hides the group.
func (g *Group) SoftDelete(tx *gorm.DB) error {
	return tx.Delete(g).Error
}

// ToMap exports the group.
func (g *Group) ToMap(exclude ...string) map[string]any {
	return exportMap(g, exclude...)
}
