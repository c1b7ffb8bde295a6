package services

import (
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"

	"stonksnote/internal/cache"
	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/logger"
	"stonksnote/internal/models"
)

// userAccess is the cached view of a user's groups and effective permissions.
type userAccess struct {
	Groups []string `json:"groups"`
	Perms  []string `json:"perms"`
}

func userCacheKey(userID string) string { return "user:" + userID }
func groupCacheKey(name string) string  { return "group:" + name }

// permissionService resolves groups and permissions through a read-through
// cache. Writers invalidate the keys they affect once their transaction commits.
type permissionService struct {
	db    *gorm.DB
	cache *cache.Store
}

// NewPermissionService creates a new PermissionServicer.
func NewPermissionService(db *gorm.DB, store *cache.Store) PermissionServicer {
	return &permissionService{db: db, cache: store}
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// HasPerm reports whether the user holds every one of codes.
func (s *permissionService) HasPerm(userID string, codes ...string) (bool, error) {
	access, err := s.access(userID)
	if err != nil {
		return false, err
	}
	held := make(map[string]struct{}, len(access.Perms))
	for _, p := range access.Perms {
		held[p] = struct{}{}
	}
	for _, code := range codes {
		if _, ok := held[code]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// GetPermissions returns the union of the user's direct and group permissions.
func (s *permissionService) GetPermissions(userID string) ([]string, error) {
	access, err := s.access(userID)
	if err != nil {
		return nil, err
	}
	return access.Perms, nil
}

// GetGroups returns the names of the user's groups.
func (s *permissionService) GetGroups(userID string) ([]string, error) {
	access, err := s.access(userID)
	if err != nil {
		return nil, err
	}
	return access.Groups, nil
}

func (s *permissionService) access(userID string) (*userAccess, error) {
	var cached userAccess
	found, err := s.cache.Get(userCacheKey(userID), &cached)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if found {
		return &cached, nil
	}

	var user models.User
	if err := s.db.Preload("Groups").Preload("Permissions").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}

	access := userAccess{}
	var perms []string
	for _, p := range user.Permissions {
		perms = append(perms, p.Code)
	}
	for _, g := range user.Groups {
		access.Groups = append(access.Groups, g.Name)
		codes, err := s.GroupPermissions(g.Name)
		if err != nil {
			return nil, err
		}
		perms = append(perms, codes...)
	}
	access.Groups = uniqueSorted(access.Groups)
	access.Perms = uniqueSorted(perms)

	if err := s.cache.Set(userCacheKey(userID), access, 0); err != nil {
		logger.Get().Warnw("failed to cache user access", "user_id", userID, "error", err)
	}
	return &access, nil
}

// GroupPermissions returns the permission codes of a group.
func (s *permissionService) GroupPermissions(name string) ([]string, error) {
	var codes []string
	found, err := s.cache.Get(groupCacheKey(name), &codes)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if found {
		return codes, nil
	}

	group, err := s.findGroup(s.db, "name = ?", name)
	if err != nil {
		return nil, err
	}
	codes = uniqueSorted(group.PermissionCodes())
	if err := s.cache.Set(groupCacheKey(name), codes, 0); err != nil {
		logger.Get().Warnw("failed to cache group permissions", "group", name, "error", err)
	}
	return codes, nil
}

func (s *permissionService) findGroup(db *gorm.DB, query string, arg string) (*models.Group, error) {
	var group models.Group
	if err := db.Preload("Permissions").Where(query, arg).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return &group, nil
}

func (s *permissionService) findUser(tx *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return &user, nil
}

func (s *permissionService) groupsByName(tx *gorm.DB, names []string) ([]models.Group, error) {
	names = uniqueSorted(names)
	var groups []models.Group
	if err := tx.Where("name IN ?", names).Find(&groups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if len(groups) != len(names) {
		return nil, apperrors.ErrGroupNotFound
	}
	return groups, nil
}

func (s *permissionService) permissionsByCode(tx *gorm.DB, codes []string) ([]models.Permission, error) {
	codes = uniqueSorted(codes)
	if len(codes) == 0 {
		return []models.Permission{}, nil
	}
	var perms []models.Permission
	if err := tx.Where("code IN ?", codes).Find(&perms).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if len(perms) != len(codes) {
		return nil, apperrors.ErrPermissionNotFound
	}
	return perms, nil
}

// invalidate drops cached entries after a committed write.
func (s *permissionService) invalidate(keys ...string) error {
	if err := s.cache.Delete(keys...); err != nil {
		return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return nil
}

// groupKeys lists the cache keys a change to group touches: the group
// itself under its current and any former names, plus every member.
func (s *permissionService) groupKeys(tx *gorm.DB, group *models.Group, names ...string) ([]string, error) {
	var userIDs []string
	if err := tx.Table("user_groups").Where("group_id = ?", group.ID).Pluck("user_id", &userIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	keys := []string{groupCacheKey(group.Name)}
	for _, n := range names {
		keys = append(keys, groupCacheKey(n))
	}
	for _, id := range userIDs {
		keys = append(keys, userCacheKey(id))
	}
	return keys, nil
}

// AddGroups enrolls the user into the named groups.
func (s *permissionService) AddGroups(userID string, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.findUser(tx, userID)
		if err != nil {
			return err
		}
		groups, err := s.groupsByName(tx, names)
		if err != nil {
			return err
		}
		if err := tx.Model(user).Association("Groups").Append(&groups); err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.invalidate(userCacheKey(userID))
}

// RemoveGroups withdraws the user from the named groups.
func (s *permissionService) RemoveGroups(userID string, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.findUser(tx, userID)
		if err != nil {
			return err
		}
		groups, err := s.groupsByName(tx, names)
		if err != nil {
			return err
		}
		if err := tx.Model(user).Association("Groups").Delete(&groups); err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.invalidate(userCacheKey(userID))
}

// AddPermissions grants permissions directly to the user.
func (s *permissionService) AddPermissions(userID string, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.findUser(tx, userID)
		if err != nil {
			return err
		}
		perms, err := s.permissionsByCode(tx, codes)
		if err != nil {
			return err
		}
		if err := tx.Model(user).Association("Permissions").Append(&perms); err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.invalidate(userCacheKey(userID))
}

// RemovePermissions revokes direct permissions. Permissions inherited from
// a group stay in effect.
func (s *permissionService) RemovePermissions(userID string, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.findUser(tx, userID)
		if err != nil {
			return err
		}
		perms, err := s.permissionsByCode(tx, codes)
		if err != nil {
			return err
		}
		if err := tx.Model(user).Association("Permissions").Delete(&perms); err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.invalidate(userCacheKey(userID))
}

// ListGroups returns every group with its permissions.
func (s *permissionService) ListGroups() ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.Preload("Permissions").Order("name").Find(&groups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return groups, nil
}

// CreateGroup adds a group holding the given permission codes.
func (s *permissionService) CreateGroup(name, summary string, codes []string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "group name is required")
	}

	var group models.Group
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Group{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		if count > 0 {
			return apperrors.ErrDuplicateGroup
		}
		perms, err := s.permissionsByCode(tx, codes)
		if err != nil {
			return err
		}
		group = models.Group{Name: name, Summary: summary}
		if err := tx.Omit("Permissions").Create(&group).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		if len(perms) > 0 {
			if err := tx.Model(&group).Association("Permissions").Append(&perms); err != nil {
				return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
			}
		}
		group.Permissions = perms
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(groupCacheKey(name)); err != nil {
		return nil, err
	}
	return &group, nil
}

// UpdateGroup renames a group, edits its summary, or replaces its
// permissions when in.Permissions is non-nil.
func (s *permissionService) UpdateGroup(id string, in GroupInput) (*models.Group, error) {
	var keys []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		group, err := s.findGroup(tx, "id = ?", id)
		if err != nil {
			return err
		}
		names := []string{group.Name}

		updates := map[string]any{}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "group name is required")
			}
			if name != group.Name {
				var count int64
				if err := tx.Model(&models.Group{}).Where("name = ?", name).Count(&count).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
				}
				if count > 0 {
					return apperrors.ErrDuplicateGroup
				}
				updates["name"] = name
				names = append(names, name)
			}
		}
		if in.Summary != nil {
			updates["summary"] = *in.Summary
		}
		if len(updates) > 0 {
			if err := tx.Model(group).Updates(updates).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
			}
		}
		if in.Permissions != nil {
			if err := s.replacePermissions(tx, group, in.Permissions); err != nil {
				return err
			}
		}
		keys, err = s.groupKeys(tx, group, names...)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(keys...); err != nil {
		return nil, err
	}
	return s.findGroup(s.db, "id = ?", id)
}

// DeleteGroup removes a group; its members lose the permissions it granted.
func (s *permissionService) DeleteGroup(name string) error {
	var keys []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		group, err := s.findGroup(tx, "name = ?", name)
		if err != nil {
			return err
		}
		if keys, err = s.groupKeys(tx, group); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_groups WHERE group_id = ?", group.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		if err := tx.Model(group).Association("Permissions").Clear(); err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		if err := tx.Unscoped().Delete(group).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.invalidate(keys...)
}

// SetGroupPermissions replaces the group's permission set.
func (s *permissionService) SetGroupPermissions(name string, codes []string) (*models.Group, error) {
	var keys []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		group, err := s.findGroup(tx, "name = ?", name)
		if err != nil {
			return err
		}
		if err := s.replacePermissions(tx, group, codes); err != nil {
			return err
		}
		keys, err = s.groupKeys(tx, group)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(keys...); err != nil {
		return nil, err
	}
	return s.findGroup(s.db, "name = ?", name)
}

func (s *permissionService) replacePermissions(tx *gorm.DB, group *models.Group, codes []string) error {
	perms, err := s.permissionsByCode(tx, codes)
	if err != nil {
		return err
	}
	assoc := tx.Model(group).Association("Permissions")
	if len(perms) == 0 {
		err = assoc.Clear()
	} else {
		err = assoc.Replace(&perms)
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return nil
}
