package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/models"
	"stonksnote/internal/uuid"
)

// StashView is a holding joined with the equity's display fields.
type StashView struct {
	ID         string `json:"id"`
	EquityID   string `json:"equity_id"`
	Ticker     string `json:"ticker"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Status     string `json:"status"`
	Shares     int64  `json:"shares"`
	IsResolved bool   `json:"is_resolved"`
}

func stashView(s *models.Stash) StashView {
	v := StashView{
		ID:         s.ID,
		EquityID:   s.EquityID,
		Shares:     s.Shares,
		IsResolved: s.IsResolved,
	}
	if e := s.Equity; e != nil {
		v.Ticker = e.Ticker
		v.Name = e.Name
		v.Category = e.Category
		v.Status = e.Status
	}
	return v
}

// GetStash returns the user's holding in equityID.
func (t *Trader) GetStash(equityID string) (*StashView, error) {
	if !uuid.IsValid(equityID) {
		return nil, apperrors.ErrStashNotFound
	}
	var stash models.Stash
	if err := t.db.Preload("Equity").
		Where("user_id = ? AND equity_id = ?", t.UserID(), equityID).
		First(&stash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrStashNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	v := stashView(&stash)
	return &v, nil
}

// HasStash reports whether the user has a holding row for equityID.
func (t *Trader) HasStash(equityID string) (bool, error) {
	if !uuid.IsValid(equityID) {
		return false, nil
	}
	var count int64
	if err := t.db.Model(&models.Stash{}).
		Where("user_id = ? AND equity_id = ?", t.UserID(), equityID).
		Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return count > 0, nil
}

// AddStash opens an empty holding for equityID. An unknown or malformed
// equity id returns nil without an error.
func (t *Trader) AddStash(equityID string) (*models.Stash, error) {
	if !uuid.IsValid(equityID) {
		return nil, nil
	}
	var stash *models.Stash
	err := t.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Equity{}).Where("id = ?", equityID).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		if count == 0 {
			return nil
		}
		var err error
		stash, err = t.fetchOrCreateStash(tx, equityID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stash, nil
}

// GetStashes lists all of the user's holdings, open positions first.
func (t *Trader) GetStashes() ([]StashView, error) {
	var rows []models.Stash
	if err := t.db.Preload("Equity").
		Where("user_id = ?", t.UserID()).
		Order("is_resolved").Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	views := make([]StashView, 0, len(rows))
	for i := range rows {
		views = append(views, stashView(&rows[i]))
	}
	return views, nil
}

func (t *Trader) findStash(tx *gorm.DB, equityID string, lock bool) (*models.Stash, error) {
	db := tx
	if lock {
		db = forUpdate(tx)
	}
	var stash models.Stash
	if err := db.Where("user_id = ? AND equity_id = ?", t.UserID(), equityID).First(&stash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return &stash, nil
}

func (t *Trader) fetchOrCreateStash(tx *gorm.DB, equityID string, lock bool) (*models.Stash, error) {
	stash, err := t.findStash(tx, equityID, lock)
	if err != nil || stash != nil {
		return stash, err
	}
	stash = &models.Stash{UserID: t.UserID(), EquityID: equityID}
	if err := tx.Omit("Equity").Create(stash).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return stash, nil
}

// incrStash adds shares to the holding and reopens it.
func incrStash(tx *gorm.DB, stash *models.Stash, shares int64) error {
	return setStashShares(tx, stash, stash.Shares+shares)
}

// decrStash removes shares from the holding. The caller checks that the
// holding covers shares.
func decrStash(tx *gorm.DB, stash *models.Stash, shares int64) error {
	return setStashShares(tx, stash, stash.Shares-shares)
}

func setStashShares(tx *gorm.DB, stash *models.Stash, shares int64) error {
	resolved := shares == 0
	if err := tx.Model(&models.Stash{}).Where("id = ?", stash.ID).Updates(map[string]any{
		"shares":      shares,
		"is_resolved": resolved,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	stash.Shares = shares
	stash.IsResolved = resolved
	return nil
}
