package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/models"
	"stonksnote/internal/uuid"
)

// MarkOptions are applied to every mark created by one AddMark call.
type MarkOptions struct {
	Expires *time.Time
	TitleID *string
}

// validIDs dedupes ids and drops the ones that are not UUIDs.
func validIDs(ids []string) []string {
	var out []string
	for _, id := range dedupe(ids) {
		if uuid.IsValid(id) {
			out = append(out, id)
		}
	}
	return out
}

// AddMark watches each existing equity that the user is not already
// watching. Unknown and already-marked equities are skipped. It returns
// the rows it created.
func (t *Trader) AddMark(equityIDs []string, opts MarkOptions) ([]models.Mark, error) {
	ids := validIDs(equityIDs)
	if len(ids) == 0 {
		return []models.Mark{}, nil
	}

	var created []models.Mark
	err := t.db.Transaction(func(tx *gorm.DB) error {
		if opts.TitleID != nil {
			if !uuid.IsValid(*opts.TitleID) {
				return apperrors.ErrTaxonomyNotFound
			}
			var title models.Taxonomy
			if err := tx.Where("id = ? AND tier = ?", *opts.TitleID, models.TierMarkTitle).First(&title).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.ErrTaxonomyNotFound
				}
				return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
			}
		}

		var existing []string
		if err := tx.Model(&models.Equity{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		var active []string
		if err := tx.Model(&models.Mark{}).
			Where("author_id = ? AND is_active = ? AND equity_id IN ?", t.UserID(), true, ids).
			Pluck("equity_id", &active).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}

		known := make(map[string]bool, len(existing))
		for _, id := range existing {
			known[id] = true
		}
		for _, id := range active {
			known[id] = false
		}

		for _, id := range ids {
			if !known[id] {
				continue
			}
			created = append(created, models.Mark{
				EquityID: id,
				AuthorID: t.UserID(),
				TitleID:  opts.TitleID,
				Expires:  opts.Expires,
				IsActive: true,
			})
		}
		if len(created) == 0 {
			return nil
		}
		if err := tx.Omit("Equity", "Title").CreateInBatches(&created, 100).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created == nil {
		created = []models.Mark{}
	}
	return created, nil
}

// RemoveMark deactivates the user's active marks on equityIDs and returns
// how many rows changed.
func (t *Trader) RemoveMark(equityIDs []string) (int, error) {
	ids := validIDs(equityIDs)
	if len(ids) == 0 {
		return 0, nil
	}
	return t.deactivateMarks(func(db *gorm.DB) *gorm.DB {
		return db.Where("equity_id IN ?", ids)
	})
}

// ClearMarks deactivates every active mark of the user.
func (t *Trader) ClearMarks() (int, error) {
	return t.deactivateMarks(func(db *gorm.DB) *gorm.DB { return db })
}

func (t *Trader) deactivateMarks(scope func(*gorm.DB) *gorm.DB) (int, error) {
	var count int
	err := t.db.Transaction(func(tx *gorm.DB) error {
		var marks []models.Mark
		if err := tx.Scopes(scope).
			Where("author_id = ? AND is_active = ?", t.UserID(), true).
			Find(&marks).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		for i := range marks {
			var d models.SoftDeletable = &marks[i]
			if err := d.SoftDelete(tx); err != nil {
				return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
			}
		}
		count = len(marks)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetMarks returns the user's active marks with their equities.
func (t *Trader) GetMarks() ([]models.Mark, error) {
	var marks []models.Mark
	if err := t.db.Preload("Equity").Preload("Title").
		Where("author_id = ? AND is_active = ?", t.UserID(), true).
		Order("created_at").
		Find(&marks).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return marks, nil
}
