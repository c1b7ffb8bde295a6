package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/models"
	"stonksnote/internal/money"
	"stonksnote/internal/uuid"
)

// AddBrokerOptions seeds a new assignment. They only apply when exactly one
// broker is added and the user does not hold it yet.
type AddBrokerOptions struct {
	Wallet    decimal.Decimal
	IsPrimary bool
	Meta      models.JSONMap
}

func (o AddBrokerOptions) isSet() bool {
	return !o.Wallet.IsZero() || o.IsPrimary || o.Meta != nil
}

// UserBrokerView is an assignment joined with the broker's catalog fields.
type UserBrokerView struct {
	ID            string          `json:"id"`
	BrokerID      string          `json:"broker_id"`
	Name          string          `json:"name"`
	Short         string          `json:"short"`
	BrokerNo      int             `json:"brokerno"`
	Rating        decimal.Decimal `json:"rating"`
	Logo          string          `json:"logo"`
	Currency      string          `json:"currency"`
	BuyFees       decimal.Decimal `json:"buyfees"`
	SellFees      decimal.Decimal `json:"sellfees"`
	Wallet        decimal.Decimal `json:"wallet"`
	WalletDisplay string          `json:"wallet_display"`
	Traded        decimal.Decimal `json:"traded"`
	Status        string          `json:"status"`
	IsPrimary     bool            `json:"is_primary"`
	Meta          models.JSONMap  `json:"meta,omitempty"`
}

func (t *Trader) brokerView(ub *models.UserBroker) UserBrokerView {
	cur := t.walletCurrency(ub)
	v := UserBrokerView{
		ID:            ub.ID,
		BrokerID:      ub.BrokerID,
		Currency:      cur,
		Wallet:        ub.Wallet,
		WalletDisplay: money.Format(ub.Wallet, cur),
		Traded:        ub.Traded,
		Status:        ub.Status,
		IsPrimary:     ub.IsPrimary,
		Meta:          ub.Meta,
	}
	if b := ub.Broker; b != nil {
		v.Name = b.Name
		v.Short = b.Short
		v.BrokerNo = b.BrokerNo
		v.Rating = b.Rating
		v.Logo = b.Logo
		v.BuyFees = b.BuyFees
		v.SellFees = b.SellFees
	}
	return v
}

// HasPrimary reports whether the user has a primary broker.
func (t *Trader) HasPrimary() (bool, error) {
	var count int64
	if err := t.db.Model(&models.UserBroker{}).
		Where("user_id = ? AND is_primary = ?", t.UserID(), true).
		Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return count > 0, nil
}

// HasBrokers reports whether the user holds any broker.
func (t *Trader) HasBrokers() (bool, error) {
	var count int64
	if err := t.db.Model(&models.UserBroker{}).
		Where("user_id = ?", t.UserID()).
		Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return count > 0, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// AddBroker assigns brokers to the user. Brokers already held are left
// untouched, so repeated calls do not create duplicate rows.
func (t *Trader) AddBroker(brokerIDs []string, opts AddBrokerOptions) error {
	ids := dedupe(brokerIDs)
	if len(ids) == 0 {
		return nil
	}
	if !uuid.AllValid(ids) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "broker ids must be UUIDs")
	}
	if opts.Wallet.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "starting wallet cannot be negative")
	}

	return t.db.Transaction(func(tx *gorm.DB) error {
		var brokers []models.Broker
		if err := tx.Where("id IN ?", ids).Find(&brokers).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		if len(brokers) != len(ids) {
			return apperrors.ErrBrokerNotFound
		}
		byID := make(map[string]*models.Broker, len(brokers))
		for i := range brokers {
			byID[brokers[i].ID] = &brokers[i]
		}

		var held []string
		if err := tx.Model(&models.UserBroker{}).
			Where("user_id = ? AND broker_id IN ?", t.UserID(), ids).
			Pluck("broker_id", &held).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		already := make(map[string]struct{}, len(held))
		for _, id := range held {
			already[id] = struct{}{}
		}

		var rows []models.UserBroker
		for _, id := range ids {
			if _, ok := already[id]; ok {
				continue
			}
			rows = append(rows, models.UserBroker{
				UserID:   t.UserID(),
				BrokerID: id,
				Wallet:   decimal.Zero,
				Traded:   decimal.Zero,
				Status:   models.UserBrokerActive,
			})
		}
		if len(rows) == 0 {
			return nil
		}

		if len(ids) == 1 && opts.isSet() {
			rows[0].Wallet = money.Round(opts.Wallet, byID[ids[0]].Currency)
			rows[0].Meta = opts.Meta
			if opts.IsPrimary {
				if err := tx.Model(&models.UserBroker{}).
					Where("user_id = ? AND is_primary = ?", t.UserID(), true).
					Update("is_primary", false).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
				}
				rows[0].IsPrimary = true
			}
		}

		if err := tx.Omit("Broker").Create(&rows).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil
	})
}

// RemoveBroker unassigns brokers. Brokers the user does not hold are
// ignored. Removing the primary leaves the user without one.
func (t *Trader) RemoveBroker(brokerIDs []string) error {
	ids := dedupe(brokerIDs)
	if len(ids) == 0 {
		return nil
	}
	if !uuid.AllValid(ids) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "broker ids must be UUIDs")
	}
	return t.db.Transaction(func(tx *gorm.DB) error {
		var rows []models.UserBroker
		if err := tx.Where("user_id = ? AND broker_id IN ?", t.UserID(), ids).Find(&rows).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		for i := range rows {
			if err := rows[i].Remove(tx); err != nil {
				return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
			}
		}
		return nil
	})
}

// SetPrimary makes brokerID the user's primary broker. Every other primary
// row is cleared in the same sweep, even when the user does not hold
// brokerID, so afterwards at most one row is primary.
func (t *Trader) SetPrimary(brokerID string) error {
	return t.db.Transaction(func(tx *gorm.DB) error {
		var rows []models.UserBroker
		if err := forUpdate(tx).Where("user_id = ?", t.UserID()).Find(&rows).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		// Clear before set so the one-primary index never sees two rows.
		var target *models.UserBroker
		for i := range rows {
			row := &rows[i]
			if row.BrokerID == brokerID {
				target = row
				continue
			}
			if !row.IsPrimary {
				continue
			}
			if err := tx.Model(&models.UserBroker{}).
				Where("id = ?", row.ID).
				Update("is_primary", false).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
			}
		}
		if target == nil || target.IsPrimary {
			return nil
		}
		if err := tx.Model(&models.UserBroker{}).
			Where("id = ?", target.ID).
			Update("is_primary", true).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil
	})
}

// UnsetPrimary clears the primary flag if one is set.
func (t *Trader) UnsetPrimary() error {
	if err := t.db.Model(&models.UserBroker{}).
		Where("user_id = ? AND is_primary = ?", t.UserID(), true).
		Update("is_primary", false).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return nil
}

// GetUserBroker returns the assignment the resolution policy selects for
// brokerID (empty for the default). A user with no primary has their first
// broker promoted; a user with no brokers gets MISSING_BROKERS.
func (t *Trader) GetUserBroker(brokerID string) (*models.UserBroker, error) {
	var ub *models.UserBroker
	err := t.db.Transaction(func(tx *gorm.DB) error {
		var err error
		ub, err = t.userBroker(tx, brokerID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ub, nil
}

// GetUserBrokers lists the user's brokers, oldest assignment first.
func (t *Trader) GetUserBrokers() ([]UserBrokerView, error) {
	var rows []models.UserBroker
	if err := t.db.Preload("Broker").
		Where("user_id = ?", t.UserID()).
		Order("created_at").Order("id").
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	views := make([]UserBrokerView, 0, len(rows))
	for i := range rows {
		views = append(views, t.brokerView(&rows[i]))
	}
	return views, nil
}

// FindUserBroker returns one held broker without applying any promotion.
func (t *Trader) FindUserBroker(brokerID string) (*UserBrokerView, error) {
	var ub models.UserBroker
	if err := t.db.Preload("Broker").
		Where("user_id = ? AND broker_id = ?", t.UserID(), brokerID).
		First(&ub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBrokerNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	v := t.brokerView(&ub)
	return &v, nil
}

// GetPrimary returns the primary broker, or nil when none is set.
func (t *Trader) GetPrimary() (*UserBrokerView, error) {
	var ub models.UserBroker
	if err := t.db.Preload("Broker").
		Where("user_id = ? AND is_primary = ?", t.UserID(), true).
		First(&ub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	v := t.brokerView(&ub)
	return &v, nil
}
