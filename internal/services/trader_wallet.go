package services

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/logger"
	"stonksnote/internal/models"
	"stonksnote/internal/money"
)

// Deposit adds amount to the wallet at the resolved broker and returns the
// new balance. A zero amount changes nothing.
func (t *Trader) Deposit(amount decimal.Decimal, brokerID string) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount cannot be negative")
	}
	if amount.IsZero() {
		return t.GetWallet(brokerID)
	}
	return t.moveWallet(brokerID, func(ub *models.UserBroker, cur string) decimal.Decimal {
		return money.Round(ub.Wallet.Add(amount), cur)
	})
}

// Withdraw takes amount out of the wallet and returns the new balance.
// The balance never goes below zero: an overdraft is clamped to zero
// rather than rejected.
func (t *Trader) Withdraw(amount decimal.Decimal, brokerID string) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount cannot be negative")
	}
	if amount.IsZero() {
		return t.GetWallet(brokerID)
	}
	return t.moveWallet(brokerID, func(ub *models.UserBroker, cur string) decimal.Decimal {
		next := ub.Wallet.Sub(amount)
		if next.IsNegative() {
			logger.Get().Warnw("withdrawal exceeds wallet, clamping to zero",
				"user_id", t.UserID(),
				"broker_id", ub.BrokerID,
				"wallet", ub.Wallet.String(),
				"amount", amount.String(),
			)
			return decimal.Zero
		}
		return money.Round(next, cur)
	})
}

// ResetWallet overwrites the balance with amount.
func (t *Trader) ResetWallet(amount decimal.Decimal, brokerID string) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount cannot be negative")
	}
	return t.moveWallet(brokerID, func(_ *models.UserBroker, cur string) decimal.Decimal {
		return money.Round(amount, cur)
	})
}

// GetWallet returns the balance at the resolved broker.
func (t *Trader) GetWallet(brokerID string) (decimal.Decimal, error) {
	ub, err := t.GetUserBroker(brokerID)
	if err != nil {
		return decimal.Zero, err
	}
	return ub.Wallet, nil
}

// moveWallet locks the resolved assignment and writes the balance next returns.
func (t *Trader) moveWallet(brokerID string, next func(ub *models.UserBroker, cur string) decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.db.Transaction(func(tx *gorm.DB) error {
		ub, err := t.userBroker(tx, brokerID, true)
		if err != nil {
			return err
		}
		balance = next(ub, t.walletCurrency(ub))
		if err := tx.Model(&models.UserBroker{}).
			Where("id = ?", ub.ID).
			Update("wallet", balance).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}
