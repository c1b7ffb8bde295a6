package services

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/logger"
	"stonksnote/internal/models"
	"stonksnote/internal/money"
	"stonksnote/internal/uuid"
)

// TradeRequest describes a buy or sell. BrokerID and Currency are optional;
// they default to the resolved broker and its currency.
type TradeRequest struct {
	EquityID string
	Shares   int64
	Price    decimal.Decimal
	BrokerID string
	Currency string
	Note     string
}

// TradeResult is the outcome of an executed trade.
type TradeResult struct {
	Gross    decimal.Decimal `json:"gross"`
	Fees     decimal.Decimal `json:"fees"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
	Wallet   decimal.Decimal `json:"wallet"`
	Shares   int64           `json:"shares"`
	Trade    *models.Trade   `json:"trade"`
}

// Buy purchases shares through the resolved broker. The total including
// fees must be covered by the wallet or nothing is written.
func (t *Trader) Buy(req TradeRequest) (*TradeResult, error) {
	return t.execute(models.TradeBuy, req)
}

// Sell disposes of shares through the resolved broker. Selling more
// shares than the holding contains is rejected.
func (t *Trader) Sell(req TradeRequest) (*TradeResult, error) {
	return t.execute(models.TradeSell, req)
}

func validateTrade(req TradeRequest) error {
	if req.EquityID == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "equity is required")
	}
	if !uuid.IsValid(req.EquityID) || (req.BrokerID != "" && !uuid.IsValid(req.BrokerID)) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "equity and broker ids must be UUIDs")
	}
	if req.Shares <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "shares must be positive")
	}
	if !req.Price.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "price must be positive")
	}
	if req.Currency != "" && !money.IsCurrency(req.Currency) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown currency "+req.Currency)
	}
	return nil
}

// execute runs one trade as a single transaction: resolve and lock the
// broker, compute the economics, move shares and cash, then append the
// trade row. Any failure rolls every write back.
func (t *Trader) execute(action models.TradeAction, req TradeRequest) (*TradeResult, error) {
	if err := validateTrade(req); err != nil {
		return nil, err
	}

	var result TradeResult
	err := t.db.Transaction(func(tx *gorm.DB) error {
		var equity models.Equity
		if err := tx.Select("id", "ticker").Where("id = ?", req.EquityID).First(&equity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrEquityNotFound
			}
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}

		ub, err := t.userBroker(tx, req.BrokerID, true)
		if err != nil {
			return err
		}
		broker := ub.Broker
		if broker == nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, errors.New("broker missing for assignment "+ub.ID))
		}
		walletCur := t.walletCurrency(ub)

		currency := strings.ToUpper(req.Currency)
		if currency == "" {
			currency = walletCur
		}

		var econ money.Economics
		var stash *models.Stash
		var wallet decimal.Decimal

		switch action {
		case models.TradeBuy:
			econ = money.Compute(money.Buy, req.Price, req.Shares, broker.BuyFees)
			stash, err = t.fetchOrCreateStash(tx, req.EquityID, true)
			if err != nil {
				return err
			}
			if econ.Total.GreaterThan(ub.Wallet) {
				return apperrors.ErrNotEnoughFunds
			}
			wallet = money.Round(ub.Wallet.Sub(econ.Total), walletCur)
			if err := incrStash(tx, stash, req.Shares); err != nil {
				return err
			}
		case models.TradeSell:
			econ = money.Compute(money.Sell, req.Price, req.Shares, broker.SellFees)
			if !econ.Total.IsPositive() {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "fees exceed the sale proceeds")
			}
			stash, err = t.findStash(tx, req.EquityID, true)
			if err != nil {
				return err
			}
			if stash == nil || stash.Shares < req.Shares {
				return apperrors.ErrInsufficientShares
			}
			wallet = money.Round(ub.Wallet.Add(econ.Total), walletCur)
			if err := decrStash(tx, stash, req.Shares); err != nil {
				return err
			}
		}

		if wallet.IsNegative() {
			return apperrors.ErrNotEnoughFunds
		}

		traded := money.Round(ub.Traded.Add(econ.Gross), walletCur)
		if err := tx.Model(&models.UserBroker{}).Where("id = ?", ub.ID).Updates(map[string]any{
			"wallet": wallet,
			"traded": traded,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}

		trade := &models.Trade{
			StashID:      stash.ID,
			BrokerID:     ub.BrokerID,
			UserBrokerID: ub.ID,
			AuthorID:     t.UserID(),
			Action:       action,
			Price:        req.Price.Round(money.TradePlaces),
			Shares:       req.Shares,
			Gross:        econ.Gross,
			Fees:         econ.Fees,
			Total:        econ.Total,
			Currency:     currency,
			Status:       "executed",
			IsResolved:   stash.IsResolved,
			Note:         req.Note,
		}
		if err := tx.Omit("Stash", "Broker").Create(trade).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}

		result = TradeResult{
			Gross:    econ.Gross,
			Fees:     econ.Fees,
			Total:    econ.Total,
			Currency: currency,
			Wallet:   wallet,
			Shares:   stash.Shares,
			Trade:    trade,
		}

		logger.Get().Infow("trade executed",
			"user_id", t.UserID(),
			"action", action.String(),
			"ticker", equity.Ticker,
			"broker_id", ub.BrokerID,
			"shares", req.Shares,
			"total", econ.Total.String(),
			"currency", currency,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
