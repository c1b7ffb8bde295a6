package services

import (
	"strings"

	"gorm.io/gorm"

	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/models"
	"stonksnote/internal/pagination"
)

// Trade listing tabs.
const (
	TradeTabAll  = "all"
	TradeTabBuy  = "buy"
	TradeTabSell = "sell"
)

// tradeSortColumns maps the public sort keys to SQL columns.
var tradeSortColumns = map[string]string{
	"created_at": "trades.created_at",
	"price":      "trades.price",
	"shares":     "trades.shares",
	"total":      "trades.total",
}

// TradeSortKeys lists the accepted values of the sort query parameter.
func TradeSortKeys() []string {
	return []string{"created_at", "price", "shares", "total"}
}

// tradeService reads a user's trade history.
type tradeService struct {
	db *gorm.DB
}

// NewTradeService creates a new TradeServicer.
func NewTradeService(db *gorm.DB) TradeServicer {
	return &tradeService{db: db}
}

// ListTrades pages through the user's trades, newest first by default.
func (s *tradeService) ListTrades(userID string, q TradeQuery) (*pagination.PageResponse[models.Trade], error) {
	q.PageRequest.Defaults()
	q.SortRequest.Defaults("created_at", pagination.Desc)
	if _, ok := tradeSortColumns[q.Column]; !ok {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unsupported sort column "+q.Column)
	}

	base := s.db.Model(&models.Trade{}).Where("trades.author_id = ?", userID)
	switch q.Tab {
	case TradeTabBuy:
		base = base.Where("trades.action = ?", models.TradeBuy)
	case TradeTabSell:
		base = base.Where("trades.action = ?", models.TradeSell)
	}
	if equity := strings.TrimSpace(q.Equity); equity != "" {
		base = base.
			Joins("JOIN stashes ON stashes.id = trades.stash_id").
			Joins("JOIN equities ON equities.id = stashes.equity_id").
			Where("LOWER(equities.ticker) LIKE ?", "%"+strings.ToLower(equity)+"%")
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}

	var trades []models.Trade
	if err := base.
		Preload("Stash.Equity").
		Preload("Broker").
		Scopes(pagination.Order(q.SortRequest, tradeSortColumns), pagination.Paginate(q.PageRequest)).
		Find(&trades).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}

	resp := pagination.NewPageResponse(trades, q.Page, q.PageSize, totalItems)
	return &resp, nil
}
