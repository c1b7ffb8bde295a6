package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/models"
	"stonksnote/internal/money"
	"stonksnote/internal/pagination"
)

// catalogService manages the shared broker, equity and taxonomy tables.
type catalogService struct {
	db *gorm.DB
}

// NewCatalogService creates a new CatalogServicer.
func NewCatalogService(db *gorm.DB) CatalogServicer {
	return &catalogService{db: db}
}

// ListBrokers returns active brokers ordered by name.
func (s *catalogService) ListBrokers(page pagination.PageRequest) (*pagination.PageResponse[models.Broker], error) {
	page.Defaults()
	base := s.db.Model(&models.Broker{}).Where("is_active = ?", true)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}

	var brokers []models.Broker
	if err := base.Order("name").Scopes(pagination.Paginate(page)).Find(&brokers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}

	resp := pagination.NewPageResponse(brokers, page.Page, page.PageSize, totalItems)
	return &resp, nil
}

// GetBroker retrieves a broker by ID.
func (s *catalogService) GetBroker(id string) (*models.Broker, error) {
	var broker models.Broker
	if err := s.db.Where("id = ?", id).First(&broker).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBrokerNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return &broker, nil
}

// CreateBroker adds a broker to the catalog.
func (s *catalogService) CreateBroker(in BrokerInput) (*models.Broker, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "broker name is required")
	}
	currency := strings.ToUpper(in.Currency)
	if !money.IsCurrency(currency) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown currency "+in.Currency)
	}
	if !money.ValidFeeRate(in.BuyFees) || !money.ValidFeeRate(in.SellFees) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "fee rates must be at least 0 and below 1")
	}

	broker := &models.Broker{
		Name:     strings.TrimSpace(in.Name),
		Short:    in.Short,
		BrokerNo: in.BrokerNo,
		Rating:   in.Rating,
		Email:    in.Email,
		URL:      in.URL,
		Country:  strings.ToUpper(in.Country),
		Logo:     in.Logo,
		BuyFees:  in.BuyFees,
		SellFees: in.SellFees,
		Currency: currency,
		IsOnline: in.IsOnline,
		IsActive: true,
	}
	if err := s.db.Create(broker).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return broker, nil
}

// ListEquities returns equities, optionally filtered by a ticker or name substring.
func (s *catalogService) ListEquities(page pagination.PageRequest, search string) (*pagination.PageResponse[models.Equity], error) {
	page.Defaults()
	base := s.db.Model(&models.Equity{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		base = base.Where("LOWER(ticker) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}

	var equities []models.Equity
	if err := base.Preload("Exchange").Order("ticker").Scopes(pagination.Paginate(page)).Find(&equities).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}

	resp := pagination.NewPageResponse(equities, page.Page, page.PageSize, totalItems)
	return &resp, nil
}

// GetEquity retrieves an equity by ID.
func (s *catalogService) GetEquity(id string) (*models.Equity, error) {
	var equity models.Equity
	if err := s.db.Preload("Exchange").Where("id = ?", id).First(&equity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEquityNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return &equity, nil
}

// FindEquityByTicker resolves a ticker symbol. When the same ticker is
// listed on several exchanges the oldest listing wins.
func (s *catalogService) FindEquityByTicker(ticker string) (*models.Equity, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "symbol is required")
	}
	var equity models.Equity
	if err := s.db.Where("ticker = ?", ticker).Order("created_at").First(&equity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEquityNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return &equity, nil
}

// CreateEquity lists an equity on an exchange, creating the exchange label if needed.
func (s *catalogService) CreateEquity(in EquityInput) (*models.Equity, error) {
	ticker := strings.ToUpper(strings.TrimSpace(in.Ticker))
	if ticker == "" || strings.TrimSpace(in.Exchange) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "ticker and exchange are required")
	}

	var equity models.Equity
	err := s.db.Transaction(func(tx *gorm.DB) error {
		exchange, err := ensureTaxonomy(tx, in.Exchange, models.TierExchange)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Equity{}).
			Where("ticker = ? AND exchange_id = ?", ticker, exchange.ID).
			Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		if count > 0 {
			return apperrors.ErrDuplicateEquity
		}

		equity = models.Equity{
			Ticker:     ticker,
			Name:       in.Name,
			ExchangeID: exchange.ID,
			Category:   in.Category,
			Status:     models.EquityActive,
		}
		if err := tx.Create(&equity).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		equity.Exchange = exchange
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &equity, nil
}

// EnsureTaxonomy returns the label (name, tier), creating it when missing.
func (s *catalogService) EnsureTaxonomy(name, tier string) (*models.Taxonomy, error) {
	return ensureTaxonomy(s.db, name, tier)
}

func ensureTaxonomy(db *gorm.DB, name, tier string) (*models.Taxonomy, error) {
	name = strings.TrimSpace(name)
	if name == "" || tier == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "taxonomy name and tier are required")
	}
	tax := models.Taxonomy{Name: name, Tier: tier, Label: name, IsGlobal: true}
	if err := db.Where(models.Taxonomy{Name: name, Tier: tier}).FirstOrCreate(&tax).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return &tax, nil
}
