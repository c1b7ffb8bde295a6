package services

import (
	"github.com/shopspring/decimal"

	"stonksnote/internal/models"
	"stonksnote/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName, currency string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID string, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
	UpdateProfile(userID string, display, currency *string) (*models.User, error)
}

// PermissionChecker answers whether a user holds a permission code.
type PermissionChecker interface {
	HasPerm(userID string, codes ...string) (bool, error)
}

// GroupInput carries the editable fields of a group.
type GroupInput struct {
	Name        *string
	Summary     *string
	Permissions []string
}

// PermissionServicer defines the contract for groups and permissions.
// Reads are served from the cache; every write invalidates it.
type PermissionServicer interface {
	PermissionChecker
	GetPermissions(userID string) ([]string, error)
	GetGroups(userID string) ([]string, error)
	AddGroups(userID string, names ...string) error
	RemoveGroups(userID string, names ...string) error
	AddPermissions(userID string, codes ...string) error
	RemovePermissions(userID string, codes ...string) error
	ListGroups() ([]models.Group, error)
	CreateGroup(name, summary string, codes []string) (*models.Group, error)
	UpdateGroup(id string, in GroupInput) (*models.Group, error)
	DeleteGroup(name string) error
	SetGroupPermissions(name string, codes []string) (*models.Group, error)
	GroupPermissions(name string) ([]string, error)
}

// BrokerInput holds the fields for a new catalog broker.
type BrokerInput struct {
	Name     string
	Short    string
	BrokerNo int
	Rating   decimal.Decimal
	Email    string
	URL      string
	Country  string
	Logo     string
	BuyFees  decimal.Decimal
	SellFees decimal.Decimal
	Currency string
	IsOnline bool
}

// EquityInput holds the fields for a new catalog equity.
type EquityInput struct {
	Ticker   string
	Name     string
	Exchange string
	Category string
}

// CatalogServicer defines the contract for brokers, equities and taxonomy.
type CatalogServicer interface {
	ListBrokers(page pagination.PageRequest) (*pagination.PageResponse[models.Broker], error)
	GetBroker(id string) (*models.Broker, error)
	CreateBroker(in BrokerInput) (*models.Broker, error)
	ListEquities(page pagination.PageRequest, search string) (*pagination.PageResponse[models.Equity], error)
	GetEquity(id string) (*models.Equity, error)
	FindEquityByTicker(ticker string) (*models.Equity, error)
	CreateEquity(in EquityInput) (*models.Equity, error)
	EnsureTaxonomy(name, tier string) (*models.Taxonomy, error)
}

// TradeQuery filters the trade listing.
type TradeQuery struct {
	pagination.PageRequest
	pagination.SortRequest
	Tab    string `form:"tab" binding:"omitempty,trade_tab"`
	Equity string `form:"equity" binding:"max=20"`
}

// TradeServicer defines the contract for reading a user's trade history.
type TradeServicer interface {
	ListTrades(userID string, q TradeQuery) (*pagination.PageResponse[models.Trade], error)
}

// TraderServicer is the per-user trading session surface: broker
// assignment, wallets, holdings, trade execution and the watchlist.
type TraderServicer interface {
	HasPrimary() (bool, error)
	HasBrokers() (bool, error)
	AddBroker(brokerIDs []string, opts AddBrokerOptions) error
	RemoveBroker(brokerIDs []string) error
	SetPrimary(brokerID string) error
	UnsetPrimary() error
	GetUserBroker(brokerID string) (*models.UserBroker, error)
	GetUserBrokers() ([]UserBrokerView, error)
	FindUserBroker(brokerID string) (*UserBrokerView, error)
	GetPrimary() (*UserBrokerView, error)

	Deposit(amount decimal.Decimal, brokerID string) (decimal.Decimal, error)
	Withdraw(amount decimal.Decimal, brokerID string) (decimal.Decimal, error)
	GetWallet(brokerID string) (decimal.Decimal, error)
	ResetWallet(amount decimal.Decimal, brokerID string) (decimal.Decimal, error)

	GetStash(equityID string) (*StashView, error)
	HasStash(equityID string) (bool, error)
	AddStash(equityID string) (*models.Stash, error)
	GetStashes() ([]StashView, error)

	Buy(req TradeRequest) (*TradeResult, error)
	Sell(req TradeRequest) (*TradeResult, error)

	AddMark(equityIDs []string, opts MarkOptions) ([]models.Mark, error)
	RemoveMark(equityIDs []string) (int, error)
	ClearMarks() (int, error)
	GetMarks() ([]models.Mark, error)
}

// TraderProvider opens a Trader session for an authenticated user.
type TraderProvider interface {
	Trader(userID string) (TraderServicer, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
	LogTrade(userID, ipAddress string, trade TradeAudit)
	LogMark(userID, action, ipAddress string, mark MarkAudit)
}
