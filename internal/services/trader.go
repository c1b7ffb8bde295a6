package services

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/logger"
	"stonksnote/internal/models"
)

// UserHandle is the identity a Trader acts for.
type UserHandle interface {
	GetID() string
	GetCurrency() string
}

// Trader is a request-scoped trading session bound to one user. It only
// reads and writes that user's UserBroker, Stash, Trade and Mark rows.
type Trader struct {
	db   *gorm.DB
	user UserHandle
}

var _ TraderServicer = (*Trader)(nil)

// NewTrader creates a Trader for user.
func NewTrader(db *gorm.DB, user UserHandle) *Trader {
	return &Trader{db: db, user: user}
}

// UserID returns the id of the user the session is bound to.
func (t *Trader) UserID() string {
	return t.user.GetID()
}

// currency is the fallback trade currency when the broker has none.
func (t *Trader) currency() string {
	if c := t.user.GetCurrency(); c != "" {
		return c
	}
	return "PHP"
}

// forUpdate locks the selected rows until the transaction ends. SQLite
// ignores the clause and serialises writers instead.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ResolutionKind tells how GetUserBroker picked a broker.
type ResolutionKind int

const (
	// NoneAvailable means the user has no brokers at all.
	NoneAvailable ResolutionKind = iota
	// Explicit means the caller named the broker.
	Explicit
	// Primary means the user's primary broker was used.
	Primary
	// AutoPromoted means there was no primary and the first assigned
	// broker is about to become one.
	AutoPromoted
)

func (k ResolutionKind) String() string {
	switch k {
	case Explicit:
		return "explicit"
	case Primary:
		return "primary"
	case AutoPromoted:
		return "auto_promoted"
	default:
		return "none_available"
	}
}

// BrokerResolution is the outcome of resolving the broker for an operation.
// UserBroker is nil when Kind is NoneAvailable.
type BrokerResolution struct {
	Kind       ResolutionKind
	UserBroker *models.UserBroker
}

// resolveBroker applies the resolution policy without side effects:
// the named broker if brokerID is set, else the primary, else the first
// assigned broker, else none. A named broker the user does not hold is
// BROKER_NOT_FOUND.
func (t *Trader) resolveBroker(tx *gorm.DB, brokerID string, lock bool) (BrokerResolution, error) {
	q := func() *gorm.DB {
		db := tx.Preload("Broker").Where("user_id = ?", t.UserID())
		if lock {
			db = forUpdate(db)
		}
		return db
	}

	var ub models.UserBroker
	if brokerID != "" {
		if err := q().Where("broker_id = ?", brokerID).First(&ub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return BrokerResolution{}, apperrors.ErrBrokerNotFound
			}
			return BrokerResolution{}, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return BrokerResolution{Kind: Explicit, UserBroker: &ub}, nil
	}

	err := q().Where("is_primary = ?", true).First(&ub).Error
	if err == nil {
		return BrokerResolution{Kind: Primary, UserBroker: &ub}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return BrokerResolution{}, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}

	err = q().Order("created_at").Order("id").First(&ub).Error
	if err == nil {
		return BrokerResolution{Kind: AutoPromoted, UserBroker: &ub}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return BrokerResolution{}, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return BrokerResolution{Kind: NoneAvailable}, nil
}

// userBroker resolves the broker and acts on the outcome: an auto-promoted
// broker is made primary, and no broker at all is MISSING_BROKERS.
func (t *Trader) userBroker(tx *gorm.DB, brokerID string, lock bool) (*models.UserBroker, error) {
	res, err := t.resolveBroker(tx, brokerID, lock)
	if err != nil {
		return nil, err
	}

	switch res.Kind {
	case Explicit, Primary:
		return res.UserBroker, nil
	case AutoPromoted:
		if err := tx.Model(&models.UserBroker{}).
			Where("id = ?", res.UserBroker.ID).
			Update("is_primary", true).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		res.UserBroker.IsPrimary = true
		logger.Get().Infow("auto-promoted primary broker",
			"user_id", t.UserID(),
			"broker_id", res.UserBroker.BrokerID,
		)
		return res.UserBroker, nil
	default:
		return nil, apperrors.ErrMissingBrokers
	}
}

// walletCurrency is the currency wallet balances at ub are kept in.
func (t *Trader) walletCurrency(ub *models.UserBroker) string {
	if ub.Broker != nil && ub.Broker.Currency != "" {
		return ub.Broker.Currency
	}
	return t.currency()
}

// traderProvider opens Trader sessions for authenticated users.
type traderProvider struct {
	db    *gorm.DB
	users UserServicer
}

// NewTraderProvider creates a TraderProvider backed by users.
func NewTraderProvider(db *gorm.DB, users UserServicer) TraderProvider {
	return &traderProvider{db: db, users: users}
}

// Trader loads the user and returns a session bound to them.
func (p *traderProvider) Trader(userID string) (TraderServicer, error) {
	user, err := p.users.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	return NewTrader(p.db, user), nil
}
