package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"stonksnote/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a PHP user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Currency: "PHP",
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestBroker creates a PHP broker with the given buy and sell fee rates.
func CreateTestBroker(t *testing.T, db *gorm.DB, buyFees, sellFees string) *models.Broker {
	t.Helper()

	n := nextID()
	broker := &models.Broker{
		Name:     fmt.Sprintf("Broker %d", n),
		Short:    fmt.Sprintf("B%d", n),
		BrokerNo: int(n),
		BuyFees:  decimal.RequireFromString(buyFees),
		SellFees: decimal.RequireFromString(sellFees),
		Currency: "PHP",
		IsOnline: true,
		IsActive: true,
	}
	if err := db.Create(broker).Error; err != nil {
		t.Fatalf("failed to create test broker: %v", err)
	}
	return broker
}

// CreateTestExchange creates an exchange taxonomy entry.
func CreateTestExchange(t *testing.T, db *gorm.DB, name string) *models.Taxonomy {
	t.Helper()
	return CreateTestTaxonomy(t, db, name, models.TierExchange)
}

// CreateTestTaxonomy creates a taxonomy entry on the given tier.
func CreateTestTaxonomy(t *testing.T, db *gorm.DB, name, tier string) *models.Taxonomy {
	t.Helper()

	tax := &models.Taxonomy{Name: name, Tier: tier, Label: name, IsGlobal: true}
	if err := db.Create(tax).Error; err != nil {
		t.Fatalf("failed to create test taxonomy: %v", err)
	}
	return tax
}

// CreateTestEquity creates an equity on a fresh exchange.
func CreateTestEquity(t *testing.T, db *gorm.DB, ticker string) *models.Equity {
	t.Helper()

	exchange := CreateTestExchange(t, db, fmt.Sprintf("EX%d", nextID()))
	equity := &models.Equity{
		Ticker:     ticker,
		Name:       ticker + " Corp",
		ExchangeID: exchange.ID,
		Category:   "stock",
		Status:     models.EquityActive,
	}
	if err := db.Create(equity).Error; err != nil {
		t.Fatalf("failed to create test equity: %v", err)
	}
	return equity
}

// CreateTestPermissions creates the given permission codes and returns them.
func CreateTestPermissions(t *testing.T, db *gorm.DB, codes ...string) []models.Permission {
	t.Helper()

	perms := make([]models.Permission, 0, len(codes))
	for _, code := range codes {
		perms = append(perms, models.Permission{Code: code, Name: code})
	}
	if len(perms) == 0 {
		return perms
	}
	if err := db.Create(&perms).Error; err != nil {
		t.Fatalf("failed to create test permissions: %v", err)
	}
	return perms
}

// CreateTestGroup creates a group holding the given permission codes,
// creating any code that does not exist yet.
func CreateTestGroup(t *testing.T, db *gorm.DB, name string, codes ...string) *models.Group {
	t.Helper()

	var perms []models.Permission
	for _, code := range codes {
		p := models.Permission{Code: code, Name: code}
		if err := db.Where(models.Permission{Code: code}).FirstOrCreate(&p).Error; err != nil {
			t.Fatalf("failed to create permission %s: %v", code, err)
		}
		perms = append(perms, p)
	}

	group := &models.Group{Name: name, Permissions: perms}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to create test group: %v", err)
	}
	return group
}

// AddUserToGroup enrolls user into group.
func AddUserToGroup(t *testing.T, db *gorm.DB, user *models.User, group *models.Group) {
	t.Helper()

	if err := db.Model(user).Association("Groups").Append(group); err != nil {
		t.Fatalf("failed to add user to group: %v", err)
	}
}
