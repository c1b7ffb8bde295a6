// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"stonksnote/internal/money"
)

var (
	permissionCodeRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z][a-z0-9_]*$`)
	tickerRegex         = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]{0,19}$`)
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("iso4217", validateISO4217)
	_ = v.RegisterValidation("trade_tab", validateTradeTab)
	_ = v.RegisterValidation("trade_sort", validateTradeSort)
	_ = v.RegisterValidation("sort_direction", validateSortDirection)
	_ = v.RegisterValidation("perm_code", validatePermissionCode)
	_ = v.RegisterValidation("ticker", validateTicker)
}

func validateISO4217(fl validator.FieldLevel) bool {
	return money.IsCurrency(fl.Field().String())
}

func validateTradeTab(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "all", "buy", "sell":
		return true
	}
	return false
}

func validateTradeSort(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "created_at", "price", "shares", "total":
		return true
	}
	return false
}

func validateSortDirection(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "asc", "desc":
		return true
	}
	return false
}

func validatePermissionCode(fl validator.FieldLevel) bool {
	return permissionCodeRegex.MatchString(fl.Field().String())
}

func validateTicker(fl validator.FieldLevel) bool {
	return tickerRegex.MatchString(fl.Field().String())
}
