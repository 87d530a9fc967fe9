// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"budgettracker/internal/models"
)

var (
	hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	registerOnce  sync.Once
)

// Register registers all custom validators with the Gin binding engine.
// It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			registerOn(v)
		}
	})
}

func registerOn(v *validator.Validate) {
	_ = v.RegisterValidation("hex_color", validateHexColor)
	_ = v.RegisterValidation("transaction_type", validateTransactionType)
	_ = v.RegisterValidation("budget_period", validateBudgetPeriod)
	_ = v.RegisterValidation("date_only", validateDateOnly)
}

// Var validates a single value against a tag using the engine Gin binds with,
// so PATCH fields decoded outside struct binding get the same rules.
func Var(value interface{}, tag string) error {
	Register()
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		return v.Var(value, tag)
	}
	v := validator.New()
	registerOn(v)
	return v.Var(value, tag)
}

func validateHexColor(fl validator.FieldLevel) bool {
	return hexColorRegex.MatchString(fl.Field().String())
}

func validateTransactionType(fl validator.FieldLevel) bool {
	return models.TransactionType(fl.Field().String()).Valid()
}

func validateBudgetPeriod(fl validator.FieldLevel) bool {
	return models.BudgetPeriod(fl.Field().String()).Valid()
}

func validateDateOnly(fl validator.FieldLevel) bool {
	_, err := models.ParseDate(fl.Field().String())
	return err == nil
}
