package models

import "github.com/shopspring/decimal"

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
	BudgetPeriodCustom  BudgetPeriod = "custom"
)

// Valid reports whether p is one of the known periods.
func (p BudgetPeriod) Valid() bool {
	switch p {
	case BudgetPeriodMonthly, BudgetPeriodYearly, BudgetPeriodCustom:
		return true
	}
	return false
}

// Budget is a spending plan owned by a single user.
type Budget struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string          `gorm:"not null" json:"name"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Period      BudgetPeriod    `gorm:"not null" json:"period"`
	StartDate   Date            `gorm:"type:date;not null" json:"start_date"`
	EndDate     *Date           `gorm:"type:date" json:"end_date"`
	Description *string         `json:"description"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:BudgetID;constraint:OnDelete:CASCADE" json:"-"`
}
