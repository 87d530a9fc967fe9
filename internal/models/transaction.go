package models

import "github.com/shopspring/decimal"

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// DefaultTransactionCategory is stored when a transaction has no category.
const DefaultTransactionCategory = "other"

// Transaction is a money movement recorded against a budget. Amount is
// sign-independent; Type decides whether it adds to or draws from the budget.
type Transaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	BudgetID    string          `gorm:"type:uuid;not null;index" json:"budget_id"`
	Category    string          `gorm:"not null;default:other;index" json:"category"`
	Description string          `gorm:"not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Type        TransactionType `gorm:"not null;default:expense" json:"type"`
	Date        Date            `gorm:"type:date;not null" json:"date"`
	Notes       *string         `json:"notes"`
}
