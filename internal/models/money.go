package models

import "github.com/shopspring/decimal"

func init() {
	// Amounts travel as JSON numbers, the way clients send them.
	decimal.MarshalJSONWithoutQuotes = true
}

// MoneyScale is the number of decimal places stored for amounts.
const MoneyScale = 2

// FitsMoneyScale reports whether amount is stored without rounding.
func FitsMoneyScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(MoneyScale))
}
