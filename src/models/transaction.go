package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

type Transaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	AccountID   int64           `json:"account_id"`
	CategoryID  *int64          `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	ExternalID  *string         `json:"external_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BalanceEffect is the signed change this transaction applies to its account.
func (t Transaction) BalanceEffect() decimal.Decimal {
	if t.Type == TransactionIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}

type TransactionFilter struct {
	AccountID     *int64
	CategoryID    *int64
	Type          TransactionType
	From          *time.Time
	To            *time.Time
	Uncategorized bool
	Limit         int
}
