package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountCash    AccountType = "cash"
	AccountBank    AccountType = "bank"
	AccountCard    AccountType = "card"
	AccountSavings AccountType = "savings"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountCash, AccountBank, AccountCard, AccountSavings:
		return true
	}
	return false
}

type Account struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Balance        decimal.Decimal `json:"balance"`
	Currency       string          `json:"currency"`
	PlaidAccountID *string         `json:"plaid_account_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
