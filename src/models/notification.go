package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Notification struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"user_id"`
	BudgetID      int64           `json:"budget_id"`
	TransactionID int64           `json:"transaction_id"`
	Tier          WarningTier     `json:"tier"`
	Percentage    decimal.Decimal `json:"percentage"`
	Message       string          `json:"message"`
	Read          bool            `json:"read"`
	CreatedAt     time.Time       `json:"created_at"`
}
