package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CategorySpend struct {
	CategoryID   *int64          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Amount       decimal.Decimal `json:"amount"`
	Share        decimal.Decimal `json:"share"`
}

type MonthlyTotals struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

type BudgetProgress struct {
	Budget
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Active      bool            `json:"active"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Percentage  decimal.Decimal `json:"percentage"`
	Tier        WarningTier     `json:"tier"`
}

type GoalProgress struct {
	Goal
	Percentage decimal.Decimal `json:"percentage"`
	Achieved   bool            `json:"achieved"`
}

type Dashboard struct {
	Month              string           `json:"month"`
	Totals             MonthlyTotals    `json:"totals"`
	TotalBalance       decimal.Decimal  `json:"total_balance"`
	ExpenseByCategory  []CategorySpend  `json:"expense_by_category"`
	Trend              []MonthlyTotals  `json:"trend"`
	Budgets            []BudgetProgress `json:"budgets"`
	Goals              []GoalProgress   `json:"goals"`
	RecentTransactions []Transaction    `json:"recent_transactions"`
}
