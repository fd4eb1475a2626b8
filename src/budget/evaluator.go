// Package budget computes spending progress against budgets and decides
// when a new expense should raise a warning.
package budget

import (
	"fmt"

	"spendwise-server/src/models"

	"github.com/shopspring/decimal"
)

// WarningPercent is the fixed progress level at which a budget enters the
// Warning tier, independent of its notification threshold.
const WarningPercent = 80

var hundred = decimal.NewFromInt(100)

type Warning struct {
	BudgetID   int64              `json:"budget_id"`
	CategoryID int64              `json:"category_id"`
	Tier       models.WarningTier `json:"tier"`
	Limit      decimal.Decimal    `json:"limit"`
	Spent      decimal.Decimal    `json:"spent"`
	Percentage decimal.Decimal    `json:"percentage"`
	Overage    decimal.Decimal    `json:"overage"`
	Message    string             `json:"message"`
}

// Percentage returns spent as a percentage of limit. A zero or negative
// limit yields zero. The result is not rounded; tiers compare against it.
func Percentage(spent, limit decimal.Decimal) decimal.Decimal {
	if !limit.IsPositive() {
		return decimal.Zero
	}
	return spent.Mul(hundred).Div(limit)
}

// TierFor picks the tier for a progress percentage, checking from the most
// severe tier down.
func TierFor(b models.Budget, percentage decimal.Decimal) models.WarningTier {
	if !b.Amount.IsPositive() {
		return models.TierNormal
	}
	switch {
	case percentage.GreaterThanOrEqual(hundred):
		return models.TierExceeded
	case percentage.GreaterThanOrEqual(decimal.NewFromInt(int64(b.NotificationThreshold))):
		return models.TierCritical
	case percentage.GreaterThanOrEqual(decimal.NewFromInt(WarningPercent)):
		return models.TierWarning
	}
	return models.TierNormal
}

// Evaluate adds amount to currentSpent and reports the resulting warning.
// It returns nil when the budget stays in the Normal tier.
func Evaluate(b models.Budget, currentSpent, amount decimal.Decimal) *Warning {
	newSpent := currentSpent.Add(amount)
	pct := Percentage(newSpent, b.Amount)
	tier := TierFor(b, pct)
	if tier == models.TierNormal {
		return nil
	}

	w := &Warning{
		BudgetID:   b.ID,
		CategoryID: b.CategoryID,
		Tier:       tier,
		Limit:      b.Amount,
		Spent:      newSpent,
		Percentage: pct.Round(2),
		Overage:    decimal.Zero,
	}
	switch tier {
	case models.TierExceeded:
		w.Overage = newSpent.Sub(b.Amount)
		w.Message = fmt.Sprintf("Budget exceeded by %s (%s%% of %s spent)",
			w.Overage.StringFixedBank(2), w.Percentage.String(), b.Amount.StringFixedBank(2))
	case models.TierCritical:
		w.Message = fmt.Sprintf("Budget at %s%%, above the %d%% notification threshold (%s of %s spent)",
			w.Percentage.String(), b.NotificationThreshold, newSpent.StringFixedBank(2), b.Amount.StringFixedBank(2))
	default:
		w.Message = fmt.Sprintf("Budget at %s%% (%s of %s spent)",
			w.Percentage.String(), newSpent.StringFixedBank(2), b.Amount.StringFixedBank(2))
	}
	return w
}

// Progress summarizes spending inside one budget period. Unlike Evaluate
// the Normal tier is reported as a value.
func Progress(b models.Budget, spent decimal.Decimal) (remaining, percentage decimal.Decimal, tier models.WarningTier) {
	remaining = b.Amount.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	raw := Percentage(spent, b.Amount)
	return remaining, raw.Round(2), TierFor(b, raw)
}
