package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultNotificationThreshold = 90

type Budget struct {
	ID                    int64           `json:"id"`
	UserID                int64           `json:"user_id"`
	CategoryID            int64           `json:"category_id"`
	Amount                decimal.Decimal `json:"amount"`
	StartDate             time.Time       `json:"start_date"`
	EndDate               time.Time       `json:"end_date"`
	IsRecurring           bool            `json:"is_recurring"`
	NotificationThreshold int             `json:"notification_threshold"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

type WarningTier string

const (
	TierNormal   WarningTier = "normal"
	TierWarning  WarningTier = "warning"
	TierCritical WarningTier = "critical"
	TierExceeded WarningTier = "exceeded"
)

// Severity orders tiers so callers can pick the worst of several.
func (t WarningTier) Severity() int {
	switch t {
	case TierWarning:
		return 1
	case TierCritical:
		return 2
	case TierExceeded:
		return 3
	}
	return 0
}
