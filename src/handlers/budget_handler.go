package handlers

import (
	"net/http"

	"spendwise-server/src/middleware"
	"spendwise-server/src/models"
	"spendwise-server/src/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type budgetRequest struct {
	CategoryID            int64           `json:"category_id"`
	Amount                decimal.Decimal `json:"amount"`
	StartDate             string          `json:"start_date"`
	EndDate               string          `json:"end_date"`
	IsRecurring           bool            `json:"is_recurring"`
	NotificationThreshold *int            `json:"notification_threshold"`
}

func (req budgetRequest) budget(userID, id int64) (*models.Budget, error) {
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}
	threshold := models.DefaultNotificationThreshold
	if req.NotificationThreshold != nil {
		threshold = *req.NotificationThreshold
	}
	return &models.Budget{
		ID:                    id,
		UserID:                userID,
		CategoryID:            req.CategoryID,
		Amount:                req.Amount,
		StartDate:             start,
		EndDate:               end,
		IsRecurring:           req.IsRecurring,
		NotificationThreshold: threshold,
	}, nil
}

func CreateBudget(budgets *service.Budgets) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req budgetRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "create budget")
			return
		}
		b, err := req.budget(userID, 0)
		if err != nil {
			writeError(w, r, err, "create budget")
			return
		}
		created, err := budgets.Create(r.Context(), b)
		if err != nil {
			writeError(w, r, err, "create budget")
			return
		}
		logger().Info("created budget",
			zap.Int64("user_id", userID),
			zap.Int64("budget_id", created.ID),
			zap.Int64("category_id", created.CategoryID),
		)
		writeJSON(w, http.StatusCreated, created)
	}
}

// GetAllBudgetsForUser lists budgets with their progress for today.
func GetAllBudgetsForUser(budgets *service.Budgets) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress, err := budgets.Today(r.Context(), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, r, err, "list budgets")
			return
		}
		writeJSON(w, http.StatusOK, progress)
	}
}

func GetBudgetByID(budgets *service.Budgets) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "budget_id")
		if err != nil {
			writeError(w, r, err, "get budget")
			return
		}
		progress, err := budgets.Today(r.Context(), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, r, err, "get budget")
			return
		}
		for _, p := range progress {
			if p.ID == id {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
		writeError(w, r, models.ErrNotFound, "get budget")
	}
}

func UpdateBudget(budgets *service.Budgets) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "budget_id")
		if err != nil {
			writeError(w, r, err, "update budget")
			return
		}
		var req budgetRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "update budget")
			return
		}
		b, err := req.budget(middleware.UserID(r.Context()), id)
		if err != nil {
			writeError(w, r, err, "update budget")
			return
		}
		updated, err := budgets.Update(r.Context(), b)
		if err != nil {
			writeError(w, r, err, "update budget")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteBudget(budgets *service.Budgets) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		id, err := parseID(r, "budget_id")
		if err != nil {
			writeError(w, r, err, "delete budget")
			return
		}
		if err := budgets.Delete(r.Context(), userID, id); err != nil {
			writeError(w, r, err, "delete budget")
			return
		}
		logger().Info("deleted budget", zap.Int64("user_id", userID), zap.Int64("budget_id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}
