package handlers

import (
	"net/http"

	"spendwise-server/src/db"
	"spendwise-server/src/middleware"
	"spendwise-server/src/models"
	"spendwise-server/src/service"

	"github.com/shopspring/decimal"
)

type goalRequest struct {
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    *string         `json:"target_date"`
}

func (req goalRequest) goal(userID, id int64) (*models.Goal, error) {
	target, err := optionalDate("target_date", req.TargetDate)
	if err != nil {
		return nil, err
	}
	return &models.Goal{
		ID:            id,
		UserID:        userID,
		Name:          req.Name,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		TargetDate:    target,
	}, nil
}

func progressOf(g models.Goal) models.GoalProgress {
	return models.GoalProgress{Goal: g, Percentage: g.Percentage(), Achieved: g.Achieved()}
}

func CreateGoal(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req goalRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "create goal")
			return
		}
		g, err := req.goal(middleware.UserID(r.Context()), 0)
		if err != nil {
			writeError(w, r, err, "create goal")
			return
		}
		created, err := catalog.CreateGoal(r.Context(), g)
		if err != nil {
			writeError(w, r, err, "create goal")
			return
		}
		writeJSON(w, http.StatusCreated, progressOf(*created))
	}
}

func GetGoals(store db.GoalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		goals, err := store.ListGoals(r.Context(), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, r, err, "list goals")
			return
		}
		out := make([]models.GoalProgress, 0, len(goals))
		for _, g := range goals {
			out = append(out, progressOf(g))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func UpdateGoal(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "goal_id")
		if err != nil {
			writeError(w, r, err, "update goal")
			return
		}
		var req goalRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "update goal")
			return
		}
		g, err := req.goal(middleware.UserID(r.Context()), id)
		if err != nil {
			writeError(w, r, err, "update goal")
			return
		}
		updated, err := catalog.UpdateGoal(r.Context(), g)
		if err != nil {
			writeError(w, r, err, "update goal")
			return
		}
		writeJSON(w, http.StatusOK, progressOf(*updated))
	}
}

func ContributeToGoal(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "goal_id")
		if err != nil {
			writeError(w, r, err, "contribute to goal")
			return
		}
		var req struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "contribute to goal")
			return
		}
		g, err := catalog.Contribute(r.Context(), middleware.UserID(r.Context()), id, req.Amount)
		if err != nil {
			writeError(w, r, err, "contribute to goal")
			return
		}
		writeJSON(w, http.StatusOK, progressOf(*g))
	}
}

func DeleteGoal(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "goal_id")
		if err != nil {
			writeError(w, r, err, "delete goal")
			return
		}
		if err := catalog.DeleteGoal(r.Context(), middleware.UserID(r.Context()), id); err != nil {
			writeError(w, r, err, "delete goal")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
