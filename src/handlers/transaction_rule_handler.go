package handlers

import (
	"encoding/json"
	"net/http"

	"spendwise-server/src/db"
	"spendwise-server/src/middleware"
	"spendwise-server/src/models"
	"spendwise-server/src/service"

	"go.uber.org/zap"
)

type ruleRequest struct {
	Name       string          `json:"name"`
	Conditions json.RawMessage `json:"conditions"`
	CategoryID int64           `json:"category_id"`
}

func (req ruleRequest) rule(userID, id int64) *models.TransactionRule {
	return &models.TransactionRule{
		ID:         id,
		UserID:     userID,
		Name:       req.Name,
		Conditions: req.Conditions,
		CategoryID: req.CategoryID,
	}
}

func CreateTransactionRule(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req ruleRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "create transaction rule")
			return
		}
		created, err := catalog.CreateRule(r.Context(), req.rule(userID, 0))
		if err != nil {
			writeError(w, r, err, "create transaction rule")
			return
		}
		logger().Info("created transaction rule",
			zap.Int64("user_id", userID),
			zap.Int64("rule_id", created.ID),
			zap.String("name", created.Name),
		)
		writeJSON(w, http.StatusCreated, created)
	}
}

func GetAllTransactionRules(store db.RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListTransactionRules(r.Context(), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, r, err, "list transaction rules")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetTransactionRuleByID(store db.RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "rule_id")
		if err != nil {
			writeError(w, r, err, "get transaction rule")
			return
		}
		rule, err := store.GetTransactionRule(r.Context(), middleware.UserID(r.Context()), id)
		if err != nil {
			writeError(w, r, err, "get transaction rule")
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func UpdateTransactionRule(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "rule_id")
		if err != nil {
			writeError(w, r, err, "update transaction rule")
			return
		}
		var req ruleRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "update transaction rule")
			return
		}
		updated, err := catalog.UpdateRule(r.Context(), req.rule(middleware.UserID(r.Context()), id))
		if err != nil {
			writeError(w, r, err, "update transaction rule")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteTransactionRule(store db.RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "rule_id")
		if err != nil {
			writeError(w, r, err, "delete transaction rule")
			return
		}
		if err := store.DeleteTransactionRule(r.Context(), middleware.UserID(r.Context()), id); err != nil {
			writeError(w, r, err, "delete transaction rule")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// TriggerTransactionRules categorises every uncategorised transaction of
// the caller.
func TriggerTransactionRules(recorder *service.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		changed, err := recorder.ApplyRules(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, "trigger transaction rules")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "transaction rules triggered",
			"updated": changed,
		})
	}
}
