package handlers

import (
	"net/http"

	"spendwise-server/src/db"
	"spendwise-server/src/middleware"
	"spendwise-server/src/models"
	"spendwise-server/src/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type accountRequest struct {
	Name     string             `json:"name"`
	Type     models.AccountType `json:"type"`
	Currency string             `json:"currency"`
	// Balance is the opening balance and is ignored on update.
	Balance decimal.Decimal `json:"balance"`
}

func CreateAccount(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req accountRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "create account")
			return
		}
		created, err := catalog.CreateAccount(r.Context(), &models.Account{
			UserID:   userID,
			Name:     req.Name,
			Type:     req.Type,
			Currency: req.Currency,
			Balance:  req.Balance,
		})
		if err != nil {
			writeError(w, r, err, "create account")
			return
		}
		logger().Info("created account", zap.Int64("user_id", userID), zap.Int64("account_id", created.ID))
		writeJSON(w, http.StatusCreated, created)
	}
}

func GetAccounts(store db.AccountStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := store.ListAccounts(r.Context(), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, r, err, "list accounts")
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func GetAccountByID(store db.AccountStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "account_id")
		if err != nil {
			writeError(w, r, err, "get account")
			return
		}
		account, err := store.GetAccount(r.Context(), middleware.UserID(r.Context()), id)
		if err != nil {
			writeError(w, r, err, "get account")
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func UpdateAccount(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "account_id")
		if err != nil {
			writeError(w, r, err, "update account")
			return
		}
		var req accountRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "update account")
			return
		}
		updated, err := catalog.UpdateAccount(r.Context(), &models.Account{
			ID:       id,
			UserID:   middleware.UserID(r.Context()),
			Name:     req.Name,
			Type:     req.Type,
			Currency: req.Currency,
		})
		if err != nil {
			writeError(w, r, err, "update account")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteAccount(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		id, err := parseID(r, "account_id")
		if err != nil {
			writeError(w, r, err, "delete account")
			return
		}
		if err := catalog.DeleteAccount(r.Context(), userID, id); err != nil {
			writeError(w, r, err, "delete account")
			return
		}
		logger().Info("deleted account", zap.Int64("user_id", userID), zap.Int64("account_id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}
