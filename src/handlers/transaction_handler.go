package handlers

import (
	"net/http"
	"strconv"

	"spendwise-server/src/db"
	"spendwise-server/src/middleware"
	"spendwise-server/src/models"
	"spendwise-server/src/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxListLimit = 1000

type transactionRequest struct {
	AccountID   int64                  `json:"account_id"`
	CategoryID  *int64                 `json:"category_id"`
	Amount      decimal.Decimal        `json:"amount"`
	Type        models.TransactionType `json:"type"`
	Description string                 `json:"description"`
	Date        *string                `json:"date"`
}

func (req transactionRequest) transaction(userID, id int64) (*models.Transaction, error) {
	t := &models.Transaction{
		ID:          id,
		UserID:      userID,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Type:        req.Type,
		Description: req.Description,
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	if date != nil {
		t.Date = *date
	}
	return t, nil
}

// CreateTransaction records the transaction; budgets are evaluated in the
// background.
func CreateTransaction(recorder *service.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req transactionRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "create transaction")
			return
		}
		t, err := req.transaction(userID, 0)
		if err != nil {
			writeError(w, r, err, "create transaction")
			return
		}
		created, err := recorder.Create(r.Context(), t)
		if err != nil {
			writeError(w, r, err, "create transaction")
			return
		}
		logger().Info("created transaction",
			zap.Int64("user_id", userID),
			zap.Int64("transaction_id", created.ID),
			zap.Int64("account_id", created.AccountID),
		)
		writeJSON(w, http.StatusCreated, created)
	}
}

func QuickAddTransaction(recorder *service.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text      string `json:"text"`
			AccountID int64  `json:"account_id"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "quick add")
			return
		}
		result, err := recorder.QuickAdd(r.Context(), middleware.UserID(r.Context()), req.AccountID, req.Text)
		if err != nil {
			writeError(w, r, err, "quick add")
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func GetTransactions(store db.TransactionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := transactionFilter(r)
		if err != nil {
			writeError(w, r, err, "list transactions")
			return
		}
		txs, err := store.ListTransactions(r.Context(), middleware.UserID(r.Context()), filter)
		if err != nil {
			writeError(w, r, err, "list transactions")
			return
		}
		writeJSON(w, http.StatusOK, txs)
	}
}

func transactionFilter(r *http.Request) (models.TransactionFilter, error) {
	var f models.TransactionFilter
	var err error
	q := r.URL.Query()

	if f.AccountID, err = queryInt64(r, "account_id"); err != nil {
		return f, err
	}
	if f.CategoryID, err = queryInt64(r, "category_id"); err != nil {
		return f, err
	}
	if typ := models.TransactionType(q.Get("type")); typ != "" {
		if !typ.Valid() {
			return f, models.Invalid("type must be income or expense")
		}
		f.Type = typ
	}
	if f.Uncategorized, err = queryBool(r, "uncategorized"); err != nil {
		return f, err
	}
	if from := q.Get("from"); from != "" {
		if f.From, err = optionalDate("from", &from); err != nil {
			return f, err
		}
	}
	if to := q.Get("to"); to != "" {
		if f.To, err = optionalDate("to", &to); err != nil {
			return f, err
		}
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, models.Invalid("to must not be before from")
	}
	if raw := q.Get("limit"); raw != "" {
		f.Limit, err = strconv.Atoi(raw)
		if err != nil || f.Limit <= 0 {
			return f, models.Invalid("limit must be a positive integer")
		}
		f.Limit = min(f.Limit, maxListLimit)
	}
	return f, nil
}

func GetTransactionByID(store db.TransactionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "transaction_id")
		if err != nil {
			writeError(w, r, err, "get transaction")
			return
		}
		t, err := store.GetTransaction(r.Context(), middleware.UserID(r.Context()), id)
		if err != nil {
			writeError(w, r, err, "get transaction")
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func UpdateTransaction(recorder *service.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "transaction_id")
		if err != nil {
			writeError(w, r, err, "update transaction")
			return
		}
		var req transactionRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "update transaction")
			return
		}
		t, err := req.transaction(middleware.UserID(r.Context()), id)
		if err != nil {
			writeError(w, r, err, "update transaction")
			return
		}
		updated, err := recorder.Update(r.Context(), t)
		if err != nil {
			writeError(w, r, err, "update transaction")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteTransaction(recorder *service.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		id, err := parseID(r, "transaction_id")
		if err != nil {
			writeError(w, r, err, "delete transaction")
			return
		}
		if err := recorder.Delete(r.Context(), userID, id); err != nil {
			writeError(w, r, err, "delete transaction")
			return
		}
		logger().Info("deleted transaction", zap.Int64("user_id", userID), zap.Int64("transaction_id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}
