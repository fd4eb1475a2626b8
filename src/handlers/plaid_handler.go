package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"spendwise-server/src/db"
	"spendwise-server/src/middleware"
	"spendwise-server/src/plaid"

	"go.uber.org/zap"
)

const webhookSyncTimeout = 2 * time.Minute

func CreateLinkToken(svc *plaid.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := svc.LinkToken(r.Context(), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, r, err, "create link token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"link_token": token})
	}
}

// ExchangePublicToken binds the Plaid item to one of the caller's accounts.
func ExchangePublicToken(svc *plaid.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PublicToken string `json:"public_token"`
			AccountID   int64  `json:"account_id"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "exchange public token")
			return
		}
		if req.PublicToken == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("public_token is required"))
			return
		}
		item, err := svc.Link(r.Context(), middleware.UserID(r.Context()), req.PublicToken, req.AccountID)
		if err != nil {
			writeError(w, r, err, "exchange public token")
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

func GetPlaidItems(store db.PlaidItemStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := store.ListPlaidItems(r.Context(), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, r, err, "list plaid items")
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func SyncTransactions(svc *plaid.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		id, err := parseID(r, "item_id")
		if err != nil {
			writeError(w, r, err, "sync transactions")
			return
		}
		res, err := svc.Sync(r.Context(), userID, id)
		if err != nil {
			writeError(w, r, err, "sync transactions")
			return
		}
		logger().Info("plaid sync finished",
			zap.Int64("user_id", userID),
			zap.Int64("item_id", id),
			zap.Int("added", res.Added),
			zap.Int("duplicates", res.Duplicates),
		)
		writeJSON(w, http.StatusOK, res)
	}
}

func DeletePlaidItem(svc *plaid.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "item_id")
		if err != nil {
			writeError(w, r, err, "delete plaid item")
			return
		}
		if err := svc.Unlink(r.Context(), middleware.UserID(r.Context()), id); err != nil {
			writeError(w, r, err, "delete plaid item")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type webhookPayload struct {
	WebhookType string `json:"webhook_type"`
	WebhookCode string `json:"webhook_code"`
	ItemID      string `json:"item_id"`
}

func (p webhookPayload) wantsSync() bool {
	if p.WebhookType != "TRANSACTIONS" {
		return false
	}
	switch p.WebhookCode {
	case "SYNC_UPDATES_AVAILABLE", "INITIAL_UPDATE", "HISTORICAL_UPDATE", "DEFAULT_UPDATE":
		return true
	}
	return false
}

// PlaidWebhook verifies the Plaid-Verification header and starts a sync for
// transaction updates. Plaid only needs a fast 200, so the sync runs after
// the response.
func PlaidWebhook(svc *plaid.Service, verifier *plaid.WebhookVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
			return
		}
		if err := verifier.Verify(r.Context(), body, r.Header.Get("Plaid-Verification")); err != nil {
			logger().Warn("rejected plaid webhook", zap.Error(err))
			if errors.Is(err, plaid.ErrInvalidWebhook) {
				writeJSON(w, http.StatusUnauthorized, errorBody("invalid webhook signature"))
				return
			}
			writeError(w, r, err, "verify webhook")
			return
		}

		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid webhook payload"))
			return
		}
		logger().Info("plaid webhook",
			zap.String("type", payload.WebhookType),
			zap.String("code", payload.WebhookCode),
			zap.String("item_id", payload.ItemID),
		)

		if payload.wantsSync() && payload.ItemID != "" {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), webhookSyncTimeout)
			go func() {
				defer cancel()
				res, err := svc.SyncByItemID(ctx, payload.ItemID)
				if err != nil {
					logger().Error("webhook sync failed", zap.String("item_id", payload.ItemID), zap.Error(err))
					return
				}
				logger().Info("webhook sync finished", zap.String("item_id", payload.ItemID), zap.Int("added", res.Added))
			}()
		}
		writeMessage(w, http.StatusOK, "received")
	}
}
