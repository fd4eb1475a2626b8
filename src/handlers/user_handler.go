package handlers

import (
	"net/http"
	"strings"

	"spendwise-server/src/db"
	"spendwise-server/src/middleware"
	"spendwise-server/src/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func GetUser(store db.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := store.GetUserByID(r.Context(), middleware.UserID(r.Context()))
		if err != nil {
			writeError(w, r, err, "get user")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func UpdateUser(store db.UserStore, cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())

		var req struct {
			Email       string `json:"email"`
			DisplayName string `json:"display_name"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "update user")
			return
		}

		email := util.NormalizeEmail(req.Email)
		if !util.ValidateEmail(email) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid email format"))
			return
		}
		if !util.ValidateDisplayName(req.DisplayName) {
			writeJSON(w, http.StatusBadRequest, errorBody("display_name must be 1 to 60 characters"))
			return
		}

		user, err := store.UpdateUserProfile(r.Context(), userID, email, strings.TrimSpace(req.DisplayName))
		if err != nil {
			writeError(w, r, err, "update user")
			return
		}
		cache.InvalidateUser(userID)
		logger().Info("user profile updated", zap.Int64("user_id", userID))
		writeJSON(w, http.StatusOK, user)
	}
}

func ChangePassword(store db.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())

		var req struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "change password")
			return
		}

		user, err := store.GetUserByID(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, "change password")
			return
		}
		if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.CurrentPassword)); err != nil {
			logger().Warn("password change with wrong current password", zap.Int64("user_id", userID))
			writeJSON(w, http.StatusUnauthorized, errorBody("current password is incorrect"))
			return
		}
		if !util.ValidatePassword(req.NewPassword) {
			writeJSON(w, http.StatusBadRequest, errorBody(util.PasswordRule))
			return
		}
		if req.NewPassword == req.CurrentPassword {
			writeJSON(w, http.StatusBadRequest, errorBody("new password must be different from current password"))
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, r, err, "hash password")
			return
		}
		if err := store.UpdateUserPassword(r.Context(), userID, hash); err != nil {
			writeError(w, r, err, "change password")
			return
		}

		logger().Info("password changed", zap.Int64("user_id", userID))
		writeMessage(w, http.StatusOK, "password changed successfully")
	}
}

// LinkTelegram stores the chat that budget warnings are sent to.
func LinkTelegram(store db.UserStore, cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req struct {
			ChatID int64 `json:"chat_id"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, r, err, "link telegram")
			return
		}
		if req.ChatID == 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("chat_id is required"))
			return
		}
		if err := store.SetTelegramChatID(r.Context(), userID, &req.ChatID); err != nil {
			writeError(w, r, err, "link telegram")
			return
		}
		cache.InvalidateUser(userID)
		logger().Info("telegram chat linked", zap.Int64("user_id", userID))
		writeMessage(w, http.StatusOK, "telegram chat linked")
	}
}

func UnlinkTelegram(store db.UserStore, cache *db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if err := store.SetTelegramChatID(r.Context(), userID, nil); err != nil {
			writeError(w, r, err, "unlink telegram")
			return
		}
		cache.InvalidateUser(userID)
		w.WriteHeader(http.StatusNoContent)
	}
}
