package handlers

import (
	"net/http"

	"spendwise-server/src/db"
	"spendwise-server/src/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// GetNotifications lists budget warnings, newest first. ?unread=true limits
// the list to unread ones.
func GetNotifications(store db.NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unread, err := queryBool(r, "unread")
		if err != nil {
			writeError(w, r, err, "list notifications")
			return
		}
		list, err := store.ListNotifications(r.Context(), middleware.UserID(r.Context()), unread)
		if err != nil {
			writeError(w, r, err, "list notifications")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func MarkNotificationRead(store db.NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "notification_id")
		if _, err := uuid.Parse(id); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid notification_id"))
			return
		}
		if err := store.MarkNotificationRead(r.Context(), middleware.UserID(r.Context()), id); err != nil {
			writeError(w, r, err, "mark notification read")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
