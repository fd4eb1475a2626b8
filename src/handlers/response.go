package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"spendwise-server/src/logging"
	"spendwise-server/src/middleware"
	"spendwise-server/src/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func logger() *logging.Logger {
	return logging.L().Named("handlers")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger().Warn("failed to encode response", zap.Error(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeError maps err onto a status code. Validation messages are returned
// as-is; anything unexpected is logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody(verr.Msg))
	case errors.Is(err, models.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request"))
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, models.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
	case errors.Is(err, models.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict"))
	default:
		logger().Error("request failed",
			zap.String("action", action),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int64("user_id", middleware.UserID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
		return
	}
	logger().Debug("request rejected",
		zap.String("action", action),
		zap.Int64("user_id", middleware.UserID(r.Context())),
		zap.Error(err),
	)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.Invalid("invalid request body: %v", err)
	}
	return nil
}

func parseID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, models.Invalid("invalid %s", param)
	}
	return id, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(field, s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, models.Invalid("%s must be a date (YYYY-MM-DD)", field)
}

func optionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, models.Invalid("invalid %s", name)
	}
	return &v, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, models.Invalid("invalid %s", name)
	}
	return v, nil
}
