package handlers

import (
	"net/http"

	"spendwise-server/src/middleware"
	"spendwise-server/src/service"
)

// GetDashboard serves the monthly overview. ?month=YYYY-MM, defaulting to
// the current month.
func GetDashboard(dashboards *service.Dashboards) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		month, err := dashboards.ParseMonth(r.URL.Query().Get("month"))
		if err != nil {
			writeError(w, r, err, "get dashboard")
			return
		}
		d, err := dashboards.Get(r.Context(), middleware.UserID(r.Context()), month)
		if err != nil {
			writeError(w, r, err, "get dashboard")
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}
