package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spendwise-server/src/db"
	"spendwise-server/src/db/sqlite"
	"spendwise-server/src/metrics"
	"spendwise-server/src/middleware"
	"spendwise-server/src/models"
	"spendwise-server/src/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var secret = []byte("router-test-secret")

type testServer struct {
	t      *testing.T
	store  *sqlite.Store
	router http.Handler
	user   *models.User
	other  *models.User
	admin  *models.User
}

func newTestServer(t *testing.T, demo bool) *testServer {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	cache, err := db.NewCache(1000)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(cache.Close)

	m := metrics.New("spendwise")
	reg := prometheus.NewRegistry()
	reg.MustRegister(m)

	budgets := service.NewBudgets(store, cache)
	s := &testServer{t: t, store: store}
	s.router = NewRouter(Deps{
		Store:       store,
		Cache:       cache,
		Recorder:    service.NewRecorder(store, cache, service.WithObserver(m)),
		Budgets:     budgets,
		Catalog:     service.NewCatalog(store, cache),
		Dashboards:  service.NewDashboards(store, cache, budgets),
		Metrics:     m,
		Gatherer:    reg,
		JWTSecret:   secret,
		CORSOrigins: []string{"http://localhost:5173"},
		DemoMode:    demo,
	})

	for _, u := range []struct {
		dst   **models.User
		email string
		role  models.Role
	}{
		{&s.user, "an@example.com", models.RoleUser},
		{&s.other, "binh@example.com", models.RoleUser},
		{&s.admin, "root@example.com", models.RoleAdmin},
	} {
		created, err := store.CreateUser(ctx, &models.User{Email: u.email, DisplayName: u.email, Role: u.role})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		*u.dst = created
	}
	return s
}

func (s *testServer) token(u *models.User) string {
	claims := middleware.Claims{
		UserID: u.ID,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		s.t.Fatalf("sign token: %v", err)
	}
	return signed
}

// do sends body (marshalled when not nil) as u and decodes a JSON response
// into out when out is not nil.
func (s *testServer) do(u *models.User, method, path string, body any, out any) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(u))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			s.t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec
}

func (s *testServer) expect(rec *httptest.ResponseRecorder, want int) {
	s.t.Helper()
	if rec.Code != want {
		s.t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(nil, http.MethodGet, "/health", nil, nil)
	s.expect(rec, http.StatusOK)
	if rec.Body.String() != "ok" {
		t.Errorf("health body = %q", rec.Body.String())
	}

	s.expect(s.do(s.user, http.MethodGet, "/api/accounts", nil, nil), http.StatusOK)

	rec = s.do(nil, http.MethodGet, "/metrics", nil, nil)
	s.expect(rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `spendwise_http_requests_total{method="GET",route="/api/accounts",status="200"} 1`) {
		t.Errorf("metrics missing labelled request counter:\n%s", rec.Body.String())
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(nil, http.MethodGet, "/api/accounts", nil, nil)
	s.expect(rec, http.StatusUnauthorized)

	ghost := &models.User{ID: 9999, Role: models.RoleUser}
	s.expect(s.do(ghost, http.MethodGet, "/api/accounts", nil, nil), http.StatusUnauthorized)

	s.expect(s.do(s.user, http.MethodGet, "/api/admin/users", nil, nil), http.StatusForbidden)
}

func TestRecordTransactionRaisesBudgetWarning(t *testing.T) {
	s := newTestServer(t, false)
	now := time.Now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	var account models.Account
	s.expect(s.do(s.user, http.MethodPost, "/api/accounts",
		map[string]any{"name": "Ví", "balance": "1000000"}, &account), http.StatusCreated)
	if account.Type != models.AccountCash || account.Currency != "VND" {
		t.Errorf("account defaults = %s/%s, want cash/VND", account.Type, account.Currency)
	}

	var category models.Category
	s.expect(s.do(s.user, http.MethodPost, "/api/categories",
		map[string]any{"name": "Ăn uống", "type": "expense"}, &category), http.StatusCreated)

	var b models.Budget
	s.expect(s.do(s.user, http.MethodPost, "/api/budgets", map[string]any{
		"category_id": category.ID,
		"amount":      "100000",
		"start_date":  first.Format("2006-01-02"),
		"end_date":    last.Format("2006-01-02"),
	}, &b), http.StatusCreated)
	if b.NotificationThreshold != models.DefaultNotificationThreshold {
		t.Errorf("threshold = %d, want default %d", b.NotificationThreshold, models.DefaultNotificationThreshold)
	}

	var tx models.Transaction
	s.expect(s.do(s.user, http.MethodPost, "/api/transactions", map[string]any{
		"account_id":  account.ID,
		"category_id": category.ID,
		"amount":      "95000",
		"type":        "expense",
		"description": "Lẩu",
		"date":        now.Format("2006-01-02"),
	}, &tx), http.StatusCreated)

	var got models.Account
	s.expect(s.do(s.user, http.MethodGet, fmt.Sprintf("/api/accounts/%d", account.ID), nil, &got), http.StatusOK)
	if got.Balance.String() != "905000" {
		t.Errorf("balance = %s, want 905000", got.Balance)
	}

	var progress []models.BudgetProgress
	s.expect(s.do(s.user, http.MethodGet, "/api/budgets", nil, &progress), http.StatusOK)
	if len(progress) != 1 || progress[0].Tier != models.TierCritical || !progress[0].Active {
		t.Fatalf("progress = %+v, want one active critical budget", progress)
	}

	var notes []models.Notification
	s.expect(s.do(s.user, http.MethodGet, "/api/notifications?unread=true", nil, &notes), http.StatusOK)
	if len(notes) != 1 || notes[0].Tier != models.TierCritical {
		t.Fatalf("notifications = %+v, want one critical", notes)
	}
	s.expect(s.do(s.user, http.MethodPut, "/api/notifications/"+notes[0].ID+"/read", nil, nil), http.StatusNoContent)
	s.expect(s.do(s.user, http.MethodGet, "/api/notifications?unread=true", nil, &notes), http.StatusOK)
	if len(notes) != 0 {
		t.Errorf("unread after mark = %d, want 0", len(notes))
	}

	var list []models.Transaction
	s.expect(s.do(s.user, http.MethodGet,
		fmt.Sprintf("/api/transactions?type=expense&account_id=%d&limit=10", account.ID), nil, &list), http.StatusOK)
	if len(list) != 1 || list[0].ID != tx.ID {
		t.Errorf("filtered list = %+v", list)
	}

	s.expect(s.do(s.user, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", tx.ID), nil, nil), http.StatusNoContent)
	s.expect(s.do(s.user, http.MethodGet, fmt.Sprintf("/api/accounts/%d", account.ID), nil, &got), http.StatusOK)
	if got.Balance.String() != "1000000" {
		t.Errorf("balance after delete = %s, want 1000000", got.Balance)
	}
}

func TestValidationAndOwnership(t *testing.T) {
	s := newTestServer(t, false)

	var theirs models.Account
	s.expect(s.do(s.other, http.MethodPost, "/api/accounts", map[string]any{"name": "Bank", "type": "bank"}, &theirs), http.StatusCreated)
	var mine models.Account
	s.expect(s.do(s.user, http.MethodPost, "/api/accounts", map[string]any{"name": "Cash"}, &mine), http.StatusCreated)

	s.expect(s.do(s.user, http.MethodGet, fmt.Sprintf("/api/accounts/%d", theirs.ID), nil, nil), http.StatusNotFound)

	rec := s.do(s.user, http.MethodPost, "/api/transactions", map[string]any{
		"account_id": theirs.ID, "amount": "1000", "type": "expense",
	}, nil)
	s.expect(rec, http.StatusBadRequest)
	if msg := errorOf(t, rec); !strings.Contains(msg, "not found") {
		t.Errorf("error = %q, want a not found message", msg)
	}

	rec = s.do(s.user, http.MethodPost, "/api/transactions", map[string]any{
		"account_id": mine.ID, "amount": "-5", "type": "expense",
	}, nil)
	s.expect(rec, http.StatusBadRequest)

	s.expect(s.do(s.user, http.MethodPost, "/api/transactions", `{"account_id": `, nil), http.StatusBadRequest)
	s.expect(s.do(s.user, http.MethodPost, "/api/accounts", `{"name":"x","colour":"red"}`, nil), http.StatusBadRequest)
	s.expect(s.do(s.user, http.MethodGet, "/api/transactions/abc", nil, nil), http.StatusBadRequest)
	s.expect(s.do(s.user, http.MethodGet, "/api/transactions?from=yesterday", nil, nil), http.StatusBadRequest)
	s.expect(s.do(s.user, http.MethodGet, "/api/dashboard?month=2025-13", nil, nil), http.StatusBadRequest)
	s.expect(s.do(s.user, http.MethodPut, "/api/notifications/not-a-uuid/read", nil, nil), http.StatusBadRequest)
}

func TestQuickAdd(t *testing.T) {
	s := newTestServer(t, false)

	var account models.Account
	s.expect(s.do(s.user, http.MethodPost, "/api/accounts", map[string]any{"name": "Ví"}, &account), http.StatusCreated)
	var category models.Category
	s.expect(s.do(s.user, http.MethodPost, "/api/categories",
		map[string]any{"name": "Cà phê", "type": "expense"}, &category), http.StatusCreated)

	var res struct {
		Transaction models.Transaction `json:"transaction"`
		Warning     json.RawMessage    `json:"budget_warning"`
	}
	s.expect(s.do(s.user, http.MethodPost, "/api/transactions/quick-add",
		map[string]any{"text": "cà phê sáng 45k", "account_id": account.ID}, &res), http.StatusCreated)
	if res.Transaction.Amount.String() != "45000" {
		t.Errorf("amount = %s, want 45000", res.Transaction.Amount)
	}
	if res.Transaction.CategoryID == nil || *res.Transaction.CategoryID != category.ID {
		t.Errorf("category = %v, want %d", res.Transaction.CategoryID, category.ID)
	}
	if string(res.Warning) != "null" {
		t.Errorf("warning = %s, want null without budgets", res.Warning)
	}

	s.expect(s.do(s.user, http.MethodPost, "/api/transactions/quick-add",
		map[string]any{"text": "không có số", "account_id": account.ID}, nil), http.StatusBadRequest)
}

func TestGoalsAndDashboard(t *testing.T) {
	s := newTestServer(t, false)

	var goal models.GoalProgress
	s.expect(s.do(s.user, http.MethodPost, "/api/goals",
		map[string]any{"name": "Laptop", "target_amount": "20000000"}, &goal), http.StatusCreated)
	s.expect(s.do(s.user, http.MethodPost, fmt.Sprintf("/api/goals/%d/contribute", goal.ID),
		map[string]any{"amount": "5000000"}, &goal), http.StatusOK)
	if goal.Percentage.String() != "25" || goal.Achieved {
		t.Errorf("goal progress = %s achieved=%v, want 25 false", goal.Percentage, goal.Achieved)
	}
	s.expect(s.do(s.user, http.MethodPost, fmt.Sprintf("/api/goals/%d/contribute", goal.ID),
		map[string]any{"amount": "0"}, nil), http.StatusBadRequest)

	var dash models.Dashboard
	s.expect(s.do(s.user, http.MethodGet, "/api/dashboard", nil, &dash), http.StatusOK)
	if len(dash.Goals) != 1 || len(dash.Trend) != 6 {
		t.Errorf("dashboard goals=%d trend=%d, want 1 and 6", len(dash.Goals), len(dash.Trend))
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, false)

	var users []models.User
	s.expect(s.do(s.admin, http.MethodGet, "/api/admin/users", nil, &users), http.StatusOK)
	if len(users) != 3 {
		t.Errorf("users = %d, want 3", len(users))
	}

	// Warm the auth cache so the lock has to invalidate it.
	s.expect(s.do(s.user, http.MethodGet, "/api/user", nil, nil), http.StatusOK)
	s.expect(s.do(s.admin, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/lock", s.user.ID), nil, nil), http.StatusOK)
	s.expect(s.do(s.user, http.MethodGet, "/api/user", nil, nil), http.StatusForbidden)
	s.expect(s.do(s.admin, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/unlock", s.user.ID), nil, nil), http.StatusOK)
	s.expect(s.do(s.user, http.MethodGet, "/api/user", nil, nil), http.StatusOK)

	s.expect(s.do(s.admin, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/lock", s.admin.ID), nil, nil), http.StatusBadRequest)

	var created models.User
	s.expect(s.do(s.admin, http.MethodPost, "/api/admin/users", map[string]any{
		"email": "Chi@Example.com", "password": "Sup3r!secret",
	}, &created), http.StatusCreated)
	if created.Email != "chi@example.com" || created.Role != models.RoleUser {
		t.Errorf("created = %s/%s", created.Email, created.Role)
	}
	s.expect(s.do(s.admin, http.MethodPost, "/api/admin/users", map[string]any{
		"email": "weak@example.com", "password": "weak",
	}, nil), http.StatusBadRequest)

	s.expect(s.do(s.admin, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", created.ID),
		map[string]any{"role": "admin"}, nil), http.StatusOK)
	s.expect(s.do(s.admin, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", created.ID),
		map[string]any{"role": "owner"}, nil), http.StatusBadRequest)

	// A token issued while the user was admin stops working on admin routes
	// once the stored role is demoted.
	created.Role = models.RoleAdmin
	s.expect(s.do(&created, http.MethodGet, "/api/admin/users", nil, nil), http.StatusOK)
	s.expect(s.do(s.admin, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", created.ID),
		map[string]any{"role": "user"}, nil), http.StatusOK)
	s.expect(s.do(&created, http.MethodGet, "/api/admin/users", nil, nil), http.StatusForbidden)

	s.expect(s.do(s.admin, http.MethodPost, "/api/admin/cache/clear/dashboard", nil, nil), http.StatusOK)
	s.expect(s.do(s.admin, http.MethodPost, "/api/admin/cache/clear/all", nil, nil), http.StatusOK)
	s.expect(s.do(s.admin, http.MethodPost, "/api/admin/cache/clear/sessions", nil, nil), http.StatusBadRequest)

	s.expect(s.do(s.admin, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", created.ID), nil, nil), http.StatusNoContent)
	s.expect(s.do(s.admin, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", created.ID), nil, nil), http.StatusNotFound)
}

func TestDemoModeIsReadOnly(t *testing.T) {
	s := newTestServer(t, true)

	s.expect(s.do(s.user, http.MethodGet, "/api/accounts", nil, nil), http.StatusOK)
	s.expect(s.do(s.user, http.MethodPost, "/api/accounts", map[string]any{"name": "Ví"}, nil), http.StatusForbidden)
	s.expect(s.do(s.admin, http.MethodPost, "/api/accounts", map[string]any{"name": "Ví"}, nil), http.StatusCreated)
}

func TestUserProfile(t *testing.T) {
	s := newTestServer(t, false)

	var u models.User
	s.expect(s.do(s.user, http.MethodPut, "/api/user",
		map[string]any{"email": "an.nguyen@example.com", "display_name": "An"}, &u), http.StatusOK)
	if u.Email != "an.nguyen@example.com" || u.DisplayName != "An" {
		t.Errorf("profile = %s/%s", u.Email, u.DisplayName)
	}
	s.expect(s.do(s.user, http.MethodPut, "/api/user",
		map[string]any{"email": "nope", "display_name": "An"}, nil), http.StatusBadRequest)

	s.expect(s.do(s.user, http.MethodPut, "/api/user/telegram", map[string]any{"chat_id": 4242}, nil), http.StatusOK)
	s.expect(s.do(s.user, http.MethodGet, "/api/user", nil, &u), http.StatusOK)
	if u.TelegramChatID == nil || *u.TelegramChatID != 4242 {
		t.Errorf("chat id = %v, want 4242", u.TelegramChatID)
	}
	s.expect(s.do(s.user, http.MethodDelete, "/api/user/telegram", nil, nil), http.StatusNoContent)
}
