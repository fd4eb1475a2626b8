package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spendwise-server/src/logging"
	"spendwise-server/src/models"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

var secret = []byte("test-secret")

func sign(t *testing.T, key []byte, claims Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func users(list ...models.User) UserLookup {
	return func(ctx context.Context, id int64) (*models.User, error) {
		for i := range list {
			if list[i].ID == id {
				return &list[i], nil
			}
		}
		return nil, models.ErrNotFound
	}
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-User", string(Role(r.Context())))
	if UserID(r.Context()) == 0 {
		w.WriteHeader(http.StatusTeapot)
	}
}

func TestJWTAuthMiddleware(t *testing.T) {
	lookup := users(
		models.User{ID: 1, Role: models.RoleUser},
		models.User{ID: 2, Role: models.RoleUser, Locked: true},
	)
	h := JWTAuthMiddleware(secret, lookup)(http.HandlerFunc(echoUser))

	expired := Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Token abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, []byte("other"), Claims{UserID: 1}), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, secret, expired), http.StatusUnauthorized},
		{"no user id", "Bearer " + sign(t, secret, Claims{}), http.StatusUnauthorized},
		{"unknown user", "Bearer " + sign(t, secret, Claims{UserID: 9}), http.StatusUnauthorized},
		{"locked", "Bearer " + sign(t, secret, Claims{UserID: 2}), http.StatusForbidden},
		{"ok", "Bearer " + sign(t, secret, Claims{UserID: 1, Role: models.RoleUser}), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestParseTokenDefaultsRole(t *testing.T) {
	claims, err := ParseToken(sign(t, secret, Claims{UserID: 3}), secret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Role != models.RoleUser {
		t.Errorf("role = %q, want user", claims.Role)
	}
}

func TestParseTokenRejectsNone(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(s, secret); err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}
}

func TestAdminMiddleware(t *testing.T) {
	h := AdminMiddleware(http.HandlerFunc(echoUser))

	for role, want := range map[models.Role]int{
		models.RoleUser:  http.StatusForbidden,
		models.RoleAdmin: http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithUser(req.Context(), 1, role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", role, rec.Code, want)
		}
	}
}

func TestAdminClaimNeedsStoredAdminRole(t *testing.T) {
	lookup := users(
		models.User{ID: 5, Role: models.RoleUser},
		models.User{ID: 6, Role: models.RoleAdmin},
	)
	h := JWTAuthMiddleware(secret, lookup)(AdminMiddleware(http.HandlerFunc(echoUser)))

	for id, want := range map[int64]int{5: http.StatusForbidden, 6: http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+sign(t, secret, Claims{UserID: id, Role: models.RoleAdmin}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("user %d: status = %d, want %d", id, rec.Code, want)
		}
	}
}

func TestDemoModeMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		demo   bool
		method string
		role   models.Role
		want   int
	}{
		{false, http.MethodPost, models.RoleUser, http.StatusOK},
		{true, http.MethodGet, models.RoleUser, http.StatusOK},
		{true, http.MethodPost, models.RoleUser, http.StatusForbidden},
		{true, http.MethodDelete, models.RoleUser, http.StatusForbidden},
		{true, http.MethodPost, models.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/", nil)
		req = req.WithContext(WithUser(req.Context(), 1, tt.role))
		rec := httptest.NewRecorder()
		DemoModeMiddleware(tt.demo)(ok).ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("demo=%v %s as %s: status = %d, want %d", tt.demo, tt.method, tt.role, rec.Code, tt.want)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := CORSMiddleware([]string{"https://app.example.com"})(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allowed origin header = %q", got)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://other.example.com")
	rec = httptest.NewRecorder()
	CORSMiddleware([]string{"*"})(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://other.example.com" {
		t.Errorf("wildcard allow origin = %q", got)
	}
}

type observed struct {
	method, route string
	status        int
}

type fakeObserver struct{ calls []observed }

func (f *fakeObserver) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	f.calls = append(f.calls, observed{method, route, status})
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	obs := &fakeObserver{}
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Instrument(logging.L(), obs))
	r.Get("/budgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/budgets/42", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
	if len(obs.calls) != 1 {
		t.Fatalf("observed %d requests, want 1", len(obs.calls))
	}
	want := observed{http.MethodGet, "/budgets/{id}", http.StatusNotFound}
	if obs.calls[0] != want {
		t.Errorf("observed %+v, want %+v", obs.calls[0], want)
	}
}

func TestRequestIDKeepsCallerValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc" {
		t.Errorf("request id = %q, want abc", got)
	}
}
