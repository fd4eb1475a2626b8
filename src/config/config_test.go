package config

import (
	"strings"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "test.db")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PLAID_ENV", "sandbox")
	t.Setenv("DEMO_MODE", "")
	t.Setenv("EVAL_QUEUE_SIZE", "")
	t.Setenv("EVAL_WORKERS", "")
	t.Setenv("CACHE_MAX_COST", "")
	t.Setenv("PLAID_CLIENT_ID", "")
	t.Setenv("PLAID_SECRET", "")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBDriver != DriverSQLite || cfg.SQLitePath != "test.db" {
		t.Errorf("unexpected db config %+v", cfg)
	}
	if cfg.EvalQueueSize != 1000 || cfg.EvalWorkers != 4 || cfg.CacheMaxCost != 10000 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.PlaidEnabled() {
		t.Error("expected plaid to be disabled without credentials")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"missing secret", "JWT_SECRET", "", "JWT_SECRET"},
		{"unknown driver", "DB_DRIVER", "mysql", "DB_DRIVER"},
		{"bad int", "EVAL_WORKERS", "four", "EVAL_WORKERS"},
		{"bad bool", "DEMO_MODE", "maybe", "DEMO_MODE"},
		{"non-positive queue", "EVAL_QUEUE_SIZE", "0", "EVAL_QUEUE_SIZE"},
		{"bad plaid env", "PLAID_ENV", "staging", "PLAID_ENV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPostgresNeedsURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("expected DATABASE_URL error, got %v", err)
	}
}
