// Package sqlite provides a SQLite-backed implementation of db.Store for
// local single-user installs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"spendwise-server/src/db"
	"spendwise-server/src/models"
)

var _ db.Store = (*Store)(nil)

const (
	dateLayout = "2006-01-02"
	// Fixed width so timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Store struct {
	db *sql.DB
}

// New opens the database at path, creating parent directories, and applies
// the schema.
func New(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers; SQLite would otherwise return
	// SQLITE_BUSY on concurrent write transactions.
	conn.SetMaxOpenConns(1)

	s := &Store{db: conn}
	if err := s.Migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// timestamps parses created/updated columns into their destinations.
func timestamps(created, updated string, createdAt, updatedAt *time.Time) error {
	var err error
	if *createdAt, err = parseTime(created); err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}
	if updatedAt == nil {
		return nil
	}
	if *updatedAt, err = parseTime(updated); err != nil {
		return fmt.Errorf("parse updated_at: %w", err)
	}
	return nil
}

// mapErr translates driver errors into the model sentinels.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%s: %w: %v", what, models.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// execOne runs a statement that must touch exactly one row.
func execOne(ctx context.Context, ex interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, what, query string, args ...any) error {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return nil
}
