package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"spendwise-server/src/models"

	"github.com/shopspring/decimal"
)

// Runs only against a disposable database named by TEST_DATABASE_URL.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTransactionBalanceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	email := "pg-" + time.Now().Format("150405.000000000") + "@example.com"
	u, err := store.CreateUser(ctx, &models.User{Email: email})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	t.Cleanup(func() { store.DeleteUser(context.Background(), u.ID) })

	a, err := store.CreateAccount(ctx, &models.Account{
		UserID: u.ID, Name: "Bank", Type: models.AccountBank, Balance: decimal.NewFromInt(100), Currency: "USD",
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	c, err := store.CreateCategory(ctx, &models.Category{UserID: u.ID, Name: "Food", Type: models.TransactionExpense})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	date := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	tx, err := store.CreateTransaction(ctx, &models.Transaction{
		UserID: u.ID, AccountID: a.ID, CategoryID: &c.ID, Amount: decimal.RequireFromString("12.34"),
		Type: models.TransactionExpense, Date: date,
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	got, err := store.GetAccount(ctx, u.ID, a.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if !got.Balance.Equal(decimal.RequireFromString("87.66")) {
		t.Errorf("balance = %s, want 87.66", got.Balance)
	}

	sum, err := store.SumExpenses(ctx, u.ID, c.ID, date, date, 0)
	if err != nil {
		t.Fatalf("SumExpenses failed: %v", err)
	}
	if !sum.Equal(tx.Amount) {
		t.Errorf("sum = %s, want %s", sum, tx.Amount)
	}

	if err := store.DeleteTransaction(ctx, u.ID+1000000, tx.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user, got %v", err)
	}
}
