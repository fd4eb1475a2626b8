package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"spendwise-server/src/models"

	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	user     *models.User
	other    *models.User
	account  *models.Account
	food     *models.Category
	salary   *models.Category
	foreignC *models.Category
}

func seed(t *testing.T, store *Store) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	var err error
	if f.user, err = store.CreateUser(ctx, &models.User{Email: "an@example.com", DisplayName: "An"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if f.other, err = store.CreateUser(ctx, &models.User{Email: "binh@example.com"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if f.account, err = store.CreateAccount(ctx, &models.Account{
		UserID: f.user.ID, Name: "Wallet", Type: models.AccountCash, Balance: dec("1000"), Currency: "VND",
	}); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if f.food, err = store.CreateCategory(ctx, &models.Category{
		UserID: f.user.ID, Name: "Food", Type: models.TransactionExpense,
	}); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	if f.salary, err = store.CreateCategory(ctx, &models.Category{
		UserID: f.user.ID, Name: "Salary", Type: models.TransactionIncome,
	}); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	if f.foreignC, err = store.CreateCategory(ctx, &models.Category{
		UserID: f.other.ID, Name: "Food", Type: models.TransactionExpense,
	}); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	return f
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := seed(t, store)

	t.Run("defaults role to user", func(t *testing.T) {
		if f.user.Role != models.RoleUser {
			t.Errorf("role = %s, want user", f.user.Role)
		}
		if f.user.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := store.CreateUser(ctx, &models.User{Email: "an@example.com"})
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("lock role and telegram", func(t *testing.T) {
		chat := int64(99)
		if err := store.SetUserLocked(ctx, f.user.ID, true); err != nil {
			t.Fatalf("SetUserLocked failed: %v", err)
		}
		if err := store.SetUserRole(ctx, f.user.ID, models.RoleAdmin); err != nil {
			t.Fatalf("SetUserRole failed: %v", err)
		}
		if err := store.SetTelegramChatID(ctx, f.user.ID, &chat); err != nil {
			t.Fatalf("SetTelegramChatID failed: %v", err)
		}
		u, err := store.GetUserByID(ctx, f.user.ID)
		if err != nil {
			t.Fatalf("GetUserByID failed: %v", err)
		}
		if !u.Locked || u.Role != models.RoleAdmin || u.TelegramChatID == nil || *u.TelegramChatID != 99 {
			t.Errorf("unexpected user %+v", u)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		if _, err := store.GetUserByID(ctx, 4242); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := store.DeleteUser(ctx, 4242); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestTransactionsAdjustBalance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := seed(t, store)

	balance := func() decimal.Decimal {
		t.Helper()
		a, err := store.GetAccount(ctx, f.user.ID, f.account.ID)
		if err != nil {
			t.Fatalf("GetAccount failed: %v", err)
		}
		return a.Balance
	}

	expense, err := store.CreateTransaction(ctx, &models.Transaction{
		UserID: f.user.ID, AccountID: f.account.ID, CategoryID: &f.food.ID,
		Amount: dec("250.50"), Type: models.TransactionExpense, Description: "pho", Date: day("2026-10-05"),
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if got := balance(); !got.Equal(dec("749.50")) {
		t.Errorf("balance after expense = %s, want 749.50", got)
	}

	income, err := store.CreateTransaction(ctx, &models.Transaction{
		UserID: f.user.ID, AccountID: f.account.ID, CategoryID: &f.salary.ID,
		Amount: dec("100"), Type: models.TransactionIncome, Date: day("2026-10-06"),
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if got := balance(); !got.Equal(dec("849.50")) {
		t.Errorf("balance after income = %s, want 849.50", got)
	}

	expense.Amount = dec("50")
	updated, err := store.UpdateTransaction(ctx, expense)
	if err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}
	if !updated.Amount.Equal(dec("50")) || !updated.Date.Equal(day("2026-10-05")) {
		t.Errorf("unexpected updated transaction %+v", updated)
	}
	if got := balance(); !got.Equal(dec("1050")) {
		t.Errorf("balance after update = %s, want 1050", got)
	}

	if err := store.DeleteTransaction(ctx, f.user.ID, income.ID); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}
	if got := balance(); !got.Equal(dec("950")) {
		t.Errorf("balance after delete = %s, want 950", got)
	}

	if err := store.DeleteTransaction(ctx, f.other.ID, expense.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting another user's transaction, got %v", err)
	}
}

func TestListAndSumTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := seed(t, store)

	add := func(amount string, typ models.TransactionType, cat *int64, date string) *models.Transaction {
		t.Helper()
		tx, err := store.CreateTransaction(ctx, &models.Transaction{
			UserID: f.user.ID, AccountID: f.account.ID, CategoryID: cat,
			Amount: dec(amount), Type: typ, Date: day(date),
		})
		if err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
		return tx
	}
	first := add("100", models.TransactionExpense, &f.food.ID, "2026-10-01")
	add("200.25", models.TransactionExpense, &f.food.ID, "2026-10-31")
	add("300", models.TransactionExpense, &f.food.ID, "2026-11-01")
	add("400", models.TransactionIncome, &f.salary.ID, "2026-10-15")
	add("5", models.TransactionExpense, nil, "2026-10-20")

	t.Run("sum is inclusive of both ends and skips income", func(t *testing.T) {
		sum, err := store.SumExpenses(ctx, f.user.ID, f.food.ID, day("2026-10-01"), day("2026-10-31"), 0)
		if err != nil {
			t.Fatalf("SumExpenses failed: %v", err)
		}
		if !sum.Equal(dec("300.25")) {
			t.Errorf("sum = %s, want 300.25", sum)
		}
	})

	t.Run("sum excludes given transaction", func(t *testing.T) {
		sum, err := store.SumExpenses(ctx, f.user.ID, f.food.ID, day("2026-10-01"), day("2026-10-31"), first.ID)
		if err != nil {
			t.Fatalf("SumExpenses failed: %v", err)
		}
		if !sum.Equal(dec("200.25")) {
			t.Errorf("sum = %s, want 200.25", sum)
		}
	})

	t.Run("filters", func(t *testing.T) {
		from, to := day("2026-10-01"), day("2026-10-31")
		list, err := store.ListTransactions(ctx, f.user.ID, models.TransactionFilter{
			Type: models.TransactionExpense, From: &from, To: &to,
		})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("got %d transactions, want 3", len(list))
		}
		if !list[0].Date.Equal(day("2026-10-31")) {
			t.Errorf("expected newest first, got %s", list[0].Date)
		}

		uncategorized, err := store.ListTransactions(ctx, f.user.ID, models.TransactionFilter{Uncategorized: true})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(uncategorized) != 1 || uncategorized[0].CategoryID != nil {
			t.Errorf("unexpected uncategorized list %+v", uncategorized)
		}

		limited, err := store.ListTransactions(ctx, f.user.ID, models.TransactionFilter{Limit: 2})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("got %d transactions, want 2", len(limited))
		}

		others, err := store.ListTransactions(ctx, f.other.ID, models.TransactionFilter{})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(others) != 0 {
			t.Errorf("expected no transactions for other user, got %d", len(others))
		}
	})

	t.Run("external id dedupe", func(t *testing.T) {
		ext := "plaid-1"
		_, err := store.CreateTransaction(ctx, &models.Transaction{
			UserID: f.user.ID, AccountID: f.account.ID, Amount: dec("1"), Type: models.TransactionExpense,
			Date: day("2026-10-02"), ExternalID: &ext,
		})
		if err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
		found, err := store.GetTransactionByExternalID(ctx, f.user.ID, ext)
		if err != nil {
			t.Fatalf("GetTransactionByExternalID failed: %v", err)
		}
		if found.ExternalID == nil || *found.ExternalID != ext {
			t.Errorf("unexpected transaction %+v", found)
		}
		_, err = store.CreateTransaction(ctx, &models.Transaction{
			UserID: f.user.ID, AccountID: f.account.ID, Amount: dec("1"), Type: models.TransactionExpense,
			Date: day("2026-10-02"), ExternalID: &ext,
		})
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("expected ErrConflict on duplicate external id, got %v", err)
		}
	})
}

func TestBudgetsGoalsNotifications(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := seed(t, store)

	b, err := store.CreateBudget(ctx, &models.Budget{
		UserID: f.user.ID, CategoryID: f.food.ID, Amount: dec("1000000"),
		StartDate: day("2026-10-01"), EndDate: day("2026-10-31"), IsRecurring: true, NotificationThreshold: 90,
	})
	if err != nil {
		t.Fatalf("CreateBudget failed: %v", err)
	}

	t.Run("budget round trip", func(t *testing.T) {
		got, err := store.GetBudget(ctx, f.user.ID, b.ID)
		if err != nil {
			t.Fatalf("GetBudget failed: %v", err)
		}
		if !got.IsRecurring || got.NotificationThreshold != 90 || !got.StartDate.Equal(day("2026-10-01")) {
			t.Errorf("unexpected budget %+v", got)
		}
		if _, err := store.GetBudget(ctx, f.other.ID, b.ID); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound for other user, got %v", err)
		}
		byCategory, err := store.ListBudgetsForCategory(ctx, f.user.ID, f.food.ID)
		if err != nil || len(byCategory) != 1 {
			t.Errorf("ListBudgetsForCategory = %v, %v", byCategory, err)
		}
	})

	t.Run("goal contribution", func(t *testing.T) {
		g, err := store.CreateGoal(ctx, &models.Goal{UserID: f.user.ID, Name: "Bike", TargetAmount: dec("500")})
		if err != nil {
			t.Fatalf("CreateGoal failed: %v", err)
		}
		if g.TargetDate != nil {
			t.Errorf("expected nil target date")
		}
		g, err = store.AddGoalContribution(ctx, f.user.ID, g.ID, dec("125.5"))
		if err != nil {
			t.Fatalf("AddGoalContribution failed: %v", err)
		}
		if !g.CurrentAmount.Equal(dec("125.5")) {
			t.Errorf("current = %s, want 125.5", g.CurrentAmount)
		}
	})

	t.Run("notifications", func(t *testing.T) {
		n := &models.Notification{
			UserID: f.user.ID, BudgetID: b.ID, TransactionID: 1, Tier: models.TierCritical,
			Percentage: dec("95"), Message: "Budget at 95%",
		}
		if err := store.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification failed: %v", err)
		}
		if n.ID == "" {
			t.Fatal("Expected notification ID to be generated")
		}
		unread, err := store.ListNotifications(ctx, f.user.ID, true)
		if err != nil || len(unread) != 1 || unread[0].Tier != models.TierCritical {
			t.Fatalf("ListNotifications = %+v, %v", unread, err)
		}
		if err := store.MarkNotificationRead(ctx, f.user.ID, n.ID); err != nil {
			t.Fatalf("MarkNotificationRead failed: %v", err)
		}
		unread, err = store.ListNotifications(ctx, f.user.ID, true)
		if err != nil || len(unread) != 0 {
			t.Errorf("expected no unread notifications, got %+v, %v", unread, err)
		}
		if err := store.MarkNotificationRead(ctx, f.other.ID, n.ID); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound for other user, got %v", err)
		}
	})

	t.Run("deleting category cascades budgets", func(t *testing.T) {
		if err := store.DeleteCategory(ctx, f.user.ID, f.food.ID); err != nil {
			t.Fatalf("DeleteCategory failed: %v", err)
		}
		budgets, err := store.ListBudgets(ctx, f.user.ID)
		if err != nil {
			t.Fatalf("ListBudgets failed: %v", err)
		}
		if len(budgets) != 0 {
			t.Errorf("expected budgets to be removed with their category, got %d", len(budgets))
		}
	})
}

func TestRulesAndPlaidItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := seed(t, store)

	r, err := store.CreateTransactionRule(ctx, &models.TransactionRule{
		UserID: f.user.ID, Name: "coffee", CategoryID: f.food.ID,
		Conditions: []byte(`{"field":"description","op":"contains","value":"coffee"}`),
	})
	if err != nil {
		t.Fatalf("CreateTransactionRule failed: %v", err)
	}
	rules, err := store.ListTransactionRules(ctx, f.user.ID)
	if err != nil || len(rules) != 1 || string(rules[0].Conditions) != string(r.Conditions) {
		t.Fatalf("ListTransactionRules = %+v, %v", rules, err)
	}

	item, err := store.CreatePlaidItem(ctx, &models.PlaidItem{
		UserID: f.user.ID, ItemID: "item-1", AccessToken: "access", AccountID: f.account.ID,
	})
	if err != nil {
		t.Fatalf("CreatePlaidItem failed: %v", err)
	}
	if err := store.UpdatePlaidCursor(ctx, item.ID, "cursor-2"); err != nil {
		t.Fatalf("UpdatePlaidCursor failed: %v", err)
	}
	got, err := store.GetPlaidItem(ctx, f.user.ID, item.ID)
	if err != nil || got.Cursor != "cursor-2" {
		t.Errorf("GetPlaidItem = %+v, %v", got, err)
	}
	byItem, err := store.GetPlaidItemByItemID(ctx, "item-1")
	if err != nil || byItem.ID != item.ID {
		t.Errorf("GetPlaidItemByItemID = %+v, %v", byItem, err)
	}
	if _, err := store.GetPlaidItemByItemID(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
