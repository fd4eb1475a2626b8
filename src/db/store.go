package db

import (
	"context"
	"time"

	"spendwise-server/src/models"

	"github.com/shopspring/decimal"
)

// Store is the persistence boundary. Lookups scoped by user return
// models.ErrNotFound for rows owned by someone else, so ownership checks and
// missing rows look the same to callers.
type Store interface {
	UserStore
	AccountStore
	CategoryStore
	TransactionStore
	BudgetStore
	GoalStore
	NotificationStore
	RuleStore
	PlaidItemStore

	Migrate(ctx context.Context) error
	Close() error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserProfile(ctx context.Context, id int64, email, displayName string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, id int64, hash []byte) error
	SetUserRole(ctx context.Context, id int64, role models.Role) error
	SetUserLocked(ctx context.Context, id int64, locked bool) error
	SetTelegramChatID(ctx context.Context, id int64, chatID *int64) error
	DeleteUser(ctx context.Context, id int64) error
}

type AccountStore interface {
	CreateAccount(ctx context.Context, a *models.Account) (*models.Account, error)
	GetAccount(ctx context.Context, userID, id int64) (*models.Account, error)
	ListAccounts(ctx context.Context, userID int64) ([]models.Account, error)
	// UpdateAccount changes name, type and currency. Balance only moves
	// through transactions.
	UpdateAccount(ctx context.Context, a *models.Account) (*models.Account, error)
	DeleteAccount(ctx context.Context, userID, id int64) error
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error)
	GetCategory(ctx context.Context, userID, id int64) (*models.Category, error)
	ListCategories(ctx context.Context, userID int64) ([]models.Category, error)
	UpdateCategory(ctx context.Context, c *models.Category) (*models.Category, error)
	DeleteCategory(ctx context.Context, userID, id int64) error
}

// TransactionStore writes apply the transaction's balance effect to its
// account in the same database transaction as the row change.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error)
	GetTransaction(ctx context.Context, userID, id int64) (*models.Transaction, error)
	GetTransactionByExternalID(ctx context.Context, userID int64, externalID string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, f models.TransactionFilter) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id int64) error
	SetTransactionCategory(ctx context.Context, userID, id, categoryID int64) error
	// SumExpenses totals expense transactions of a category dated inside
	// [from, to], leaving out excludeID (0 excludes nothing).
	SumExpenses(ctx context.Context, userID, categoryID int64, from, to time.Time, excludeID int64) (decimal.Decimal, error)
}

type BudgetStore interface {
	CreateBudget(ctx context.Context, b *models.Budget) (*models.Budget, error)
	GetBudget(ctx context.Context, userID, id int64) (*models.Budget, error)
	ListBudgets(ctx context.Context, userID int64) ([]models.Budget, error)
	ListBudgetsForCategory(ctx context.Context, userID, categoryID int64) ([]models.Budget, error)
	UpdateBudget(ctx context.Context, b *models.Budget) (*models.Budget, error)
	DeleteBudget(ctx context.Context, userID, id int64) error
}

type GoalStore interface {
	CreateGoal(ctx context.Context, g *models.Goal) (*models.Goal, error)
	GetGoal(ctx context.Context, userID, id int64) (*models.Goal, error)
	ListGoals(ctx context.Context, userID int64) ([]models.Goal, error)
	UpdateGoal(ctx context.Context, g *models.Goal) (*models.Goal, error)
	AddGoalContribution(ctx context.Context, userID, id int64, amount decimal.Decimal) (*models.Goal, error)
	DeleteGoal(ctx context.Context, userID, id int64) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID int64, id string) error
}

type RuleStore interface {
	CreateTransactionRule(ctx context.Context, r *models.TransactionRule) (*models.TransactionRule, error)
	GetTransactionRule(ctx context.Context, userID, id int64) (*models.TransactionRule, error)
	ListTransactionRules(ctx context.Context, userID int64) ([]models.TransactionRule, error)
	UpdateTransactionRule(ctx context.Context, r *models.TransactionRule) (*models.TransactionRule, error)
	DeleteTransactionRule(ctx context.Context, userID, id int64) error
}

type PlaidItemStore interface {
	CreatePlaidItem(ctx context.Context, item *models.PlaidItem) (*models.PlaidItem, error)
	GetPlaidItem(ctx context.Context, userID, id int64) (*models.PlaidItem, error)
	// GetPlaidItemByItemID looks an item up by Plaid's id, for webhooks.
	GetPlaidItemByItemID(ctx context.Context, itemID string) (*models.PlaidItem, error)
	ListPlaidItems(ctx context.Context, userID int64) ([]models.PlaidItem, error)
	UpdatePlaidCursor(ctx context.Context, id int64, cursor string) error
	DeletePlaidItem(ctx context.Context, userID, id int64) error
}
