package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spendwise-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, user_id, account_id, category_id, amount, type, description, date, external_id, created_at, updated_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &t.Amount, &t.Type, &t.Description,
		&t.Date, &t.ExternalID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO transactions (user_id, account_id, category_id, amount, type, description, date, external_id)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		RETURNING ` + transactionColumns
	created, err := scanTransaction(tx.QueryRow(ctx, query,
		t.UserID, t.AccountID, t.CategoryID, t.Amount.String(), t.Type, t.Description, t.Date, t.ExternalID))
	if err != nil {
		return nil, mapErr(err, "create transaction")
	}
	if err := adjustBalance(ctx, tx, created.UserID, created.AccountID, created.BalanceEffect()); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id int64) (*models.Transaction, error) {
	t, err := scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("transaction %d", id))
	}
	return t, nil
}

func (s *Store) GetTransactionByExternalID(ctx context.Context, userID int64, externalID string) (*models.Transaction, error) {
	t, err := scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 AND external_id = $2`, userID, externalID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("transaction with external id %s", externalID))
	}
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID int64, f models.TransactionFilter) ([]models.Transaction, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.AccountID != nil {
		add("account_id = $%d", *f.AccountID)
	}
	if f.Uncategorized {
		where = append(where, "category_id IS NULL")
	} else if f.CategoryID != nil {
		add("category_id = $%d", *f.CategoryID)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "list transactions")
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

func (s *Store) UpdateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	old, err := scanTransaction(tx.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2 FOR UPDATE`, t.ID, t.UserID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("transaction %d", t.ID))
	}
	if err := adjustBalance(ctx, tx, old.UserID, old.AccountID, old.BalanceEffect().Neg()); err != nil {
		return nil, err
	}

	query := `
		UPDATE transactions
		SET account_id = $1, category_id = $2, amount = $3::numeric, type = $4, description = $5, date = $6, updated_at = NOW()
		WHERE id = $7 AND user_id = $8
		RETURNING ` + transactionColumns
	updated, err := scanTransaction(tx.QueryRow(ctx, query,
		t.AccountID, t.CategoryID, t.Amount.String(), t.Type, t.Description, t.Date, t.ID, t.UserID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update transaction %d", t.ID))
	}
	if err := adjustBalance(ctx, tx, updated.UserID, updated.AccountID, updated.BalanceEffect()); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	old, err := scanTransaction(tx.QueryRow(ctx,
		`DELETE FROM transactions WHERE id = $1 AND user_id = $2 RETURNING `+transactionColumns, id, userID))
	if err != nil {
		return mapErr(err, fmt.Sprintf("delete transaction %d", id))
	}
	if err := adjustBalance(ctx, tx, userID, old.AccountID, old.BalanceEffect().Neg()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) SetTransactionCategory(ctx context.Context, userID, id, categoryID int64) error {
	return s.execOne(ctx, fmt.Sprintf("categorize transaction %d", id),
		`UPDATE transactions SET category_id = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3`,
		categoryID, id, userID)
}

func (s *Store) SumExpenses(ctx context.Context, userID, categoryID int64, from, to time.Time, excludeID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)::text FROM transactions
		WHERE user_id = $1 AND category_id = $2 AND type = $3 AND date >= $4 AND date <= $5 AND id <> $6
	`
	var total string
	err := s.pool.QueryRow(ctx, query, userID, categoryID, models.TransactionExpense, from, to, excludeID).Scan(&total)
	if err != nil {
		return decimal.Zero, mapErr(err, "sum expenses")
	}
	return decimal.NewFromString(total)
}
