package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"spendwise-server/src/models"

	"github.com/shopspring/decimal"
)

const transactionColumns = `id, user_id, account_id, category_id, amount, type, description, date, external_id, created_at, updated_at`

func scanTransaction(row scanner) (*models.Transaction, error) {
	var t models.Transaction
	var category sql.NullInt64
	var external sql.NullString
	var date, created, updated string
	if err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &category, &t.Amount, &t.Type, &t.Description,
		&date, &external, &created, &updated); err != nil {
		return nil, err
	}
	t.CategoryID = intPtr(category)
	t.ExternalID = stringPtr(external)
	var err error
	if t.Date, err = parseDate(date); err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}
	if err := timestamps(created, updated, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	created, err := scanTransaction(tx.QueryRowContext(ctx, `
		INSERT INTO transactions (user_id, account_id, category_id, amount, type, description, date, external_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+transactionColumns,
		t.UserID, t.AccountID, nullInt(t.CategoryID), t.Amount.String(), string(t.Type), t.Description,
		formatDate(t.Date), nullString(t.ExternalID), ts, ts))
	if err != nil {
		return nil, mapErr(err, "create transaction")
	}
	if err := adjustBalance(ctx, tx, created.UserID, created.AccountID, created.BalanceEffect()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id int64) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("transaction %d", id))
	}
	return t, nil
}

func (s *Store) GetTransactionByExternalID(ctx context.Context, userID int64, externalID string) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND external_id = ?`, userID, externalID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("transaction with external id %s", externalID))
	}
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID int64, f models.TransactionFilter) ([]models.Transaction, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if f.AccountID != nil {
		where = append(where, "account_id = ?")
		args = append(args, *f.AccountID)
	}
	if f.Uncategorized {
		where = append(where, "category_id IS NULL")
	} else if f.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.From != nil {
		where = append(where, "date >= ?")
		args = append(args, formatDate(*f.From))
	}
	if f.To != nil {
		where = append(where, "date <= ?")
		args = append(args, formatDate(*f.To))
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// UpdateTransaction reverses the old row's balance effect and applies the new
// one, which also covers moving the transaction to another account.
func (s *Store) UpdateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	old, err := scanTransaction(tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, t.ID, t.UserID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("transaction %d", t.ID))
	}
	if err := adjustBalance(ctx, tx, old.UserID, old.AccountID, old.BalanceEffect().Neg()); err != nil {
		return nil, err
	}

	updated, err := scanTransaction(tx.QueryRowContext(ctx, `
		UPDATE transactions
		SET account_id = ?, category_id = ?, amount = ?, type = ?, description = ?, date = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+transactionColumns,
		t.AccountID, nullInt(t.CategoryID), t.Amount.String(), string(t.Type), t.Description, formatDate(t.Date), now(),
		t.ID, t.UserID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update transaction %d", t.ID))
	}
	if err := adjustBalance(ctx, tx, updated.UserID, updated.AccountID, updated.BalanceEffect()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	old, err := scanTransaction(tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return mapErr(err, fmt.Sprintf("transaction %d", id))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return mapErr(err, fmt.Sprintf("delete transaction %d", id))
	}
	if err := adjustBalance(ctx, tx, userID, old.AccountID, old.BalanceEffect().Neg()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) SetTransactionCategory(ctx context.Context, userID, id, categoryID int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("categorize transaction %d", id),
		`UPDATE transactions SET category_id = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		categoryID, now(), id, userID)
}

// SumExpenses adds amounts in Go; SQLite would sum the text column as floats.
func (s *Store) SumExpenses(ctx context.Context, userID, categoryID int64, from, to time.Time, excludeID int64) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT amount FROM transactions
		WHERE user_id = ? AND category_id = ? AND type = ? AND date >= ? AND date <= ? AND id != ?`,
		userID, categoryID, string(models.TransactionExpense), formatDate(from), formatDate(to), excludeID)
	if err != nil {
		return decimal.Zero, mapErr(err, "sum expenses")
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}
