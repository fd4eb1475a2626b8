package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"spendwise-server/src/models"

	"github.com/shopspring/decimal"
)

const accountColumns = `id, user_id, name, type, balance, currency, plaid_account_id, created_at, updated_at`

func scanAccount(row scanner) (*models.Account, error) {
	var a models.Account
	var plaidID sql.NullString
	var created, updated string
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance, &a.Currency, &plaidID, &created, &updated); err != nil {
		return nil, err
	}
	a.PlaidAccountID = stringPtr(plaidID)
	if err := timestamps(created, updated, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	ts := now()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (user_id, name, type, balance, currency, plaid_account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+accountColumns,
		a.UserID, a.Name, string(a.Type), a.Balance.String(), a.Currency, nullString(a.PlaidAccountID), ts, ts)
	created, err := scanAccount(row)
	if err != nil {
		return nil, mapErr(err, "create account")
	}
	return created, nil
}

func (s *Store) GetAccount(ctx context.Context, userID, id int64) (*models.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("account %d", id))
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID int64) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, mapErr(err, "list accounts")
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (s *Store) UpdateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE accounts SET name = ?, type = ?, currency = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+accountColumns,
		a.Name, string(a.Type), a.Currency, now(), a.ID, a.UserID)
	updated, err := scanAccount(row)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update account %d", a.ID))
	}
	return updated, nil
}

func (s *Store) DeleteAccount(ctx context.Context, userID, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete account %d", id),
		`DELETE FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
}

// adjustBalance adds delta to an account's balance inside tx.
func adjustBalance(ctx context.Context, tx *sql.Tx, userID, accountID int64, delta decimal.Decimal) error {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = ? AND user_id = ?`, accountID, userID).Scan(&balance)
	if err != nil {
		return mapErr(err, fmt.Sprintf("account %d", accountID))
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance.Add(delta).String(), now(), accountID)
	if err != nil {
		return mapErr(err, fmt.Sprintf("adjust balance of account %d", accountID))
	}
	return nil
}
