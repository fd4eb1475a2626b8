package postgres

import (
	"context"
	"fmt"

	"spendwise-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, user_id, name, type, balance, currency, plaid_account_id, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance, &a.Currency, &a.PlaidAccountID,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (user_id, name, type, balance, currency, plaid_account_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + accountColumns
	created, err := scanAccount(s.pool.QueryRow(ctx, query,
		a.UserID, a.Name, a.Type, a.Balance.String(), a.Currency, a.PlaidAccountID))
	if err != nil {
		return nil, mapErr(err, "create account")
	}
	return created, nil
}

func (s *Store) GetAccount(ctx context.Context, userID, id int64) (*models.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("account %d", id))
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID int64) ([]models.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY id`, userID)
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
	query := `
		UPDATE accounts SET name = $1, type = $2, currency = $3, updated_at = NOW()
		WHERE id = $4 AND user_id = $5
		RETURNING ` + accountColumns
	updated, err := scanAccount(s.pool.QueryRow(ctx, query, a.Name, a.Type, a.Currency, a.ID, a.UserID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update account %d", a.ID))
	}
	return updated, nil
}

func (s *Store) DeleteAccount(ctx context.Context, userID, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete account %d", id),
		`DELETE FROM accounts WHERE id = $1 AND user_id = $2`, id, userID)
}

func adjustBalance(ctx context.Context, tx pgx.Tx, userID, accountID int64, delta decimal.Decimal) error {
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1::numeric, updated_at = NOW() WHERE id = $2 AND user_id = $3`,
		delta.String(), accountID, userID)
	if err != nil {
		return mapErr(err, fmt.Sprintf("adjust balance of account %d", accountID))
	}
	return notFoundIfNone(tag, fmt.Sprintf("account %d", accountID))
}
