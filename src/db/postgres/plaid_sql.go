package postgres

import (
	"context"
	"fmt"

	"spendwise-server/src/models"

	"github.com/jackc/pgx/v5"
)

const plaidItemColumns = `id, user_id, item_id, access_token, account_id, cursor, created_at`

func scanPlaidItem(row pgx.Row) (*models.PlaidItem, error) {
	var p models.PlaidItem
	if err := row.Scan(&p.ID, &p.UserID, &p.ItemID, &p.AccessToken, &p.AccountID, &p.Cursor, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePlaidItem(ctx context.Context, item *models.PlaidItem) (*models.PlaidItem, error) {
	query := `
		INSERT INTO plaid_items (user_id, item_id, access_token, account_id, cursor)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + plaidItemColumns
	created, err := scanPlaidItem(s.pool.QueryRow(ctx, query,
		item.UserID, item.ItemID, item.AccessToken, item.AccountID, item.Cursor))
	if err != nil {
		return nil, mapErr(err, "create plaid item")
	}
	return created, nil
}

func (s *Store) GetPlaidItem(ctx context.Context, userID, id int64) (*models.PlaidItem, error) {
	p, err := scanPlaidItem(s.pool.QueryRow(ctx,
		`SELECT `+plaidItemColumns+` FROM plaid_items WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("plaid item %d", id))
	}
	return p, nil
}

func (s *Store) GetPlaidItemByItemID(ctx context.Context, itemID string) (*models.PlaidItem, error) {
	p, err := scanPlaidItem(s.pool.QueryRow(ctx,
		`SELECT `+plaidItemColumns+` FROM plaid_items WHERE item_id = $1`, itemID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("plaid item %s", itemID))
	}
	return p, nil
}

func (s *Store) ListPlaidItems(ctx context.Context, userID int64) ([]models.PlaidItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+plaidItemColumns+` FROM plaid_items WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, mapErr(err, "list plaid items")
	}
	defer rows.Close()

	items := []models.PlaidItem{}
	for rows.Next() {
		p, err := scanPlaidItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

func (s *Store) UpdatePlaidCursor(ctx context.Context, id int64, cursor string) error {
	return s.execOne(ctx, fmt.Sprintf("plaid item %d", id),
		`UPDATE plaid_items SET cursor = $1 WHERE id = $2`, cursor, id)
}

func (s *Store) DeletePlaidItem(ctx context.Context, userID, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete plaid item %d", id),
		`DELETE FROM plaid_items WHERE id = $1 AND user_id = $2`, id, userID)
}
