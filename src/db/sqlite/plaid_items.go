package sqlite

import (
	"context"
	"fmt"

	"spendwise-server/src/models"
)

const plaidItemColumns = `id, user_id, item_id, access_token, account_id, cursor, created_at`

func scanPlaidItem(row scanner) (*models.PlaidItem, error) {
	var p models.PlaidItem
	var created string
	if err := row.Scan(&p.ID, &p.UserID, &p.ItemID, &p.AccessToken, &p.AccountID, &p.Cursor, &created); err != nil {
		return nil, err
	}
	if err := timestamps(created, "", &p.CreatedAt, nil); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePlaidItem(ctx context.Context, item *models.PlaidItem) (*models.PlaidItem, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO plaid_items (user_id, item_id, access_token, account_id, cursor, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+plaidItemColumns,
		item.UserID, item.ItemID, item.AccessToken, item.AccountID, item.Cursor, now())
	created, err := scanPlaidItem(row)
	if err != nil {
		return nil, mapErr(err, "create plaid item")
	}
	return created, nil
}

func (s *Store) GetPlaidItem(ctx context.Context, userID, id int64) (*models.PlaidItem, error) {
	p, err := scanPlaidItem(s.db.QueryRowContext(ctx,
		`SELECT `+plaidItemColumns+` FROM plaid_items WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("plaid item %d", id))
	}
	return p, nil
}

func (s *Store) GetPlaidItemByItemID(ctx context.Context, itemID string) (*models.PlaidItem, error) {
	p, err := scanPlaidItem(s.db.QueryRowContext(ctx,
		`SELECT `+plaidItemColumns+` FROM plaid_items WHERE item_id = ?`, itemID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("plaid item %s", itemID))
	}
	return p, nil
}

func (s *Store) ListPlaidItems(ctx context.Context, userID int64) ([]models.PlaidItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+plaidItemColumns+` FROM plaid_items WHERE user_id = ? ORDER BY id`, userID)
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
	return execOne(ctx, s.db, fmt.Sprintf("plaid item %d", id),
		`UPDATE plaid_items SET cursor = ? WHERE id = ?`, cursor, id)
}

func (s *Store) DeletePlaidItem(ctx context.Context, userID, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete plaid item %d", id),
		`DELETE FROM plaid_items WHERE id = ? AND user_id = ?`, id, userID)
}
