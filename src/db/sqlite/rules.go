package sqlite

import (
	"context"
	"fmt"

	"spendwise-server/src/models"
)

const ruleColumns = `id, user_id, name, conditions, category_id, created_at, updated_at`

func scanRule(row scanner) (*models.TransactionRule, error) {
	var r models.TransactionRule
	var conditions, created, updated string
	if err := row.Scan(&r.ID, &r.UserID, &r.Name, &conditions, &r.CategoryID, &created, &updated); err != nil {
		return nil, err
	}
	r.Conditions = []byte(conditions)
	if err := timestamps(created, updated, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateTransactionRule(ctx context.Context, r *models.TransactionRule) (*models.TransactionRule, error) {
	ts := now()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO transaction_rules (user_id, name, conditions, category_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+ruleColumns,
		r.UserID, r.Name, string(r.Conditions), r.CategoryID, ts, ts)
	created, err := scanRule(row)
	if err != nil {
		return nil, mapErr(err, "create transaction rule")
	}
	return created, nil
}

func (s *Store) GetTransactionRule(ctx context.Context, userID, id int64) (*models.TransactionRule, error) {
	r, err := scanRule(s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM transaction_rules WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("transaction rule %d", id))
	}
	return r, nil
}

func (s *Store) ListTransactionRules(ctx context.Context, userID int64) ([]models.TransactionRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM transaction_rules WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, mapErr(err, "list transaction rules")
	}
	defer rows.Close()

	rules := []models.TransactionRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func (s *Store) UpdateTransactionRule(ctx context.Context, r *models.TransactionRule) (*models.TransactionRule, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE transaction_rules SET name = ?, conditions = ?, category_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+ruleColumns,
		r.Name, string(r.Conditions), r.CategoryID, now(), r.ID, r.UserID)
	updated, err := scanRule(row)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update transaction rule %d", r.ID))
	}
	return updated, nil
}

func (s *Store) DeleteTransactionRule(ctx context.Context, userID, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete transaction rule %d", id),
		`DELETE FROM transaction_rules WHERE id = ? AND user_id = ?`, id, userID)
}
