package postgres

import (
	"context"
	"fmt"

	"spendwise-server/src/models"

	"github.com/jackc/pgx/v5"
)

const ruleColumns = `id, user_id, name, conditions, category_id, created_at, updated_at`

func scanRule(row pgx.Row) (*models.TransactionRule, error) {
	var r models.TransactionRule
	if err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Conditions, &r.CategoryID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateTransactionRule(ctx context.Context, r *models.TransactionRule) (*models.TransactionRule, error) {
	query := `
		INSERT INTO transaction_rules (user_id, name, conditions, category_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + ruleColumns
	created, err := scanRule(s.pool.QueryRow(ctx, query, r.UserID, r.Name, r.Conditions, r.CategoryID))
	if err != nil {
		return nil, mapErr(err, "create transaction rule")
	}
	return created, nil
}

func (s *Store) GetTransactionRule(ctx context.Context, userID, id int64) (*models.TransactionRule, error) {
	r, err := scanRule(s.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM transaction_rules WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("transaction rule %d", id))
	}
	return r, nil
}

func (s *Store) ListTransactionRules(ctx context.Context, userID int64) ([]models.TransactionRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ruleColumns+` FROM transaction_rules WHERE user_id = $1 ORDER BY id`, userID)
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
	query := `
		UPDATE transaction_rules SET name = $1, conditions = $2, category_id = $3, updated_at = NOW()
		WHERE id = $4 AND user_id = $5
		RETURNING ` + ruleColumns
	updated, err := scanRule(s.pool.QueryRow(ctx, query, r.Name, r.Conditions, r.CategoryID, r.ID, r.UserID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update transaction rule %d", r.ID))
	}
	return updated, nil
}

func (s *Store) DeleteTransactionRule(ctx context.Context, userID, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete transaction rule %d", id),
		`DELETE FROM transaction_rules WHERE id = $1 AND user_id = $2`, id, userID)
}
