package postgres

import (
	"context"
	"fmt"

	"spendwise-server/src/models"

	"github.com/jackc/pgx/v5"
)

const budgetColumns = `id, user_id, category_id, amount, start_date, end_date, is_recurring, notification_threshold, created_at, updated_at`

func scanBudget(row pgx.Row) (*models.Budget, error) {
	var b models.Budget
	err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount, &b.StartDate, &b.EndDate, &b.IsRecurring,
		&b.NotificationThreshold, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) queryBudgets(ctx context.Context, query string, args ...any) ([]models.Budget, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "list budgets")
	}
	defer rows.Close()

	budgets := []models.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *b)
	}
	return budgets, rows.Err()
}

func (s *Store) CreateBudget(ctx context.Context, b *models.Budget) (*models.Budget, error) {
	query := `
		INSERT INTO budgets (user_id, category_id, amount, start_date, end_date, is_recurring, notification_threshold)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
		RETURNING ` + budgetColumns
	created, err := scanBudget(s.pool.QueryRow(ctx, query,
		b.UserID, b.CategoryID, b.Amount.String(), b.StartDate, b.EndDate, b.IsRecurring, b.NotificationThreshold))
	if err != nil {
		return nil, mapErr(err, "create budget")
	}
	return created, nil
}

func (s *Store) GetBudget(ctx context.Context, userID, id int64) (*models.Budget, error) {
	b, err := scanBudget(s.pool.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("budget %d", id))
	}
	return b, nil
}

func (s *Store) ListBudgets(ctx context.Context, userID int64) ([]models.Budget, error) {
	return s.queryBudgets(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = $1 ORDER BY id`, userID)
}

func (s *Store) ListBudgetsForCategory(ctx context.Context, userID, categoryID int64) ([]models.Budget, error) {
	return s.queryBudgets(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = $1 AND category_id = $2 ORDER BY id`, userID, categoryID)
}

func (s *Store) UpdateBudget(ctx context.Context, b *models.Budget) (*models.Budget, error) {
	query := `
		UPDATE budgets
		SET category_id = $1, amount = $2::numeric, start_date = $3, end_date = $4, is_recurring = $5,
		    notification_threshold = $6, updated_at = NOW()
		WHERE id = $7 AND user_id = $8
		RETURNING ` + budgetColumns
	updated, err := scanBudget(s.pool.QueryRow(ctx, query,
		b.CategoryID, b.Amount.String(), b.StartDate, b.EndDate, b.IsRecurring, b.NotificationThreshold, b.ID, b.UserID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update budget %d", b.ID))
	}
	return updated, nil
}

func (s *Store) DeleteBudget(ctx context.Context, userID, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete budget %d", id),
		`DELETE FROM budgets WHERE id = $1 AND user_id = $2`, id, userID)
}
