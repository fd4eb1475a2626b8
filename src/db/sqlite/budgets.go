package sqlite

import (
	"context"
	"fmt"

	"spendwise-server/src/models"
)

const budgetColumns = `id, user_id, category_id, amount, start_date, end_date, is_recurring, notification_threshold, created_at, updated_at`

func scanBudget(row scanner) (*models.Budget, error) {
	var b models.Budget
	var start, end, created, updated string
	if err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount, &start, &end, &b.IsRecurring,
		&b.NotificationThreshold, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if b.StartDate, err = parseDate(start); err != nil {
		return nil, fmt.Errorf("parse start_date: %w", err)
	}
	if b.EndDate, err = parseDate(end); err != nil {
		return nil, fmt.Errorf("parse end_date: %w", err)
	}
	if err := timestamps(created, updated, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) queryBudgets(ctx context.Context, query string, args ...any) ([]models.Budget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	ts := now()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO budgets (user_id, category_id, amount, start_date, end_date, is_recurring, notification_threshold, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+budgetColumns,
		b.UserID, b.CategoryID, b.Amount.String(), formatDate(b.StartDate), formatDate(b.EndDate),
		b.IsRecurring, b.NotificationThreshold, ts, ts)
	created, err := scanBudget(row)
	if err != nil {
		return nil, mapErr(err, "create budget")
	}
	return created, nil
}

func (s *Store) GetBudget(ctx context.Context, userID, id int64) (*models.Budget, error) {
	b, err := scanBudget(s.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("budget %d", id))
	}
	return b, nil
}

func (s *Store) ListBudgets(ctx context.Context, userID int64) ([]models.Budget, error) {
	return s.queryBudgets(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY id`, userID)
}

func (s *Store) ListBudgetsForCategory(ctx context.Context, userID, categoryID int64) ([]models.Budget, error) {
	return s.queryBudgets(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND category_id = ? ORDER BY id`, userID, categoryID)
}

func (s *Store) UpdateBudget(ctx context.Context, b *models.Budget) (*models.Budget, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE budgets
		SET category_id = ?, amount = ?, start_date = ?, end_date = ?, is_recurring = ?, notification_threshold = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+budgetColumns,
		b.CategoryID, b.Amount.String(), formatDate(b.StartDate), formatDate(b.EndDate), b.IsRecurring,
		b.NotificationThreshold, now(), b.ID, b.UserID)
	updated, err := scanBudget(row)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update budget %d", b.ID))
	}
	return updated, nil
}

func (s *Store) DeleteBudget(ctx context.Context, userID, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete budget %d", id),
		`DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
}
