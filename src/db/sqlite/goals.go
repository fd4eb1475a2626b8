package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"spendwise-server/src/models"

	"github.com/shopspring/decimal"
)

const goalColumns = `id, user_id, name, target_amount, current_amount, target_date, created_at, updated_at`

func scanGoal(row scanner) (*models.Goal, error) {
	var g models.Goal
	var target sql.NullString
	var created, updated string
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &target, &created, &updated); err != nil {
		return nil, err
	}
	if target.Valid {
		d, err := parseDate(target.String)
		if err != nil {
			return nil, fmt.Errorf("parse target_date: %w", err)
		}
		g.TargetDate = &d
	}
	if err := timestamps(created, updated, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func targetDate(g *models.Goal) sql.NullString {
	if g.TargetDate == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*g.TargetDate), Valid: true}
}

func (s *Store) CreateGoal(ctx context.Context, g *models.Goal) (*models.Goal, error) {
	ts := now()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO goals (user_id, name, target_amount, current_amount, target_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+goalColumns,
		g.UserID, g.Name, g.TargetAmount.String(), g.CurrentAmount.String(), targetDate(g), ts, ts)
	created, err := scanGoal(row)
	if err != nil {
		return nil, mapErr(err, "create goal")
	}
	return created, nil
}

func (s *Store) GetGoal(ctx context.Context, userID, id int64) (*models.Goal, error) {
	g, err := scanGoal(s.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("goal %d", id))
	}
	return g, nil
}

func (s *Store) ListGoals(ctx context.Context, userID int64) ([]models.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, mapErr(err, "list goals")
	}
	defer rows.Close()

	goals := []models.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func (s *Store) UpdateGoal(ctx context.Context, g *models.Goal) (*models.Goal, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE goals SET name = ?, target_amount = ?, current_amount = ?, target_date = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+goalColumns,
		g.Name, g.TargetAmount.String(), g.CurrentAmount.String(), targetDate(g), now(), g.ID, g.UserID)
	updated, err := scanGoal(row)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update goal %d", g.ID))
	}
	return updated, nil
}

func (s *Store) AddGoalContribution(ctx context.Context, userID, id int64, amount decimal.Decimal) (*models.Goal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT current_amount FROM goals WHERE id = ? AND user_id = ?`, id, userID).Scan(&current)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("goal %d", id))
	}
	g, err := scanGoal(tx.QueryRowContext(ctx, `
		UPDATE goals SET current_amount = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+goalColumns,
		current.Add(amount).String(), now(), id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("contribute to goal %d", id))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return g, nil
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete goal %d", id),
		`DELETE FROM goals WHERE id = ? AND user_id = ?`, id, userID)
}
