package postgres

import (
	"context"
	"fmt"

	"spendwise-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const goalColumns = `id, user_id, name, target_amount, current_amount, target_date, created_at, updated_at`

func scanGoal(row pgx.Row) (*models.Goal, error) {
	var g models.Goal
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.TargetDate,
		&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) CreateGoal(ctx context.Context, g *models.Goal) (*models.Goal, error) {
	query := `
		INSERT INTO goals (user_id, name, target_amount, current_amount, target_date)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5)
		RETURNING ` + goalColumns
	created, err := scanGoal(s.pool.QueryRow(ctx, query,
		g.UserID, g.Name, g.TargetAmount.String(), g.CurrentAmount.String(), g.TargetDate))
	if err != nil {
		return nil, mapErr(err, "create goal")
	}
	return created, nil
}

func (s *Store) GetGoal(ctx context.Context, userID, id int64) (*models.Goal, error) {
	g, err := scanGoal(s.pool.QueryRow(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("goal %d", id))
	}
	return g, nil
}

func (s *Store) ListGoals(ctx context.Context, userID int64) ([]models.Goal, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY id`, userID)
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
	query := `
		UPDATE goals
		SET name = $1, target_amount = $2::numeric, current_amount = $3::numeric, target_date = $4, updated_at = NOW()
		WHERE id = $5 AND user_id = $6
		RETURNING ` + goalColumns
	updated, err := scanGoal(s.pool.QueryRow(ctx, query,
		g.Name, g.TargetAmount.String(), g.CurrentAmount.String(), g.TargetDate, g.ID, g.UserID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update goal %d", g.ID))
	}
	return updated, nil
}

func (s *Store) AddGoalContribution(ctx context.Context, userID, id int64, amount decimal.Decimal) (*models.Goal, error) {
	query := `
		UPDATE goals SET current_amount = current_amount + $1::numeric, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		RETURNING ` + goalColumns
	g, err := scanGoal(s.pool.QueryRow(ctx, query, amount.String(), id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("contribute to goal %d", id))
	}
	return g, nil
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete goal %d", id),
		`DELETE FROM goals WHERE id = $1 AND user_id = $2`, id, userID)
}
