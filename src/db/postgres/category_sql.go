package postgres

import (
	"context"
	"fmt"

	"spendwise-server/src/models"

	"github.com/jackc/pgx/v5"
)

const categoryColumns = `id, user_id, name, type, parent_id, created_at, updated_at`

func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.ParentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error) {
	query := `
		INSERT INTO categories (user_id, name, type, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + categoryColumns
	created, err := scanCategory(s.pool.QueryRow(ctx, query, c.UserID, c.Name, c.Type, c.ParentID))
	if err != nil {
		return nil, mapErr(err, "create category")
	}
	return created, nil
}

func (s *Store) GetCategory(ctx context.Context, userID, id int64) (*models.Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("category %d", id))
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, userID int64) ([]models.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 ORDER BY type, name`, userID)
	if err != nil {
		return nil, mapErr(err, "list categories")
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) (*models.Category, error) {
	query := `
		UPDATE categories SET name = $1, type = $2, parent_id = $3, updated_at = NOW()
		WHERE id = $4 AND user_id = $5
		RETURNING ` + categoryColumns
	updated, err := scanCategory(s.pool.QueryRow(ctx, query, c.Name, c.Type, c.ParentID, c.ID, c.UserID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update category %d", c.ID))
	}
	return updated, nil
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete category %d", id),
		`DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, userID)
}
