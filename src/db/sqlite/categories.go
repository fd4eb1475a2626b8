package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"spendwise-server/src/models"
)

const categoryColumns = `id, user_id, name, type, parent_id, created_at, updated_at`

func scanCategory(row scanner) (*models.Category, error) {
	var c models.Category
	var parent sql.NullInt64
	var created, updated string
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &parent, &created, &updated); err != nil {
		return nil, err
	}
	c.ParentID = intPtr(parent)
	if err := timestamps(created, updated, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error) {
	ts := now()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (user_id, name, type, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+categoryColumns,
		c.UserID, c.Name, string(c.Type), nullInt(c.ParentID), ts, ts)
	created, err := scanCategory(row)
	if err != nil {
		return nil, mapErr(err, "create category")
	}
	return created, nil
}

func (s *Store) GetCategory(ctx context.Context, userID, id int64) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("category %d", id))
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, userID int64) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY type, name`, userID)
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
	row := s.db.QueryRowContext(ctx, `
		UPDATE categories SET name = ?, type = ?, parent_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+categoryColumns,
		c.Name, string(c.Type), nullInt(c.ParentID), now(), c.ID, c.UserID)
	updated, err := scanCategory(row)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update category %d", c.ID))
	}
	return updated, nil
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete category %d", id),
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
}
