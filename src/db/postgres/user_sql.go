package postgres

import (
	"context"
	"fmt"

	"spendwise-server/src/models"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, display_name, password_hash, role, locked, telegram_chat_id, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Role, &u.Locked,
		&u.TelegramChatID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	role := u.Role
	if role == "" {
		role = models.RoleUser
	}
	query := `
		INSERT INTO users (email, display_name, password_hash, role, locked, telegram_chat_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns
	created, err := scanUser(s.pool.QueryRow(ctx, query,
		u.Email, u.DisplayName, u.PasswordHash, role, u.Locked, u.TelegramChatID))
	if err != nil {
		return nil, mapErr(err, "create user")
	}
	return created, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("user %d", id))
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, mapErr(err, "user by email")
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, mapErr(err, "list users")
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserProfile(ctx context.Context, id int64, email, displayName string) (*models.User, error) {
	query := `
		UPDATE users SET email = $1, display_name = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + userColumns
	u, err := scanUser(s.pool.QueryRow(ctx, query, email, displayName, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update user %d", id))
	}
	return u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, id int64, hash []byte) error {
	return s.execOne(ctx, fmt.Sprintf("update password for user %d", id),
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
}

func (s *Store) SetUserRole(ctx context.Context, id int64, role models.Role) error {
	return s.execOne(ctx, fmt.Sprintf("set role for user %d", id),
		`UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`, role, id)
}

func (s *Store) SetUserLocked(ctx context.Context, id int64, locked bool) error {
	return s.execOne(ctx, fmt.Sprintf("set locked for user %d", id),
		`UPDATE users SET locked = $1, updated_at = NOW() WHERE id = $2`, locked, id)
}

func (s *Store) SetTelegramChatID(ctx context.Context, id int64, chatID *int64) error {
	return s.execOne(ctx, fmt.Sprintf("set telegram chat for user %d", id),
		`UPDATE users SET telegram_chat_id = $1, updated_at = NOW() WHERE id = $2`, chatID, id)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("delete user %d", id), `DELETE FROM users WHERE id = $1`, id)
}

func (s *Store) execOne(ctx context.Context, what, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapErr(err, what)
	}
	return notFoundIfNone(tag, what)
}
