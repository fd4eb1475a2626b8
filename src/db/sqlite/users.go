package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"spendwise-server/src/models"
)

const userColumns = `id, email, display_name, password_hash, role, locked, telegram_chat_id, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var chat sql.NullInt64
	var created, updated string
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Role, &u.Locked, &chat, &created, &updated); err != nil {
		return nil, err
	}
	u.TelegramChatID = intPtr(chat)
	if err := timestamps(created, updated, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	role := u.Role
	if role == "" {
		role = models.RoleUser
	}
	ts := now()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, display_name, password_hash, role, locked, telegram_chat_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		u.Email, u.DisplayName, u.PasswordHash, string(role), u.Locked, nullInt(u.TelegramChatID), ts, ts)
	created, err := scanUser(row)
	if err != nil {
		return nil, mapErr(err, "create user")
	}
	return created, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("user %d", id))
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return nil, mapErr(err, "user by email")
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
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
	row := s.db.QueryRowContext(ctx, `
		UPDATE users SET email = ?, display_name = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+userColumns,
		email, displayName, now(), id)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("update user %d", id))
	}
	return u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, id int64, hash []byte) error {
	return execOne(ctx, s.db, fmt.Sprintf("update password for user %d", id),
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, now(), id)
}

func (s *Store) SetUserRole(ctx context.Context, id int64, role models.Role) error {
	return execOne(ctx, s.db, fmt.Sprintf("set role for user %d", id),
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, string(role), now(), id)
}

func (s *Store) SetUserLocked(ctx context.Context, id int64, locked bool) error {
	return execOne(ctx, s.db, fmt.Sprintf("set locked for user %d", id),
		`UPDATE users SET locked = ?, updated_at = ? WHERE id = ?`, locked, now(), id)
}

func (s *Store) SetTelegramChatID(ctx context.Context, id int64, chatID *int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("set telegram chat for user %d", id),
		`UPDATE users SET telegram_chat_id = ?, updated_at = ? WHERE id = ?`, nullInt(chatID), now(), id)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return execOne(ctx, s.db, fmt.Sprintf("delete user %d", id), `DELETE FROM users WHERE id = ?`, id)
}
