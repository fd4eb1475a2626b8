package sqlite

import (
	"context"
	"fmt"
	"time"

	"spendwise-server/src/models"

	"github.com/google/uuid"
)

const notificationColumns = `id, user_id, budget_id, transaction_id, tier, percentage, message, read, created_at`

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.BudgetID, n.TransactionID, string(n.Tier), n.Percentage.String(), n.Message, n.Read,
		n.CreatedAt.UTC().Format(timeLayout))
	return mapErr(err, "create notification")
}

func (s *Store) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapErr(err, "list notifications")
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var created string
		if err := rows.Scan(&n.ID, &n.UserID, &n.BudgetID, &n.TransactionID, &n.Tier, &n.Percentage,
			&n.Message, &n.Read, &created); err != nil {
			return nil, err
		}
		if err := timestamps(created, "", &n.CreatedAt, nil); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID int64, id string) error {
	return execOne(ctx, s.db, fmt.Sprintf("notification %s", id),
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
}
