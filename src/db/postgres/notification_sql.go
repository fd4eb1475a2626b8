package postgres

import (
	"context"
	"fmt"
	"time"

	"spendwise-server/src/models"

	"github.com/google/uuid"
)

const notificationColumns = `id::text, user_id, budget_id, transaction_id, tier, percentage, message, read, created_at`

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO notifications (id, user_id, budget_id, transaction_id, tier, percentage, message, read, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, query, n.ID, n.UserID, n.BudgetID, n.TransactionID, n.Tier,
		n.Percentage.String(), n.Message, n.Read, n.CreatedAt)
	return mapErr(err, "create notification")
}

func (s *Store) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, mapErr(err, "list notifications")
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.BudgetID, &n.TransactionID, &n.Tier, &n.Percentage,
			&n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID int64, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("notification %s: %w", id, models.ErrNotFound)
	}
	return s.execOne(ctx, fmt.Sprintf("notification %s", id),
		`UPDATE notifications SET read = TRUE WHERE id = $1::uuid AND user_id = $2`, id, userID)
}
