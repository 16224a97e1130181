package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/wellness/internal/domain"
)

// NotificationRepository persists the in-app inbox.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create stores a notification.
func (r *NotificationRepository) Create(ctx context.Context, n domain.Notification) error {
	return withUserTx(ctx, r.pool, n.UserID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO notifications (notification_id, user_id, kind, title, body, read_at, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7)`, n.ID, n.UserID, n.Kind, n.Title, n.Body, n.ReadAt, n.CreatedAt)
		return err
	})
}

// List returns up to limit notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `SELECT notification_id, user_id, kind, title, body, read_at, created_at FROM notifications WHERE user_id=$1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, notification_id DESC LIMIT $2`

	results := make([]domain.Notification, 0, limit)
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, userID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var n domain.Notification
			if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt); err != nil {
				return err
			}
			results = append(results, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// MarkRead sets read_at once; it reports whether the notification exists.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	var found bool
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE notifications SET read_at = COALESCE(read_at, $3) WHERE user_id=$1 AND notification_id=$2`, userID, id, at)
		if err != nil {
			return err
		}
		found = tag.RowsAffected() > 0
		return nil
	})
	return found, err
}
