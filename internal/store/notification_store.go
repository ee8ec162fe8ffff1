package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gustaf30/nexus/internal/model"
)

const insertNotificationSQL = `
	INSERT INTO notifications (id, item_id, reasons, urgency, is_dismissed, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

// GetActiveNotifications retrieves all non-dismissed notifications,
// newest first. Grouping duplicates by (item, reason set) is left to the
// presentation layer.
func (s *SQLiteStore) GetActiveNotifications(
	ctx context.Context,
) ([]model.Notification, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM notifications WHERE is_dismissed = 0 ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying active notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// DismissNotification marks a single notification as dismissed.
// Dismissal is monotonic: there is no way to un-dismiss.
func (s *SQLiteStore) DismissNotification(
	ctx context.Context,
	id string,
) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_dismissed = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("dismissing notification %s: %w", id, err)
	}
	return nil
}

// DismissAllNotifications dismisses every active notification.
func (s *SQLiteStore) DismissAllNotifications(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_dismissed = 1 WHERE is_dismissed = 0",
	)
	if err != nil {
		return fmt.Errorf("dismissing all notifications: %w", err)
	}
	return nil
}

// PruneDismissedNotifications deletes dismissed notifications created
// before olderThan and returns the number of rows removed.
func (s *SQLiteStore) PruneDismissedNotifications(
	ctx context.Context,
	olderThan time.Time,
) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE is_dismissed = 1 AND created_at < ?",
		olderThan.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning dismissed notifications: %w", err)
	}
	return res.RowsAffected()
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, error) {
	var (
		n           model.Notification
		reasons     string
		urgency     string
		isDismissed int
	)

	err := rows.Scan(
		&n.ID, &n.ItemID, &reasons, &urgency, &isDismissed, &n.CreatedAt,
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Reasons = model.SplitReasons(reasons)
	n.Urgency = model.Urgency(urgency)
	n.IsDismissed = isDismissed != 0

	return n, nil
}
