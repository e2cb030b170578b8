package db

import (
	"context"

	"dormsync-backend-go/internal/models"
)

const notificationColumns = `id, recipient_id, message, type, related_id, on_model, read, created_at`

func (s *Store) InsertNotifications(ctx context.Context, items []models.Notification) error {
	if len(items) == 0 {
		return nil
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO notifications (`+notificationColumns+`)
VALUES (:id, :recipient_id, :message, :type, :related_id, :on_model, :read, :created_at)`, items)
	return mapError(err)
}

func (s *Store) ListNotifications(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	items := []models.Notification{}
	err := s.db.SelectContext(ctx, &items, `
SELECT `+notificationColumns+`
FROM notifications
WHERE recipient_id = $1
ORDER BY created_at DESC
LIMIT $2`, recipientID, limit)
	return items, err
}

func (s *Store) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var total int
	err := s.db.GetContext(ctx, &total, `SELECT count(*) FROM notifications WHERE recipient_id = $1 AND NOT read`, recipientID)
	return total, err
}

func (s *Store) FindNotification(ctx context.Context, id string) (models.Notification, error) {
	var item models.Notification
	err := s.db.GetContext(ctx, &item, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	return item, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
	return err
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = true WHERE recipient_id = $1 AND NOT read`, recipientID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}
