package db

import (
	"context"

	"dormsync-backend-go/internal/models"
)

const announcementColumns = `id, title, content, priority, author_id, created_at`

func (s *Store) ListAnnouncements(ctx context.Context, limit int) ([]models.Announcement, error) {
	items := []models.Announcement{}
	query := `SELECT ` + announcementColumns + ` FROM announcements ORDER BY created_at DESC`
	var err error
	if limit > 0 {
		err = s.db.SelectContext(ctx, &items, query+` LIMIT $1`, limit)
	} else {
		err = s.db.SelectContext(ctx, &items, query)
	}
	return items, err
}

func (s *Store) FindAnnouncement(ctx context.Context, id string) (models.Announcement, error) {
	var item models.Announcement
	err := s.db.GetContext(ctx, &item, `SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id)
	return item, err
}

func (s *Store) CreateAnnouncement(ctx context.Context, item models.Announcement) error {
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO announcements (`+announcementColumns+`)
VALUES (:id, :title, :content, :priority, :author_id, :created_at)`, item)
	return mapError(err)
}

func (s *Store) DeleteAnnouncement(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}
