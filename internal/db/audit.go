package db

import (
	"context"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"
)

func (s *Store) InsertAuditLog(ctx context.Context, entry models.AuditLogEntry) error {
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO audit_logs (id, actor_id, action, description, ip_address, user_agent, created_at)
VALUES (:id, :actor_id, :action, :description, :ip_address, :user_agent, :created_at)`, entry)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, filter services.AuditFilter) ([]models.AuditLogEntry, int, error) {
	w := &where{}
	if filter.Action != "" {
		w.add("action = ?", filter.Action)
	}
	if filter.ActorID != "" {
		w.add("actor_id = ?", filter.ActorID)
	}
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT count(*) FROM audit_logs `+w.String(), w.args...); err != nil {
		return nil, 0, err
	}
	query := `
SELECT id, actor_id, action, description, ip_address, user_agent, created_at
FROM audit_logs
` + w.String() + `
ORDER BY created_at DESC
LIMIT ` + w.next(filter.PageSize) + ` OFFSET ` + w.next((filter.Page-1)*filter.PageSize)
	items := []models.AuditLogEntry{}
	if err := s.db.SelectContext(ctx, &items, query, w.args...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
