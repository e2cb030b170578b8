package db

import (
	"context"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"
)

const taskColumns = `id, title, type, area, assigned_room, due_date, status, notes, google_event_id, created_by, created_at, updated_at`

func taskWhere(filter services.TaskFilter) *where {
	w := &where{}
	if len(filter.Rooms) > 0 {
		w.add("assigned_room = ANY(?)", filter.Rooms)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.From != nil {
		w.add("due_date >= ?", *filter.From)
	}
	return w
}

func (s *Store) ListTasks(ctx context.Context, filter services.TaskFilter) ([]models.Task, error) {
	w := taskWhere(filter)
	query := `SELECT ` + taskColumns + ` FROM tasks ` + w.String() + ` ORDER BY due_date ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + w.next(filter.Limit)
	}
	items := []models.Task{}
	err := s.db.SelectContext(ctx, &items, query, w.args...)
	return items, err
}

func (s *Store) CountTasks(ctx context.Context, filter services.TaskFilter) (int, error) {
	w := taskWhere(filter)
	var total int
	err := s.db.GetContext(ctx, &total, `SELECT count(*) FROM tasks `+w.String(), w.args...)
	return total, err
}

func (s *Store) FindTask(ctx context.Context, id string) (models.Task, error) {
	var task models.Task
	err := s.db.GetContext(ctx, &task, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return task, err
}

func (s *Store) CreateTask(ctx context.Context, task models.Task) error {
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO tasks (`+taskColumns+`)
VALUES (:id, :title, :type, :area, :assigned_room, :due_date, :status, :notes, :google_event_id, :created_by, :created_at, :updated_at)`, task)
	return mapError(err)
}

func (s *Store) UpdateTask(ctx context.Context, task models.Task) error {
	res, err := s.db.NamedExecContext(ctx, `
UPDATE tasks SET
  title = :title,
  type = :type,
  area = :area,
  assigned_room = :assigned_room,
  due_date = :due_date,
  status = :status,
  notes = :notes,
  google_event_id = :google_event_id,
  updated_at = :updated_at
WHERE id = :id`, task)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}
