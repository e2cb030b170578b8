package db

import (
	"context"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"
)

const attendanceColumns = `id, student_id, date, status, check_in, check_out, notes, recorded_by, created_at, updated_at`

func (s *Store) ListAttendance(ctx context.Context, filter services.AttendanceFilter) ([]models.AttendanceLog, error) {
	w := &where{}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.From != nil {
		w.add("date >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("date < ?", *filter.To)
	}
	items := []models.AttendanceLog{}
	err := s.db.SelectContext(ctx, &items, `SELECT `+attendanceColumns+` FROM attendance_logs `+w.String()+` ORDER BY date DESC, created_at DESC`, w.args...)
	return items, err
}

func (s *Store) FindAttendance(ctx context.Context, id string) (models.AttendanceLog, error) {
	var entry models.AttendanceLog
	err := s.db.GetContext(ctx, &entry, `SELECT `+attendanceColumns+` FROM attendance_logs WHERE id = $1`, id)
	return entry, err
}

func (s *Store) CreateAttendance(ctx context.Context, entry models.AttendanceLog) error {
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO attendance_logs (`+attendanceColumns+`)
VALUES (:id, :student_id, :date, :status, :check_in, :check_out, :notes, :recorded_by, :created_at, :updated_at)`, entry)
	return mapError(err)
}

func (s *Store) UpdateAttendance(ctx context.Context, entry models.AttendanceLog) error {
	res, err := s.db.NamedExecContext(ctx, `
UPDATE attendance_logs SET
  status = :status,
  check_in = :check_in,
  check_out = :check_out,
  notes = :notes,
  updated_at = :updated_at
WHERE id = :id`, entry)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res)
}
