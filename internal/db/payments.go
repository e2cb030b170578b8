package db

import (
	"context"
	"database/sql"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"
)

const paymentColumns = `id, student_id, amount, type, due_date, status, receipt_url, paid_date, notes, created_at, updated_at`

func (s *Store) CreatePayments(ctx context.Context, items []models.Payment) error {
	if len(items) == 0 {
		return nil
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO payments (`+paymentColumns+`)
VALUES (:id, :student_id, :amount, :type, :due_date, :status, :receipt_url, :paid_date, :notes, :created_at, :updated_at)`, items)
	return mapError(err)
}

func (s *Store) FindPayment(ctx context.Context, id string) (models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return payment, err
}

func (s *Store) UpdatePayment(ctx context.Context, payment models.Payment) error {
	res, err := s.db.NamedExecContext(ctx, `
UPDATE payments SET
  student_id = :student_id,
  amount = :amount,
  type = :type,
  due_date = :due_date,
  status = :status,
  receipt_url = :receipt_url,
  paid_date = :paid_date,
  notes = :notes,
  updated_at = :updated_at
WHERE id = :id`, payment)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res)
}

func (s *Store) DeletePayment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func paymentWhere(filter services.PaymentFilter) *where {
	w := &where{}
	if filter.StudentID != "" {
		w.add("p.student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		w.add("p.status = ?", filter.Status)
	}
	return w
}

func (s *Store) ListPayments(ctx context.Context, filter services.PaymentFilter) ([]models.PaymentView, error) {
	w := paymentWhere(filter)
	items := []models.PaymentView{}
	err := s.db.SelectContext(ctx, &items, `
SELECT p.id, p.student_id, p.amount, p.type, p.due_date, p.status, p.receipt_url, p.paid_date, p.notes,
  p.created_at, p.updated_at,
  a.first_name AS student_first_name,
  a.last_name AS student_last_name,
  a.email AS student_email,
  a.student_id AS student_number,
  a.student_profile->>'roomNumber' AS student_room
FROM payments p
JOIN accounts a ON a.id = p.student_id
`+w.String()+`
ORDER BY p.due_date DESC, p.created_at DESC`, w.args...)
	return items, err
}

func (s *Store) CountPayments(ctx context.Context, filter services.PaymentFilter) (int, error) {
	w := paymentWhere(filter)
	var total int
	err := s.db.GetContext(ctx, &total, `SELECT count(*) FROM payments p `+w.String(), w.args...)
	return total, err
}

func (s *Store) SumOutstanding(ctx context.Context, studentID string) (float64, error) {
	var total float64
	err := s.db.GetContext(ctx, &total, `
SELECT COALESCE(SUM(amount), 0)
FROM payments
WHERE student_id = $1 AND status IN ('pending', 'overdue')`, studentID)
	return total, err
}

// expectRow reports sql.ErrNoRows when a write matched nothing.
func expectRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
