package db

import (
	"context"
	"database/sql"
	"strings"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"
)

const accountColumns = `id, first_name, last_name, middle_initial, email, password_hash, role, status,
  otp, otp_expires, student_id, avatar_url, student_profile, version, created_at, updated_at`

func (s *Store) FindAccountByID(ctx context.Context, id string) (models.Account, error) {
	var account models.Account
	err := s.db.GetContext(ctx, &account, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return account, err
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	var account models.Account
	err := s.db.GetContext(ctx, &account, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
	return account, err
}

func (s *Store) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	var taken bool
	err := s.db.GetContext(ctx, &taken, `
SELECT EXISTS(
  SELECT 1 FROM accounts
  WHERE lower(email) = lower($1) AND ($2 = '' OR id::text <> $2)
)`, email, excludeID)
	return taken, err
}

func (s *Store) StudentIDTaken(ctx context.Context, studentID, excludeID string) (bool, error) {
	var taken bool
	err := s.db.GetContext(ctx, &taken, `
SELECT EXISTS(
  SELECT 1 FROM accounts
  WHERE student_id = $1 AND ($2 = '' OR id::text <> $2)
)`, studentID, excludeID)
	return taken, err
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.Version == 0 {
		account.Version = 1
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO accounts (`+accountColumns+`)
VALUES (:id, :first_name, :last_name, :middle_initial, :email, :password_hash, :role, :status,
  :otp, :otp_expires, :student_id, :avatar_url, :student_profile, :version, :created_at, :updated_at)`, account)
	return mapError(err)
}

func (s *Store) UpdateAccount(ctx context.Context, account *models.Account) error {
	res, err := s.db.NamedExecContext(ctx, `
UPDATE accounts SET
  first_name = :first_name,
  last_name = :last_name,
  middle_initial = :middle_initial,
  email = :email,
  password_hash = :password_hash,
  role = :role,
  status = :status,
  otp = :otp,
  otp_expires = :otp_expires,
  student_id = :student_id,
  avatar_url = :avatar_url,
  student_profile = :student_profile,
  updated_at = :updated_at,
  version = version + 1
WHERE id = :id AND version = :version`, account)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrStaleVersion
	}
	account.Version++
	return nil
}

func (s *Store) DeleteStudentCascade(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range []string{
		`DELETE FROM notifications WHERE recipient_id = $1`,
		`DELETE FROM attendance_logs WHERE student_id = $1`,
		`DELETE FROM payments WHERE student_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1 AND role = 'student'`, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

func accountWhere(filter services.AccountFilter) *where {
	w := &where{}
	if filter.Role != "" {
		w.add("role = ?", filter.Role)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		w.add(`(lower(first_name) LIKE ? OR lower(last_name) LIKE ? OR lower(email) LIKE ? OR lower(coalesce(student_id, '')) LIKE ?)`,
			pattern, pattern, pattern, pattern)
	}
	return w
}

func (s *Store) ListAccounts(ctx context.Context, filter services.AccountFilter) ([]models.Account, error) {
	w := accountWhere(filter)
	items := []models.Account{}
	err := s.db.SelectContext(ctx, &items, `SELECT `+accountColumns+` FROM accounts `+w.String()+` ORDER BY created_at DESC`, w.args...)
	return items, err
}

func (s *Store) CountAccounts(ctx context.Context, filter services.AccountFilter) (int, error) {
	w := accountWhere(filter)
	var total int
	err := s.db.GetContext(ctx, &total, `SELECT count(*) FROM accounts `+w.String(), w.args...)
	return total, err
}

func (s *Store) ListStudentsInRoom(ctx context.Context, roomNumber string) ([]models.Account, error) {
	w := &where{}
	w.add("role = ?", models.RoleStudent)
	if roomNumber != models.AllRooms {
		w.add("student_profile->>'roomNumber' = ?", roomNumber)
	}
	items := []models.Account{}
	err := s.db.SelectContext(ctx, &items, `SELECT `+accountColumns+` FROM accounts `+w.String()+` ORDER BY last_name, first_name`, w.args...)
	return items, err
}
