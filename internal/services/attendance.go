package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dormsync-backend-go/internal/models"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

type AttendanceFilter struct {
	StudentID string
	// From and To bound the log date, To exclusive.
	From *time.Time
	To   *time.Time
}

type AttendanceStore interface {
	ListAttendance(ctx context.Context, filter AttendanceFilter) ([]models.AttendanceLog, error)
	FindAttendance(ctx context.Context, id string) (models.AttendanceLog, error)
	CreateAttendance(ctx context.Context, entry models.AttendanceLog) error
	UpdateAttendance(ctx context.Context, entry models.AttendanceLog) error
}

type AttendanceService struct {
	logs     AttendanceStore
	accounts AccountStore
	audit    Auditor
	now      func() time.Time
}

func NewAttendanceService(logs AttendanceStore, accounts AccountStore, audit Auditor) *AttendanceService {
	return &AttendanceService{logs: logs, accounts: accounts, audit: audit, now: time.Now}
}

// List filters by studentID and by the calendar day of date when given.
func (s *AttendanceService) List(ctx context.Context, studentID string, date *time.Time) ([]models.AttendanceLog, error) {
	filter := AttendanceFilter{}
	if studentID != "" {
		if !validID(studentID) {
			return nil, ErrNotFound("Student not found")
		}
		filter.StudentID = studentID
	}
	if date != nil {
		from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 0, 1)
		filter.From, filter.To = &from, &to
	}
	items, err := s.logs.ListAttendance(ctx, filter)
	if err != nil {
		return nil, WrapError(err, "list attendance")
	}
	return items, nil
}

type AttendanceInput struct {
	StudentID string
	Date      time.Time
	Status    models.AttendanceStatus
	CheckIn   *time.Time
	CheckOut  *time.Time
	Notes     *string
}

func (in AttendanceInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.StudentID, validation.Required),
		validation.Field(&in.Date, validation.Required),
		validation.Field(&in.Status, validation.Required, validation.In(
			models.AttendancePresent, models.AttendanceAbsent, models.AttendanceLate, models.AttendanceExcused)),
		validation.Field(&in.Notes, validation.Length(0, 500)),
	)
}

func (s *AttendanceService) Create(ctx context.Context, actor Principal, in AttendanceInput, meta RequestMeta) (models.AttendanceLog, error) {
	if err := validationError(in.Validate()); err != nil {
		return models.AttendanceLog{}, err
	}
	if err := checkInOrder(in.CheckIn, in.CheckOut); err != nil {
		return models.AttendanceLog{}, err
	}
	student, err := s.findStudent(ctx, in.StudentID)
	if err != nil {
		return models.AttendanceLog{}, err
	}
	now := s.now().UTC()
	entry := models.AttendanceLog{
		ID:         uuid.NewString(),
		StudentID:  student.ID,
		Date:       in.Date.UTC(),
		Status:     in.Status,
		CheckIn:    in.CheckIn,
		CheckOut:   in.CheckOut,
		Notes:      trimmedPtr(in.Notes),
		RecordedBy: optionalString(actor.ID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.logs.CreateAttendance(ctx, entry); err != nil {
		return models.AttendanceLog{}, WrapError(err, "create attendance")
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:     actor.ID,
		Action:      ActionCreateAttendance,
		Description: fmt.Sprintf("Marked %s as %s on %s", student.Email, entry.Status, entry.Date.Format("2006-01-02")),
		Meta:        meta,
	})
	return entry, nil
}

type AttendanceUpdateInput struct {
	Status   *models.AttendanceStatus
	CheckIn  *time.Time
	CheckOut *time.Time
	Notes    *string
}

func (in AttendanceUpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Status, validation.NilOrNotEmpty, validation.In(
			models.AttendancePresent, models.AttendanceAbsent, models.AttendanceLate, models.AttendanceExcused)),
		validation.Field(&in.Notes, validation.Length(0, 500)),
	)
}

func (s *AttendanceService) Update(ctx context.Context, actor Principal, id string, in AttendanceUpdateInput, meta RequestMeta) (models.AttendanceLog, error) {
	if err := validationError(in.Validate()); err != nil {
		return models.AttendanceLog{}, err
	}
	if !validID(id) {
		return models.AttendanceLog{}, ErrNotFound("Attendance record not found")
	}
	entry, err := s.logs.FindAttendance(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AttendanceLog{}, ErrNotFound("Attendance record not found")
	}
	if err != nil {
		return models.AttendanceLog{}, WrapError(err, "find attendance")
	}
	if in.Status != nil {
		entry.Status = *in.Status
	}
	if in.CheckIn != nil {
		entry.CheckIn = in.CheckIn
	}
	if in.CheckOut != nil {
		entry.CheckOut = in.CheckOut
	}
	if in.Notes != nil {
		entry.Notes = trimmedPtr(in.Notes)
	}
	if err := checkInOrder(entry.CheckIn, entry.CheckOut); err != nil {
		return models.AttendanceLog{}, err
	}
	entry.UpdatedAt = s.now().UTC()
	if err := s.logs.UpdateAttendance(ctx, entry); err != nil {
		return models.AttendanceLog{}, WrapError(err, "update attendance")
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:     actor.ID,
		Action:      ActionUpdateAttendance,
		Description: fmt.Sprintf("Updated attendance %s to %s", entry.ID, entry.Status),
		Meta:        meta,
	})
	return entry, nil
}

func checkInOrder(in, out *time.Time) error {
	if in != nil && out != nil && out.Before(*in) {
		return ErrBadRequest("checkOut: must not be before checkIn.")
	}
	return nil
}

func (s *AttendanceService) findStudent(ctx context.Context, id string) (models.Account, error) {
	if !validID(id) {
		return models.Account{}, ErrNotFound("Student not found")
	}
	student, err := s.accounts.FindAccountByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && student.Role != models.RoleStudent) {
		return models.Account{}, ErrNotFound("Student not found")
	}
	if err != nil {
		return models.Account{}, WrapError(err, "find student")
	}
	return student, nil
}
