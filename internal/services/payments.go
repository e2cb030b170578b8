package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dormsync-backend-go/internal/models"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

type PaymentFilter struct {
	StudentID string
	Status    models.PaymentStatus
}

type PaymentStore interface {
	CreatePayments(ctx context.Context, items []models.Payment) error
	FindPayment(ctx context.Context, id string) (models.Payment, error)
	UpdatePayment(ctx context.Context, payment models.Payment) error
	DeletePayment(ctx context.Context, id string) error
	ListPayments(ctx context.Context, filter PaymentFilter) ([]models.PaymentView, error)
	// SumOutstanding totals pending and overdue amounts for a student.
	SumOutstanding(ctx context.Context, studentID string) (float64, error)
	CountPayments(ctx context.Context, filter PaymentFilter) (int, error)
}

type PaymentService struct {
	payments PaymentStore
	accounts AccountStore
	media    *MediaStore
	notifier Notifier
	audit    Auditor
	now      func() time.Time
}

type PaymentOption func(*PaymentService)

func WithPaymentClock(clock func() time.Time) PaymentOption {
	return func(s *PaymentService) {
		if clock != nil {
			s.now = clock
		}
	}
}

func NewPaymentService(payments PaymentStore, accounts AccountStore, media *MediaStore, notifier Notifier, audit Auditor, opts ...PaymentOption) *PaymentService {
	s := &PaymentService{
		payments: payments,
		accounts: accounts,
		media:    media,
		notifier: notifier,
		audit:    audit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type PaymentInput struct {
	StudentID string
	Amount    float64
	Type      string
	DueDate   time.Time
	Notes     string
}

func (in PaymentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.StudentID, validation.Required),
		validation.Field(&in.Amount, validation.Required, validation.Min(0.01)),
		validation.Field(&in.Type, validation.Required, validation.Length(1, 64)),
		validation.Field(&in.DueDate, validation.Required),
		validation.Field(&in.Notes, validation.Length(0, 1000)),
	)
}

func (s *PaymentService) Create(ctx context.Context, actor Principal, in PaymentInput, meta RequestMeta) (models.Payment, error) {
	in.Type = strings.TrimSpace(in.Type)
	if err := validationError(in.Validate()); err != nil {
		return models.Payment{}, err
	}
	student, err := s.findStudent(ctx, in.StudentID)
	if err != nil {
		return models.Payment{}, err
	}
	payment := s.newPayment(student.ID, in)
	if err := s.payments.CreatePayments(ctx, []models.Payment{payment}); err != nil {
		return models.Payment{}, WrapError(err, "create payment")
	}
	s.notifier.Notify(ctx, []string{student.ID},
		fmt.Sprintf("New %s payment of %.2f due on %s", payment.Type, payment.Amount, payment.DueDate.Format("2006-01-02")),
		models.NotificationInfo, Related{ID: payment.ID, Model: models.ModelPayment})
	s.audit.Record(ctx, AuditEntry{
		ActorID:     actor.ID,
		Action:      ActionCreatePayment,
		Description: fmt.Sprintf("Created payment of %.2f for student %s", payment.Amount, student.Email),
		Meta:        meta,
	})
	return payment, nil
}

type BulkPaymentInput struct {
	StudentIDs []string
	Amount     float64
	Type       string
	DueDate    time.Time
	Notes      string
}

// BulkCreate bills every listed student, or every student when no ids are
// given.
func (s *PaymentService) BulkCreate(ctx context.Context, actor Principal, in BulkPaymentInput, meta RequestMeta) ([]models.Payment, error) {
	template := PaymentInput{StudentID: "bulk", Amount: in.Amount, Type: strings.TrimSpace(in.Type), DueDate: in.DueDate, Notes: in.Notes}
	if err := validationError(template.Validate()); err != nil {
		return nil, err
	}
	var students []models.Account
	if len(in.StudentIDs) == 0 {
		all, err := s.accounts.ListAccounts(ctx, AccountFilter{Role: models.RoleStudent})
		if err != nil {
			return nil, WrapError(err, "list students")
		}
		students = all
	} else {
		for _, id := range in.StudentIDs {
			student, err := s.findStudent(ctx, id)
			if err != nil {
				return nil, err
			}
			students = append(students, student)
		}
	}
	if len(students) == 0 {
		return nil, ErrBadRequest("No students to bill")
	}
	items := make([]models.Payment, 0, len(students))
	recipients := make([]string, 0, len(students))
	for _, student := range students {
		items = append(items, s.newPayment(student.ID, template))
		recipients = append(recipients, student.ID)
	}
	if err := s.payments.CreatePayments(ctx, items); err != nil {
		return nil, WrapError(err, "create payments")
	}
	s.notifier.Notify(ctx, recipients,
		fmt.Sprintf("New %s payment of %.2f due on %s", template.Type, template.Amount, template.DueDate.Format("2006-01-02")),
		models.NotificationInfo, Related{Model: models.ModelPayment})
	s.audit.Record(ctx, AuditEntry{
		ActorID:     actor.ID,
		Action:      ActionBulkCreatePayment,
		Description: fmt.Sprintf("Created %d payments of %.2f (%s)", len(items), template.Amount, template.Type),
		Meta:        meta,
	})
	return items, nil
}

func (s *PaymentService) List(ctx context.Context, status models.PaymentStatus) ([]models.PaymentView, error) {
	if status != "" && !status.Valid() {
		return nil, ErrBadRequest("Unknown payment status")
	}
	items, err := s.payments.ListPayments(ctx, PaymentFilter{Status: status})
	if err != nil {
		return nil, WrapError(err, "list payments")
	}
	return items, nil
}

func (s *PaymentService) MyHistory(ctx context.Context, principal Principal) ([]models.PaymentView, error) {
	if err := Authorize(principal, StudentRoles, principal.ID, nil); err != nil {
		return nil, err
	}
	items, err := s.payments.ListPayments(ctx, PaymentFilter{StudentID: principal.ID})
	if err != nil {
		return nil, WrapError(err, "list payments")
	}
	return items, nil
}

type PaymentUpdateInput struct {
	Status    *models.PaymentStatus
	Amount    *float64
	Type      *string
	DueDate   *time.Time
	Notes     *string
	StudentID *string
}

func (in PaymentUpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Status, validation.NilOrNotEmpty, validation.In(
			models.PaymentPending, models.PaymentSubmitted, models.PaymentPaid, models.PaymentOverdue)),
		validation.Field(&in.Amount, validation.Min(0.01)),
		validation.Field(&in.Type, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&in.Notes, validation.Length(0, 1000)),
	)
}

// Update applies an edit from an administrator or from the owning student.
// A student may only attach a receipt, which moves the payment to submitted
// and clears any paid date. Status edits by staff set the paid date when the
// payment becomes paid and clear it otherwise.
func (s *PaymentService) Update(ctx context.Context, principal Principal, id string, in PaymentUpdateInput, receipt *Upload, meta RequestMeta) (models.Payment, error) {
	if err := validationError(in.Validate()); err != nil {
		return models.Payment{}, err
	}
	payment, err := s.find(ctx, id)
	if err != nil {
		return models.Payment{}, err
	}
	if err := Authorize(principal, PaymentEditorRoles, payment.StudentID, ResidentAdminRoles); err != nil {
		return models.Payment{}, err
	}
	if principal.IsStudent() && receipt == nil {
		return models.Payment{}, ErrBadRequest("A receipt image is required")
	}
	now := s.now().UTC()
	previousStatus := payment.Status
	previousReceipt := payment.ReceiptURL

	if !principal.IsStudent() {
		if in.Status != nil {
			applyPaymentStatus(&payment, *in.Status, now)
		}
		if in.Amount != nil {
			payment.Amount = *in.Amount
		}
		if in.Type != nil {
			payment.Type = strings.TrimSpace(*in.Type)
		}
		if in.DueDate != nil {
			payment.DueDate = in.DueDate.UTC()
		}
		if in.Notes != nil {
			payment.Notes = trimmedPtr(in.Notes)
		}
		if in.StudentID != nil && *in.StudentID != payment.StudentID {
			student, err := s.findStudent(ctx, *in.StudentID)
			if err != nil {
				return models.Payment{}, err
			}
			payment.StudentID = student.ID
		}
	}
	var receiptID string
	if receipt != nil {
		asset, err := s.media.SaveImage(ctx, principal.ID, BucketReceipts, *receipt)
		if err != nil {
			return models.Payment{}, err
		}
		receiptID = asset.ID
		url := AssetURL(asset.ID)
		payment.ReceiptURL = &url
		if principal.IsStudent() {
			payment.Status = models.PaymentSubmitted
			payment.PaidDate = nil
		}
	}
	payment.UpdatedAt = now
	if err := s.payments.UpdatePayment(ctx, payment); err != nil {
		if receiptID != "" {
			_ = s.media.Delete(ctx, receiptID)
		}
		return models.Payment{}, WrapError(err, "update payment")
	}
	if receipt != nil && previousReceipt != nil {
		if err := s.media.Delete(ctx, AssetIDFromURL(*previousReceipt)); err != nil {
			log.Printf("payment %s: old receipt cleanup failed: %v", payment.ID, err)
		}
	}
	if payment.Status != previousStatus && !principal.IsStudent() {
		s.notifier.Notify(ctx, []string{payment.StudentID},
			fmt.Sprintf("Your %s payment is now %s", payment.Type, payment.Status),
			paymentNotificationType(payment.Status), Related{ID: payment.ID, Model: models.ModelPayment})
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:     principal.ID,
		Action:      ActionUpdatePayment,
		Description: fmt.Sprintf("Updated payment %s (status %s)", payment.ID, payment.Status),
		Meta:        meta,
	})
	return payment, nil
}

func (s *PaymentService) Delete(ctx context.Context, actor Principal, id string, meta RequestMeta) error {
	payment, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.payments.DeletePayment(ctx, payment.ID); err != nil {
		return WrapError(err, "delete payment")
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:     actor.ID,
		Action:      ActionDeletePayment,
		Description: fmt.Sprintf("Deleted payment %s of %.2f", payment.ID, payment.Amount),
		Meta:        meta,
	})
	return nil
}

// Receipt returns the media asset id of the payment's receipt.
func (s *PaymentService) Receipt(ctx context.Context, principal Principal, id string) (string, error) {
	payment, err := s.find(ctx, id)
	if err != nil {
		return "", err
	}
	if err := Authorize(principal, PaymentEditorRoles, payment.StudentID, ResidentAdminRoles); err != nil {
		return "", err
	}
	if payment.ReceiptURL == nil {
		return "", ErrNotFound("No receipt uploaded")
	}
	assetID := AssetIDFromURL(*payment.ReceiptURL)
	if assetID == "" {
		return "", ErrNotFound("No receipt uploaded")
	}
	return assetID, nil
}

// applyPaymentStatus keeps paid date and status consistent.
func applyPaymentStatus(payment *models.Payment, status models.PaymentStatus, now time.Time) {
	payment.Status = status
	if status == models.PaymentPaid {
		paid := now
		payment.PaidDate = &paid
		return
	}
	payment.PaidDate = nil
}

func paymentNotificationType(status models.PaymentStatus) models.NotificationType {
	switch status {
	case models.PaymentPaid:
		return models.NotificationSuccess
	case models.PaymentOverdue:
		return models.NotificationWarning
	default:
		return models.NotificationInfo
	}
}

func (s *PaymentService) newPayment(studentID string, in PaymentInput) models.Payment {
	now := s.now().UTC()
	return models.Payment{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Amount:    in.Amount,
		Type:      in.Type,
		DueDate:   in.DueDate.UTC(),
		Status:    models.PaymentPending,
		Notes:     trimmedPtr(&in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PaymentService) find(ctx context.Context, id string) (models.Payment, error) {
	if !validID(id) {
		return models.Payment{}, ErrNotFound("Payment not found")
	}
	payment, err := s.payments.FindPayment(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Payment{}, ErrNotFound("Payment not found")
	}
	if err != nil {
		return models.Payment{}, WrapError(err, "find payment")
	}
	return payment, nil
}

func (s *PaymentService) findStudent(ctx context.Context, id string) (models.Account, error) {
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
