package services

import (
	"context"
	"log"
	"sync"
	"time"

	"dormsync-backend-go/internal/models"

	"github.com/google/uuid"
)

const (
	ActionRegister           = "REGISTER"
	ActionRegisterGoogle     = "REGISTER_GOOGLE"
	ActionVerifyOTP          = "VERIFY_OTP"
	ActionLogin              = "LOGIN"
	ActionLoginGoogle        = "LOGIN_GOOGLE"
	ActionUpdateProfile      = "UPDATE_PROFILE"
	ActionResetPassword      = "RESET_PASSWORD"
	ActionApproveUser        = "APPROVE_USER"
	ActionRejectUser         = "REJECT_USER"
	ActionUpdateRole         = "UPDATE_ROLE"
	ActionCreateStaff        = "CREATE_STAFF"
	ActionCreateStudent      = "CREATE_STUDENT"
	ActionUpdateStudent      = "UPDATE_STUDENT"
	ActionDeleteStudent      = "DELETE_STUDENT"
	ActionCreatePayment      = "CREATE_PAYMENT"
	ActionBulkCreatePayment  = "BULK_CREATE_PAYMENT"
	ActionUpdatePayment      = "UPDATE_PAYMENT"
	ActionDeletePayment      = "DELETE_PAYMENT"
	ActionCreateTask         = "CREATE_TASK"
	ActionUpdateTask         = "UPDATE_TASK"
	ActionDeleteTask         = "DELETE_TASK"
	ActionCreateAttendance   = "CREATE_ATTENDANCE"
	ActionUpdateAttendance   = "UPDATE_ATTENDANCE"
	ActionCreateRoom         = "CREATE_ROOM"
	ActionUpdateRoom         = "UPDATE_ROOM"
	ActionDeleteRoom         = "DELETE_ROOM"
	ActionCreateAnnouncement = "CREATE_ANNOUNCEMENT"
	ActionDeleteAnnouncement = "DELETE_ANNOUNCEMENT"
)

// RequestMeta carries the caller's network details into audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type AuditEntry struct {
	ActorID     string
	Action      string
	Description string
	Meta        RequestMeta
}

// Auditor records actions. Implementations never report failures to the
// caller.
type Auditor interface {
	Record(ctx context.Context, entry AuditEntry)
}

type AuditFilter struct {
	Action   string
	ActorID  string
	Page     int
	PageSize int
}

type AuditStore interface {
	InsertAuditLog(ctx context.Context, entry models.AuditLogEntry) error
	ListAuditLogs(ctx context.Context, filter AuditFilter) ([]models.AuditLogEntry, int, error)
}

type AuditOption func(*AuditRecorder)

func WithAuditClock(clock func() time.Time) AuditOption {
	return func(r *AuditRecorder) {
		if clock != nil {
			r.now = clock
		}
	}
}

func WithAuditQueueSize(size int) AuditOption {
	return func(r *AuditRecorder) {
		if size > 0 {
			r.queueSize = size
		}
	}
}

func WithAuditWriteTimeout(timeout time.Duration) AuditOption {
	return func(r *AuditRecorder) {
		if timeout > 0 {
			r.writeTimeout = timeout
		}
	}
}

// AuditRecorder persists entries from a background worker so the request
// that produced them is never blocked or failed by the audit write.
type AuditRecorder struct {
	store        AuditStore
	now          func() time.Time
	queueSize    int
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan models.AuditLogEntry
	done   chan struct{}
}

func NewAuditRecorder(store AuditStore, opts ...AuditOption) *AuditRecorder {
	r := &AuditRecorder{
		store:        store,
		now:          time.Now,
		queueSize:    256,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = make(chan models.AuditLogEntry, r.queueSize)
	r.done = make(chan struct{})
	go r.run()
	return r
}

func (r *AuditRecorder) Record(_ context.Context, entry AuditEntry) {
	row := models.AuditLogEntry{
		ID:          uuid.NewString(),
		ActorID:     optionalString(entry.ActorID),
		Action:      entry.Action,
		Description: entry.Description,
		IPAddress:   optionalString(entry.Meta.IP),
		UserAgent:   optionalString(entry.Meta.UserAgent),
		CreatedAt:   r.now().UTC(),
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		deadLetter(row, "recorder closed")
		return
	}
	select {
	case r.queue <- row:
	default:
		deadLetter(row, "queue full")
	}
}

func (r *AuditRecorder) List(ctx context.Context, filter AuditFilter) ([]models.AuditLogEntry, int, error) {
	filter.Page, filter.PageSize = NormalizePage(filter.Page, filter.PageSize)
	items, total, err := r.store.ListAuditLogs(ctx, filter)
	if err != nil {
		return nil, 0, WrapError(err, "list audit logs")
	}
	return items, total, nil
}

// Close stops accepting entries and waits for the queue to drain or ctx to
// expire.
func (r *AuditRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *AuditRecorder) run() {
	defer close(r.done)
	for row := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		if err := r.store.InsertAuditLog(ctx, row); err != nil {
			deadLetter(row, err.Error())
		}
		cancel()
	}
}

func deadLetter(row models.AuditLogEntry, reason string) {
	auditDeadLetters.Inc()
	actor := ""
	if row.ActorID != nil {
		actor = *row.ActorID
	}
	log.Printf("audit dead-letter: action=%s actor=%s at=%s reason=%s description=%q",
		row.Action, actor, row.CreatedAt.Format(time.RFC3339), reason, row.Description)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// NormalizePage clamps audit paging to page >= 1 and 1 <= pageSize <= 100.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
