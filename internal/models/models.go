package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleStaff      Role = "staff"
	RoleStudent    Role = "student"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleManager, RoleAdmin, RoleStaff, RoleStudent:
		return true
	}
	return false
}

// IsAdministrative reports whether the role bypasses the account status gate.
func (r Role) IsAdministrative() bool {
	return r == RoleSuperAdmin || r == RoleManager || r == RoleAdmin
}

type AccountStatus string

const (
	StatusPending    AccountStatus = "pending"
	StatusUnverified AccountStatus = "unverified"
	StatusApproved   AccountStatus = "approved"
	StatusActive     AccountStatus = "active"
	StatusRejected   AccountStatus = "rejected"
)

type ProfileStatus string

const (
	ProfileActive    ProfileStatus = "active"
	ProfileInactive  ProfileStatus = "inactive"
	ProfileGraduated ProfileStatus = "graduated"
)

func (s ProfileStatus) Valid() bool {
	return s == ProfileActive || s == ProfileInactive || s == ProfileGraduated
}

// ErrStaleVersion is returned by stores when an optimistic version check fails.
var ErrStaleVersion = errors.New("record was modified concurrently")

// ErrDuplicateKey is returned by stores when a unique constraint rejects a write.
var ErrDuplicateKey = errors.New("duplicate key")

type PersonName struct {
	First  string `json:"firstName"`
	Last   string `json:"lastName"`
	Middle string `json:"middleInitial,omitempty"`
}

// Display renders "First M. Last".
func (n PersonName) Display() string {
	parts := make([]string, 0, 3)
	if first := strings.TrimSpace(n.First); first != "" {
		parts = append(parts, first)
	}
	if middle := strings.TrimSpace(n.Middle); middle != "" {
		initial := strings.TrimSuffix(middle, ".")
		parts = append(parts, initial+".")
	}
	if last := strings.TrimSpace(n.Last); last != "" {
		parts = append(parts, last)
	}
	return strings.Join(parts, " ")
}

// ParsePersonName splits a combined display name. The last word becomes the
// last name, a single trailing-dot word in the middle becomes the initial.
func ParsePersonName(full string) PersonName {
	words := strings.Fields(full)
	switch len(words) {
	case 0:
		return PersonName{}
	case 1:
		return PersonName{First: words[0]}
	}
	name := PersonName{Last: words[len(words)-1]}
	rest := words[:len(words)-1]
	if len(rest) > 1 {
		candidate := rest[len(rest)-1]
		if len(strings.TrimSuffix(candidate, ".")) == 1 {
			name.Middle = strings.TrimSuffix(candidate, ".")
			rest = rest[:len(rest)-1]
		}
	}
	name.First = strings.Join(rest, " ")
	return name
}

type StudentProfile struct {
	RoomNumber            string        `json:"roomNumber,omitempty"`
	Phone                 string        `json:"phone,omitempty"`
	EnrollmentDate        *time.Time    `json:"enrollmentDate,omitempty"`
	EmergencyContactName  string        `json:"emergencyContactName,omitempty"`
	EmergencyContactPhone string        `json:"emergencyContactPhone,omitempty"`
	Status                ProfileStatus `json:"status"`
}

func (p StudentProfile) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *StudentProfile) Scan(src interface{}) error {
	var raw []byte
	switch value := src.(type) {
	case []byte:
		raw = value
	case string:
		raw = []byte(value)
	case nil:
		return nil
	default:
		return fmt.Errorf("student profile: unsupported source %T", src)
	}
	return json.Unmarshal(raw, p)
}

type Account struct {
	ID             string          `db:"id" json:"id"`
	FirstName      string          `db:"first_name" json:"firstName"`
	LastName       string          `db:"last_name" json:"lastName"`
	MiddleInitial  string          `db:"middle_initial" json:"middleInitial,omitempty"`
	Email          string          `db:"email" json:"email"`
	PasswordHash   string          `db:"password_hash" json:"-"`
	Role           Role            `db:"role" json:"role"`
	Status         AccountStatus   `db:"status" json:"status"`
	OTP            *string         `db:"otp" json:"-"`
	OTPExpires     *time.Time      `db:"otp_expires" json:"-"`
	StudentID      *string         `db:"student_id" json:"studentId,omitempty"`
	AvatarURL      *string         `db:"avatar_url" json:"avatarUrl,omitempty"`
	StudentProfile *StudentProfile `db:"student_profile" json:"studentProfile,omitempty"`
	Version        int             `db:"version" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

func (a Account) Name() PersonName {
	return PersonName{First: a.FirstName, Last: a.LastName, Middle: a.MiddleInitial}
}

func (a *Account) SetName(name PersonName) {
	a.FirstName = strings.TrimSpace(name.First)
	a.LastName = strings.TrimSpace(name.Last)
	a.MiddleInitial = strings.TrimSuffix(strings.TrimSpace(name.Middle), ".")
}

func (a Account) FullName() string {
	return a.Name().Display()
}

func (a Account) RoomNumber() string {
	if a.StudentProfile == nil {
		return ""
	}
	return a.StudentProfile.RoomNumber
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSubmitted PaymentStatus = "submitted"
	PaymentPaid      PaymentStatus = "paid"
	PaymentOverdue   PaymentStatus = "overdue"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentSubmitted, PaymentPaid, PaymentOverdue:
		return true
	}
	return false
}

type Payment struct {
	ID         string        `db:"id" json:"id"`
	StudentID  string        `db:"student_id" json:"studentId"`
	Amount     float64       `db:"amount" json:"amount"`
	Type       string        `db:"type" json:"type"`
	DueDate    time.Time     `db:"due_date" json:"dueDate"`
	Status     PaymentStatus `db:"status" json:"status"`
	ReceiptURL *string       `db:"receipt_url" json:"receiptUrl,omitempty"`
	PaidDate   *time.Time    `db:"paid_date" json:"paidDate,omitempty"`
	Notes      *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updatedAt"`
}

// PaymentView is a payment joined with its student's display fields.
type PaymentView struct {
	Payment
	StudentFirstName string  `db:"student_first_name" json:"-"`
	StudentLastName  string  `db:"student_last_name" json:"-"`
	StudentEmail     string  `db:"student_email" json:"studentEmail"`
	StudentNumber    *string `db:"student_number" json:"studentNumber,omitempty"`
	StudentRoom      *string `db:"student_room" json:"roomNumber,omitempty"`
}

func (v PaymentView) StudentName() string {
	return PersonName{First: v.StudentFirstName, Last: v.StudentLastName}.Display()
}

type TaskType string

const (
	TaskCleaning    TaskType = "cleaning"
	TaskMaintenance TaskType = "maintenance"
	TaskInspection  TaskType = "inspection"
	TaskOther       TaskType = "other"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskCleaning, TaskMaintenance, TaskInspection, TaskOther:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// AllRooms marks a task assigned to the whole dormitory.
const AllRooms = "All"

type Task struct {
	ID            string     `db:"id" json:"id"`
	Title         string     `db:"title" json:"title"`
	Type          TaskType   `db:"type" json:"type"`
	Area          string     `db:"area" json:"area"`
	AssignedRoom  string     `db:"assigned_room" json:"assignedRoom"`
	DueDate       time.Time  `db:"due_date" json:"dueDate"`
	Status        TaskStatus `db:"status" json:"status"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	GoogleEventID *string    `db:"google_event_id" json:"googleEventId,omitempty"`
	CreatedBy     *string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

type AttendanceLog struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"studentId"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	CheckIn    *time.Time       `db:"check_in" json:"checkIn,omitempty"`
	CheckOut   *time.Time       `db:"check_out" json:"checkOut,omitempty"`
	Notes      *string          `db:"notes" json:"notes,omitempty"`
	RecordedBy *string          `db:"recorded_by" json:"recordedBy,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updatedAt"`
}

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
)

func (s RoomStatus) Valid() bool {
	return s == RoomAvailable || s == RoomOccupied || s == RoomMaintenance
}

type Room struct {
	ID         string     `db:"id" json:"id"`
	RoomNumber string     `db:"room_number" json:"roomNumber"`
	Floor      int        `db:"floor" json:"floor"`
	Capacity   int        `db:"capacity" json:"capacity"`
	Type       string     `db:"type" json:"type"`
	Status     RoomStatus `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

type AnnouncementPriority string

const (
	PriorityNormal    AnnouncementPriority = "normal"
	PriorityImportant AnnouncementPriority = "important"
	PriorityUrgent    AnnouncementPriority = "urgent"
)

func (p AnnouncementPriority) Valid() bool {
	return p == PriorityNormal || p == PriorityImportant || p == PriorityUrgent
}

type Announcement struct {
	ID        string               `db:"id" json:"id"`
	Title     string               `db:"title" json:"title"`
	Content   string               `db:"content" json:"content"`
	Priority  AnnouncementPriority `db:"priority" json:"priority"`
	AuthorID  *string              `db:"author_id" json:"authorId,omitempty"`
	CreatedAt time.Time            `db:"created_at" json:"createdAt"`
}

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

const (
	ModelPayment      = "Payment"
	ModelTask         = "Task"
	ModelAnnouncement = "Announcement"
	ModelUser         = "User"
)

type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipientId"`
	Message     string           `db:"message" json:"message"`
	Type        NotificationType `db:"type" json:"type"`
	RelatedID   *string          `db:"related_id" json:"relatedId,omitempty"`
	OnModel     *string          `db:"on_model" json:"onModel,omitempty"`
	Read        bool             `db:"read" json:"read"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}

type AuditLogEntry struct {
	ID          string    `db:"id" json:"id"`
	ActorID     *string   `db:"actor_id" json:"actorId,omitempty"`
	Action      string    `db:"action" json:"action"`
	Description string    `db:"description" json:"description"`
	IPAddress   *string   `db:"ip_address" json:"ipAddress,omitempty"`
	UserAgent   *string   `db:"user_agent" json:"userAgent,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type MediaAsset struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"ownerId"`
	Bucket      string    `db:"bucket" json:"bucket"`
	StorageKey  string    `db:"storage_key" json:"-"`
	Filename    string    `db:"filename" json:"filename"`
	ContentType string    `db:"content_type" json:"contentType"`
	SizeBytes   int64     `db:"size_bytes" json:"sizeBytes"`
	SHA256      string    `db:"sha256" json:"sha256"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
