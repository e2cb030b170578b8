package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dormsync-backend-go/internal/models"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

func (s *AccountService) ListPending(ctx context.Context) ([]models.Account, error) {
	items, err := s.accounts.ListAccounts(ctx, AccountFilter{Status: models.StatusPending})
	if err != nil {
		return nil, WrapError(err, "list pending accounts")
	}
	return items, nil
}

func (s *AccountService) ApproveAccount(ctx context.Context, actor Principal, id string, meta RequestMeta) (models.Account, error) {
	account, err := s.find(ctx, id, "User not found")
	if err != nil {
		return models.Account{}, err
	}
	if err := transitionStatus(&account, models.StatusApproved); err != nil {
		return models.Account{}, err
	}
	ensureProfileStatus(&account, models.ProfileActive)
	if err := s.save(ctx, &account); err != nil {
		return models.Account{}, err
	}
	deliver(ctx, s.mailer, account.Email, "Your DormSync account has been approved", "approved",
		mailData{Name: account.FullName()})
	s.audit.Record(ctx, AuditEntry{ActorID: actor.ID, Action: ActionApproveUser, Description: "Approved user: " + account.Email, Meta: meta})
	return account, nil
}

func (s *AccountService) RejectAccount(ctx context.Context, actor Principal, id, reason string, meta RequestMeta) (models.Account, error) {
	account, err := s.find(ctx, id, "User not found")
	if err != nil {
		return models.Account{}, err
	}
	if err := transitionStatus(&account, models.StatusRejected); err != nil {
		return models.Account{}, err
	}
	clearOTP(&account)
	if err := s.save(ctx, &account); err != nil {
		return models.Account{}, err
	}
	reason = strings.TrimSpace(reason)
	deliver(ctx, s.mailer, account.Email, "Your DormSync account request", "rejected",
		mailData{Name: account.FullName(), Reason: reason})
	description := "Rejected user: " + account.Email
	if reason != "" {
		description += " (" + reason + ")"
	}
	s.audit.Record(ctx, AuditEntry{ActorID: actor.ID, Action: ActionRejectUser, Description: description, Meta: meta})
	return account, nil
}

// UpdateRole moves a non-student account between administrative roles.
func (s *AccountService) UpdateRole(ctx context.Context, actor Principal, id string, role models.Role, meta RequestMeta) (models.Account, error) {
	account, err := s.find(ctx, id, "User not found")
	if err != nil {
		return models.Account{}, err
	}
	if account.Role == models.RoleStudent {
		return models.Account{}, ErrIllegalTransition("Students cannot be assigned a staff role")
	}
	if !AdministrativeRoles.Contains(role) {
		return models.Account{}, ErrInvalidRole(fmt.Sprintf("Role must be one of %s", strings.Join(AdministrativeRoles.Strings(), ", ")))
	}
	previous := account.Role
	account.Role = role
	account.StudentProfile = nil
	if err := s.save(ctx, &account); err != nil {
		return models.Account{}, err
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:     actor.ID,
		Action:      ActionUpdateRole,
		Description: fmt.Sprintf("Changed role of %s from %s to %s", account.Email, previous, role),
		Meta:        meta,
	})
	return account, nil
}

func (s *AccountService) ListStaff(ctx context.Context) ([]models.Account, error) {
	items, err := s.accounts.ListAccounts(ctx, AccountFilter{Role: models.RoleStaff})
	if err != nil {
		return nil, WrapError(err, "list staff")
	}
	return items, nil
}

type StaffInput struct {
	FirstName     string
	LastName      string
	MiddleInitial string
	Email         string
	Password      string
}

func (in StaffInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.MiddleInitial, validation.Length(0, 2)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 128)),
	)
}

func (s *AccountService) CreateStaff(ctx context.Context, actor Principal, in StaffInput, meta RequestMeta) (models.Account, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validationError(in.Validate()); err != nil {
		return models.Account{}, err
	}
	account, err := s.newManagedAccount(ctx, in.Email, in.Password, models.RoleStaff, models.StatusActive)
	if err != nil {
		return models.Account{}, err
	}
	account.SetName(models.PersonName{First: in.FirstName, Last: in.LastName, Middle: in.MiddleInitial})
	if err := s.create(ctx, &account); err != nil {
		return models.Account{}, err
	}
	s.audit.Record(ctx, AuditEntry{ActorID: actor.ID, Action: ActionCreateStaff, Description: "Created staff: " + account.Email, Meta: meta})
	return account, nil
}

func (s *AccountService) ListStudents(ctx context.Context, search string) ([]models.Account, error) {
	items, err := s.accounts.ListAccounts(ctx, AccountFilter{Role: models.RoleStudent, Search: strings.TrimSpace(search)})
	if err != nil {
		return nil, WrapError(err, "list students")
	}
	return items, nil
}

func (s *AccountService) GetStudent(ctx context.Context, id string) (models.Account, error) {
	return s.findStudent(ctx, id)
}

type StudentInput struct {
	StudentID     string
	FirstName     string
	LastName      string
	MiddleInitial string
	Email         string
	Password      string
	RoomID        string
	Phone         string
	Status        models.ProfileStatus
}

func (in StudentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.StudentID, validation.Required, validation.Length(1, 64)),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.MiddleInitial, validation.Length(0, 2)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Length(6, 128)),
		validation.Field(&in.Status, validation.In(models.ProfileActive, models.ProfileInactive, models.ProfileGraduated)),
		validation.Field(&in.Phone, validation.Length(0, 32)),
	)
}

// CreateStudent provisions a student directly. The account status follows
// the profile status the same way an admin edit does, starting from approved.
func (s *AccountService) CreateStudent(ctx context.Context, actor Principal, in StudentInput, meta RequestMeta) (models.Account, error) {
	in.Email = normalizeEmail(in.Email)
	in.StudentID = strings.TrimSpace(in.StudentID)
	if in.Status == "" {
		in.Status = models.ProfileActive
	}
	if err := validationError(in.Validate()); err != nil {
		return models.Account{}, err
	}
	taken, err := s.accounts.StudentIDTaken(ctx, in.StudentID, "")
	if err != nil {
		return models.Account{}, WrapError(err, "check student id")
	}
	if taken {
		return models.Account{}, ErrDuplicateAccount("Student ID already in use")
	}
	roomNumber, err := s.resolveRoom(ctx, in.RoomID)
	if err != nil {
		return models.Account{}, err
	}
	password := in.Password
	if password == "" {
		password = s.defaultStudentPassword
	}
	status := DeriveAccountStatus(in.Status, models.StatusApproved)
	account, err := s.newManagedAccount(ctx, in.Email, password, models.RoleStudent, status)
	if err != nil {
		return models.Account{}, err
	}
	account.SetName(models.PersonName{First: in.FirstName, Last: in.LastName, Middle: in.MiddleInitial})
	account.StudentID = &in.StudentID
	enrolled := s.now().UTC()
	account.StudentProfile = &models.StudentProfile{
		RoomNumber:     roomNumber,
		Phone:          strings.TrimSpace(in.Phone),
		EnrollmentDate: &enrolled,
		Status:         in.Status,
	}
	if err := s.create(ctx, &account); err != nil {
		return models.Account{}, err
	}
	s.audit.Record(ctx, AuditEntry{ActorID: actor.ID, Action: ActionCreateStudent, Description: "Created student: " + account.Email, Meta: meta})
	return account, nil
}

type StudentUpdateInput struct {
	FirstName             *string
	LastName              *string
	MiddleInitial         *string
	Email                 *string
	StudentID             *string
	RoomID                *string
	Phone                 *string
	EmergencyContactName  *string
	EmergencyContactPhone *string
	EnrollmentDate        *time.Time
	Status                *models.ProfileStatus
}

func (in StudentUpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.MiddleInitial, validation.Length(0, 2)),
		validation.Field(&in.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&in.StudentID, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&in.Status, validation.NilOrNotEmpty, validation.In(models.ProfileActive, models.ProfileInactive, models.ProfileGraduated)),
	)
}

// UpdateStudent applies an admin edit. A profile status in the request is
// mirrored onto the account status through DeriveAccountStatus.
func (s *AccountService) UpdateStudent(ctx context.Context, actor Principal, id string, in StudentUpdateInput, meta RequestMeta) (models.Account, error) {
	if err := validationError(in.Validate()); err != nil {
		return models.Account{}, err
	}
	account, err := s.findStudent(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	if err := s.applyIdentityEdits(ctx, &account, in.FirstName, in.LastName, in.MiddleInitial, in.Email); err != nil {
		return models.Account{}, err
	}
	if in.StudentID != nil {
		studentID := strings.TrimSpace(*in.StudentID)
		if studentID == "" {
			return models.Account{}, ErrBadRequest("studentId: cannot be blank.")
		}
		if account.StudentID == nil || *account.StudentID != studentID {
			taken, err := s.accounts.StudentIDTaken(ctx, studentID, account.ID)
			if err != nil {
				return models.Account{}, WrapError(err, "check student id")
			}
			if taken {
				return models.Account{}, ErrDuplicateAccount("Student ID already in use")
			}
			account.StudentID = &studentID
		}
	}
	if account.StudentProfile == nil {
		account.StudentProfile = &models.StudentProfile{Status: models.ProfileInactive}
	}
	profile := account.StudentProfile
	if in.RoomID != nil {
		roomNumber, err := s.resolveRoom(ctx, *in.RoomID)
		if err != nil {
			return models.Account{}, err
		}
		profile.RoomNumber = roomNumber
	}
	if in.Phone != nil {
		profile.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.EmergencyContactName != nil {
		profile.EmergencyContactName = strings.TrimSpace(*in.EmergencyContactName)
	}
	if in.EmergencyContactPhone != nil {
		profile.EmergencyContactPhone = strings.TrimSpace(*in.EmergencyContactPhone)
	}
	if in.EnrollmentDate != nil {
		enrolled := in.EnrollmentDate.UTC()
		profile.EnrollmentDate = &enrolled
	}
	if in.Status != nil {
		previous := account.Status
		profile.Status = *in.Status
		account.Status = DeriveAccountStatus(*in.Status, account.Status)
		if previous == models.StatusUnverified && account.Status != previous {
			clearOTP(&account)
		}
	}
	if err := s.save(ctx, &account); err != nil {
		return models.Account{}, err
	}
	s.audit.Record(ctx, AuditEntry{ActorID: actor.ID, Action: ActionUpdateStudent, Description: "Updated student: " + account.Email, Meta: meta})
	return account, nil
}

func (s *AccountService) DeleteStudent(ctx context.Context, actor Principal, id string, meta RequestMeta) error {
	account, err := s.findStudent(ctx, id)
	if err != nil {
		return err
	}
	if err := s.accounts.DeleteStudentCascade(ctx, account.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("Student not found")
		}
		return WrapError(err, "delete student")
	}
	s.audit.Record(ctx, AuditEntry{ActorID: actor.ID, Action: ActionDeleteStudent, Description: "Deleted student: " + account.Email, Meta: meta})
	return nil
}

func (s *AccountService) findStudent(ctx context.Context, id string) (models.Account, error) {
	account, err := s.find(ctx, id, "Student not found")
	if err != nil {
		return models.Account{}, err
	}
	if account.Role != models.RoleStudent {
		return models.Account{}, ErrNotFound("Student not found")
	}
	return account, nil
}

// resolveRoom maps a room id to its number. An empty id clears the room.
func (s *AccountService) resolveRoom(ctx context.Context, roomID string) (string, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return "", nil
	}
	if s.rooms == nil || !validID(roomID) {
		return "", ErrNotFound("Room not found")
	}
	room, err := s.rooms.FindRoom(ctx, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound("Room not found")
	}
	if err != nil {
		return "", WrapError(err, "find room")
	}
	return room.RoomNumber, nil
}

func (s *AccountService) newManagedAccount(ctx context.Context, email, password string, role models.Role, status models.AccountStatus) (models.Account, error) {
	taken, err := s.accounts.EmailTaken(ctx, email, "")
	if err != nil {
		return models.Account{}, WrapError(err, "check email")
	}
	if taken {
		return models.Account{}, ErrDuplicateAccount("User already exists")
	}
	if password == "" {
		password, err = RandomPassword()
		if err != nil {
			return models.Account{}, WrapError(err, "random password")
		}
	}
	hash, err := s.tokens.HashPassword(password)
	if err != nil {
		return models.Account{}, WrapError(err, "hash password")
	}
	now := s.now().UTC()
	return models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *AccountService) create(ctx context.Context, account *models.Account) error {
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return ErrDuplicateAccount("User already exists")
		}
		return WrapError(err, "create account")
	}
	return nil
}
