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
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

type AccountFilter struct {
	Role   models.Role
	Status models.AccountStatus
	Search string
}

type AccountStore interface {
	FindAccountByID(ctx context.Context, id string) (models.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (models.Account, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	StudentIDTaken(ctx context.Context, studentID, excludeID string) (bool, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	// UpdateAccount writes only when the stored version equals account.Version
	// and bumps it, returning models.ErrStaleVersion otherwise.
	UpdateAccount(ctx context.Context, account *models.Account) error
	// DeleteStudentCascade removes the account with its payments, attendance
	// logs and notifications.
	DeleteStudentCascade(ctx context.Context, id string) error
	ListAccounts(ctx context.Context, filter AccountFilter) ([]models.Account, error)
	CountAccounts(ctx context.Context, filter AccountFilter) (int, error)
	// ListStudentsInRoom returns every student when roomNumber is models.AllRooms.
	ListStudentsInRoom(ctx context.Context, roomNumber string) ([]models.Account, error)
}

type AccountOption func(*AccountService)

func WithAccountClock(clock func() time.Time) AccountOption {
	return func(s *AccountService) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithOTPGenerator(generate func() (string, error)) AccountOption {
	return func(s *AccountService) {
		if generate != nil {
			s.generateOTP = generate
		}
	}
}

func WithMailer(mailer Mailer) AccountOption {
	return func(s *AccountService) {
		if mailer != nil {
			s.mailer = mailer
		}
	}
}

func WithIdentityVerifier(verifier IdentityVerifier) AccountOption {
	return func(s *AccountService) {
		s.identity = verifier
	}
}

func WithAdminSignup(allowed bool) AccountOption {
	return func(s *AccountService) {
		s.allowAdminSignup = allowed
	}
}

// WithAttemptLimiter throttles failed login, OTP and reset attempts.
func WithAttemptLimiter(limiter AttemptLimiter) AccountOption {
	return func(s *AccountService) {
		s.limiter = limiter
	}
}

// WithMediaStore enables avatar uploads.
func WithMediaStore(media *MediaStore) AccountOption {
	return func(s *AccountService) {
		s.media = media
	}
}

func WithDefaultStudentPassword(password string) AccountOption {
	return func(s *AccountService) {
		s.defaultStudentPassword = password
	}
}

// AccountService is the account lifecycle engine.
type AccountService struct {
	accounts AccountStore
	rooms    RoomStore
	tokens   TokenService
	audit    Auditor
	mailer   Mailer
	identity IdentityVerifier
	limiter  AttemptLimiter
	media    *MediaStore

	now                    func() time.Time
	generateOTP            func() (string, error)
	allowAdminSignup       bool
	defaultStudentPassword string
}

func NewAccountService(accounts AccountStore, rooms RoomStore, tokens TokenService, audit Auditor, opts ...AccountOption) *AccountService {
	s := &AccountService{
		accounts:         accounts,
		rooms:            rooms,
		tokens:           tokens,
		audit:            audit,
		mailer:           LogMailer{},
		now:              time.Now,
		generateOTP:      GenerateOTP,
		allowAdminSignup: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Account   models.Account
}

type RegisterResult struct {
	Account models.Account
	// Resent is set when an unverified account was refreshed instead of created.
	Resent bool
	// CodeDelivered is false when the verification email could not be sent.
	CodeDelivered bool
}

type FederatedResult struct {
	AuthResult
	Pending bool
	Created bool
}

type RegisterInput struct {
	FirstName             string
	LastName              string
	MiddleInitial         string
	Name                  string
	Email                 string
	Password              string
	Role                  models.Role
	StudentID             string
	Phone                 string
	EmergencyContactName  string
	EmergencyContactPhone string
}

func (in *RegisterInput) normalize() {
	if strings.TrimSpace(in.FirstName) == "" && strings.TrimSpace(in.Name) != "" {
		parsed := models.ParsePersonName(in.Name)
		in.FirstName, in.LastName, in.MiddleInitial = parsed.First, parsed.Last, parsed.Middle
	}
	in.Email = normalizeEmail(in.Email)
	in.StudentID = strings.TrimSpace(in.StudentID)
	if in.Role == "" {
		in.Role = models.RoleStudent
	}
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.MiddleInitial, validation.Length(0, 2)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 128)),
		validation.Field(&in.Role, validation.In(models.RoleStudent, models.RoleAdmin)),
		validation.Field(&in.Phone, validation.Length(0, 32)),
	)
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (RegisterResult, error) {
	in.normalize()
	if err := validationError(in.Validate()); err != nil {
		return RegisterResult{}, err
	}
	if in.Role == models.RoleAdmin && !s.allowAdminSignup {
		return RegisterResult{}, ErrForbidden("Admin self-registration is disabled")
	}
	now := s.now().UTC()

	existing, err := s.accounts.FindAccountByEmail(ctx, in.Email)
	switch {
	case err == nil:
		if existing.Status != models.StatusUnverified {
			return RegisterResult{}, ErrDuplicateAccount("User already exists")
		}
		return s.refreshUnverified(ctx, existing, in, now)
	case !errors.Is(err, sql.ErrNoRows):
		return RegisterResult{}, WrapError(err, "find account")
	}

	if in.Role == models.RoleStudent && in.StudentID != "" {
		taken, err := s.accounts.StudentIDTaken(ctx, in.StudentID, "")
		if err != nil {
			return RegisterResult{}, WrapError(err, "check student id")
		}
		if taken {
			return RegisterResult{}, ErrDuplicateAccount("Student ID already in use")
		}
	}

	hash, err := s.tokens.HashPassword(in.Password)
	if err != nil {
		return RegisterResult{}, WrapError(err, "hash password")
	}
	account := models.Account{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	account.SetName(models.PersonName{First: in.FirstName, Last: in.LastName, Middle: in.MiddleInitial})

	var code string
	if in.Role == models.RoleAdmin {
		account.Status = models.StatusApproved
	} else {
		account.Status = models.StatusUnverified
		if in.StudentID != "" {
			account.StudentID = &in.StudentID
		}
		account.StudentProfile = &models.StudentProfile{
			Phone:                 strings.TrimSpace(in.Phone),
			EmergencyContactName:  strings.TrimSpace(in.EmergencyContactName),
			EmergencyContactPhone: strings.TrimSpace(in.EmergencyContactPhone),
			Status:                models.ProfileInactive,
		}
		code, err = issueOTP(&account, s.generateOTP, now)
		if err != nil {
			return RegisterResult{}, WrapError(err, "generate otp")
		}
	}

	if err := s.accounts.CreateAccount(ctx, &account); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return RegisterResult{}, ErrDuplicateAccount("User already exists")
		}
		return RegisterResult{}, WrapError(err, "create account")
	}

	result := RegisterResult{Account: account, CodeDelivered: true}
	description := "Admin registered"
	if code != "" {
		description = "User registered (Unverified)"
		result.CodeDelivered = s.sendOTP(ctx, account, code)
	}
	s.audit.Record(ctx, AuditEntry{ActorID: account.ID, Action: ActionRegister, Description: description, Meta: meta})
	return result, nil
}

// refreshUnverified handles a repeated registration for an account that never
// completed verification: the name and password are replaced and a new code
// is sent.
func (s *AccountService) refreshUnverified(ctx context.Context, account models.Account, in RegisterInput, now time.Time) (RegisterResult, error) {
	hash, err := s.tokens.HashPassword(in.Password)
	if err != nil {
		return RegisterResult{}, WrapError(err, "hash password")
	}
	account.PasswordHash = hash
	account.SetName(models.PersonName{First: in.FirstName, Last: in.LastName, Middle: in.MiddleInitial})
	code, err := issueOTP(&account, s.generateOTP, now)
	if err != nil {
		return RegisterResult{}, WrapError(err, "generate otp")
	}
	if err := s.save(ctx, &account); err != nil {
		return RegisterResult{}, err
	}
	return RegisterResult{Account: account, Resent: true, CodeDelivered: s.sendOTP(ctx, account, code)}, nil
}

func (s *AccountService) sendOTP(ctx context.Context, account models.Account, code string) bool {
	return deliver(ctx, s.mailer, account.Email, "Verify your DormSync account", "otp",
		mailData{Name: account.FullName(), Code: code})
}

func (s *AccountService) VerifyOTP(ctx context.Context, email, code string, meta RequestMeta) (result AuthResult, err error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return AuthResult{}, ErrBadRequest("Email and code are required")
	}
	key := attemptKey("otp", meta, email)
	if err := checkAttempts(ctx, s.limiter, key); err != nil {
		return AuthResult{}, err
	}
	defer func() { recordAttempt(ctx, s.limiter, key, err) }()
	account, err := s.accounts.FindAccountByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return AuthResult{}, ErrInvalidOrExpiredCode()
	}
	if err != nil {
		return AuthResult{}, WrapError(err, "find account")
	}
	if !otpMatches(account, code, s.now().UTC()) {
		return AuthResult{}, ErrInvalidOrExpiredCode()
	}
	// A code left on an account that has since moved on is no longer redeemable.
	if err := transitionStatus(&account, models.StatusActive); err != nil {
		return AuthResult{}, ErrInvalidOrExpiredCode()
	}
	clearOTP(&account)
	if account.StudentProfile != nil {
		account.StudentProfile.Status = models.ProfileActive
	}
	if err := s.save(ctx, &account); err != nil {
		return AuthResult{}, err
	}
	result, err = s.issue(account)
	if err != nil {
		return AuthResult{}, err
	}
	s.audit.Record(ctx, AuditEntry{ActorID: account.ID, Action: ActionVerifyOTP, Description: "User verified email via OTP", Meta: meta})
	return result, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string, meta RequestMeta) (result AuthResult, err error) {
	defer func() { observeAuth("password", err) }()
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return AuthResult{}, ErrBadRequest("Email and password are required")
	}
	key := attemptKey("login", meta, email)
	if err := checkAttempts(ctx, s.limiter, key); err != nil {
		return AuthResult{}, err
	}
	defer func() { recordAttempt(ctx, s.limiter, key, err) }()
	account, err := s.accounts.FindAccountByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return AuthResult{}, ErrInvalidCredentials()
	}
	if err != nil {
		return AuthResult{}, WrapError(err, "find account")
	}
	if !s.tokens.VerifyPassword(password, account.PasswordHash) {
		return AuthResult{}, ErrInvalidCredentials()
	}
	if err := CanSignIn(account); err != nil {
		return AuthResult{}, err
	}
	result, err = s.issue(account)
	if err != nil {
		return AuthResult{}, err
	}
	s.audit.Record(ctx, AuditEntry{ActorID: account.ID, Action: ActionLogin, Description: "User logged in", Meta: meta})
	return result, nil
}

func (s *AccountService) FederatedLogin(ctx context.Context, idToken string, meta RequestMeta) (result FederatedResult, err error) {
	defer func() { observeAuth("google", err) }()
	if strings.TrimSpace(idToken) == "" {
		return FederatedResult{}, ErrBadRequest("Token is required")
	}
	if s.identity == nil {
		return FederatedResult{}, ErrExternalService("Google sign-in is not configured")
	}
	identity, err := s.identity.Verify(ctx, idToken)
	if err != nil {
		var svcErr ServiceError
		if errors.As(err, &svcErr) {
			return FederatedResult{}, err
		}
		return FederatedResult{}, ErrInvalidAssertion("Invalid Google token")
	}
	email := normalizeEmail(identity.Email)
	account, err := s.accounts.FindAccountByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return s.createFederated(ctx, identity, email, meta)
	}
	if err != nil {
		return FederatedResult{}, WrapError(err, "find account")
	}
	if err := CanSignIn(account); err != nil {
		return FederatedResult{}, err
	}
	auth, err := s.issue(account)
	if err != nil {
		return FederatedResult{}, err
	}
	s.audit.Record(ctx, AuditEntry{ActorID: account.ID, Action: ActionLoginGoogle, Description: "User logged in via Google", Meta: meta})
	return FederatedResult{AuthResult: auth}, nil
}

func (s *AccountService) createFederated(ctx context.Context, identity Identity, email string, meta RequestMeta) (FederatedResult, error) {
	password, err := RandomPassword()
	if err != nil {
		return FederatedResult{}, WrapError(err, "random password")
	}
	hash, err := s.tokens.HashPassword(password)
	if err != nil {
		return FederatedResult{}, WrapError(err, "hash password")
	}
	now := s.now().UTC()
	account := models.Account{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordHash:   hash,
		Role:           models.RoleStudent,
		Status:         models.StatusPending,
		AvatarURL:      optionalString(identity.Picture),
		StudentProfile: &models.StudentProfile{Status: models.ProfileInactive},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	name := models.ParsePersonName(identity.Name)
	if name.First == "" {
		name.First = strings.SplitN(email, "@", 2)[0]
	}
	account.SetName(name)
	if err := s.accounts.CreateAccount(ctx, &account); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return FederatedResult{}, ErrDuplicateAccount("User already exists")
		}
		return FederatedResult{}, WrapError(err, "create account")
	}
	s.audit.Record(ctx, AuditEntry{ActorID: account.ID, Action: ActionRegisterGoogle, Description: "User registered via Google (Pending)", Meta: meta})
	return FederatedResult{AuthResult: AuthResult{Account: account}, Pending: true, Created: true}, nil
}

// Authenticate resolves a bearer token to a usable account. Onboarding routes
// pass allowPending to let accounts awaiting approval read their profile.
func (s *AccountService) Authenticate(ctx context.Context, token string, allowPending bool) (models.Account, error) {
	claims, err := s.tokens.ParseSessionToken(token)
	if err != nil {
		return models.Account{}, err
	}
	account, err := s.accounts.FindAccountByID(ctx, claims.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrUnauthorized("Account no longer exists")
	}
	if err != nil {
		return models.Account{}, WrapError(err, "find account")
	}
	if allowPending && account.Status == models.StatusPending {
		return account, nil
	}
	if err := CanSignIn(account); err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (s *AccountService) Me(ctx context.Context, id string) (models.Account, error) {
	return s.find(ctx, id, "User not found")
}

type ProfileUpdateInput struct {
	FirstName             *string
	LastName              *string
	MiddleInitial         *string
	Email                 *string
	Password              *string
	Phone                 *string
	EmergencyContactName  *string
	EmergencyContactPhone *string
}

func (in ProfileUpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.MiddleInitial, validation.Length(0, 2)),
		validation.Field(&in.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&in.Password, validation.NilOrNotEmpty, validation.Length(6, 128)),
		validation.Field(&in.Phone, validation.Length(0, 32)),
		validation.Field(&in.EmergencyContactPhone, validation.Length(0, 32)),
	)
}

func (s *AccountService) UpdateProfile(ctx context.Context, principal Principal, in ProfileUpdateInput, meta RequestMeta) (models.Account, error) {
	if err := validationError(in.Validate()); err != nil {
		return models.Account{}, err
	}
	account, err := s.find(ctx, principal.ID, "User not found")
	if err != nil {
		return models.Account{}, err
	}
	if err := s.applyIdentityEdits(ctx, &account, in.FirstName, in.LastName, in.MiddleInitial, in.Email); err != nil {
		return models.Account{}, err
	}
	if in.Password != nil {
		hash, err := s.tokens.HashPassword(*in.Password)
		if err != nil {
			return models.Account{}, WrapError(err, "hash password")
		}
		account.PasswordHash = hash
	}
	if account.Role == models.RoleStudent && (in.Phone != nil || in.EmergencyContactName != nil || in.EmergencyContactPhone != nil) {
		if account.StudentProfile == nil {
			account.StudentProfile = &models.StudentProfile{Status: models.ProfileInactive}
		}
		if in.Phone != nil {
			account.StudentProfile.Phone = strings.TrimSpace(*in.Phone)
		}
		if in.EmergencyContactName != nil {
			account.StudentProfile.EmergencyContactName = strings.TrimSpace(*in.EmergencyContactName)
		}
		if in.EmergencyContactPhone != nil {
			account.StudentProfile.EmergencyContactPhone = strings.TrimSpace(*in.EmergencyContactPhone)
		}
	}
	if err := s.save(ctx, &account); err != nil {
		return models.Account{}, err
	}
	s.audit.Record(ctx, AuditEntry{ActorID: account.ID, Action: ActionUpdateProfile, Description: "User updated profile", Meta: meta})
	return account, nil
}

// UpdateAvatar stores an uploaded image as the caller's avatar and removes
// the previous upload.
func (s *AccountService) UpdateAvatar(ctx context.Context, principal Principal, upload Upload, meta RequestMeta) (models.Account, error) {
	if s.media == nil {
		return models.Account{}, ErrBadRequest("Uploads are not enabled")
	}
	account, err := s.find(ctx, principal.ID, "User not found")
	if err != nil {
		return models.Account{}, err
	}
	asset, err := s.media.SaveImage(ctx, account.ID, BucketAvatars, upload)
	if err != nil {
		return models.Account{}, err
	}
	previous := account.AvatarURL
	url := AssetURL(asset.ID)
	account.AvatarURL = &url
	if err := s.save(ctx, &account); err != nil {
		_ = s.media.Delete(ctx, asset.ID)
		return models.Account{}, err
	}
	if previous != nil {
		if err := s.media.Delete(ctx, AssetIDFromURL(*previous)); err != nil {
			log.Printf("account %s: old avatar cleanup failed: %v", account.ID, err)
		}
	}
	s.audit.Record(ctx, AuditEntry{ActorID: account.ID, Action: ActionUpdateProfile, Description: "User updated avatar", Meta: meta})
	return account, nil
}

// ForgotPassword always succeeds from the caller's point of view so the
// response does not reveal whether the email is registered.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validationError(validation.Validate(email, validation.Required, is.Email)); err != nil {
		return err
	}
	account, err := s.accounts.FindAccountByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return WrapError(err, "find account")
	}
	if CanSignIn(account) != nil {
		return nil
	}
	code, err := issueOTP(&account, s.generateOTP, s.now().UTC())
	if err != nil {
		return WrapError(err, "generate otp")
	}
	if err := s.save(ctx, &account); err != nil {
		return err
	}
	deliver(ctx, s.mailer, account.Email, "Reset your DormSync password", "reset",
		mailData{Name: account.FullName(), Code: code})
	return nil
}

func (s *AccountService) VerifyResetCode(ctx context.Context, email, code string) error {
	_, err := s.resettable(ctx, email, code)
	return err
}

func (s *AccountService) ResetPassword(ctx context.Context, email, code, password string, meta RequestMeta) (err error) {
	if err := validationError(validation.Validate(password, validation.Required, validation.Length(6, 128))); err != nil {
		return err
	}
	key := attemptKey("reset", meta, normalizeEmail(email))
	if err := checkAttempts(ctx, s.limiter, key); err != nil {
		return err
	}
	defer func() { recordAttempt(ctx, s.limiter, key, err) }()
	account, err := s.resettable(ctx, email, code)
	if err != nil {
		return err
	}
	hash, err := s.tokens.HashPassword(password)
	if err != nil {
		return WrapError(err, "hash password")
	}
	account.PasswordHash = hash
	clearOTP(&account)
	if err := s.save(ctx, &account); err != nil {
		return err
	}
	s.audit.Record(ctx, AuditEntry{ActorID: account.ID, Action: ActionResetPassword, Description: "User reset password", Meta: meta})
	return nil
}

func (s *AccountService) resettable(ctx context.Context, email, code string) (models.Account, error) {
	account, err := s.accounts.FindAccountByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrInvalidOrExpiredCode()
	}
	if err != nil {
		return models.Account{}, WrapError(err, "find account")
	}
	if CanSignIn(account) != nil || !otpMatches(account, strings.TrimSpace(code), s.now().UTC()) {
		return models.Account{}, ErrInvalidOrExpiredCode()
	}
	return account, nil
}

func (s *AccountService) issue(account models.Account) (AuthResult, error) {
	token, exp, err := s.tokens.CreateSessionToken(account)
	if err != nil {
		return AuthResult{}, WrapError(err, "sign token")
	}
	return AuthResult{Token: token, ExpiresAt: exp, Account: account}, nil
}

func (s *AccountService) find(ctx context.Context, id, missing string) (models.Account, error) {
	if !validID(id) {
		return models.Account{}, ErrNotFound(missing)
	}
	account, err := s.accounts.FindAccountByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrNotFound(missing)
	}
	if err != nil {
		return models.Account{}, WrapError(err, "find account")
	}
	return account, nil
}

func (s *AccountService) save(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = s.now().UTC()
	err := s.accounts.UpdateAccount(ctx, account)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrStaleVersion):
		return ErrConflict("The account was changed by another request, please retry")
	case errors.Is(err, models.ErrDuplicateKey):
		return ErrDuplicateAccount("Email or student ID already in use")
	default:
		return WrapError(err, "update account")
	}
}

// applyIdentityEdits updates name parts and email, checking email uniqueness.
func (s *AccountService) applyIdentityEdits(ctx context.Context, account *models.Account, first, last, middle, email *string) error {
	name := account.Name()
	if first != nil {
		name.First = *first
	}
	if last != nil {
		name.Last = *last
	}
	if middle != nil {
		name.Middle = *middle
	}
	account.SetName(name)
	if email == nil {
		return nil
	}
	normalized := normalizeEmail(*email)
	if normalized == account.Email {
		return nil
	}
	taken, err := s.accounts.EmailTaken(ctx, normalized, account.ID)
	if err != nil {
		return WrapError(err, "check email")
	}
	if taken {
		return ErrDuplicateAccount(fmt.Sprintf("Email %s is already in use", normalized))
	}
	account.Email = normalized
	return nil
}
