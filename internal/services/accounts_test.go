package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"dormsync-backend-go/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accountHarness struct {
	svc     *AccountService
	store   *memStore
	audit   *recordingAuditor
	mailer  *fakeMailer
	limiter *MemoryLimiter
	now     time.Time
}

func newAccountHarness(t *testing.T, opts ...AccountOption) *accountHarness {
	t.Helper()
	h := &accountHarness{
		store:   newMemStore(),
		audit:   &recordingAuditor{},
		mailer:  &fakeMailer{},
		limiter: NewMemoryLimiter(3, time.Minute),
		now:     fixedNow,
	}
	tokens := TokenService{Secret: []byte("test-secret"), Issuer: "dormsync", TTL: time.Hour, Now: func() time.Time { return h.now }}
	base := []AccountOption{
		WithAccountClock(func() time.Time { return h.now }),
		WithOTPGenerator(func() (string, error) { return "123456", nil }),
		WithMailer(h.mailer),
		WithAttemptLimiter(h.limiter),
	}
	h.svc = NewAccountService(h.store, h.store, tokens, h.audit, append(base, opts...)...)
	return h
}

func (h *accountHarness) seed(t *testing.T, role models.Role, status models.AccountStatus, email, password string) models.Account {
	t.Helper()
	hash, err := h.svc.tokens.HashPassword(password)
	require.NoError(t, err)
	account := models.Account{
		ID:           uuid.NewString(),
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		CreatedAt:    h.now,
		UpdatedAt:    h.now,
	}
	if role == models.RoleStudent {
		account.StudentProfile = &models.StudentProfile{Status: models.ProfileInactive}
	}
	return h.store.put(account)
}

var testMeta = RequestMeta{IP: "10.0.0.1", UserAgent: "test"}

func TestRegisterThenVerifyActivatesStudent(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()

	reg, err := h.svc.Register(ctx, RegisterInput{
		Name:      "Alice B. Cooper",
		Email:     " Alice@Example.com ",
		Password:  "secret1",
		StudentID: "S-100",
	}, testMeta)
	require.NoError(t, err)
	assert.True(t, reg.CodeDelivered)
	assert.False(t, reg.Resent)
	assert.Equal(t, "alice@example.com", reg.Account.Email)
	assert.Equal(t, "Alice", reg.Account.FirstName)
	assert.Equal(t, "B", reg.Account.MiddleInitial)
	assert.Equal(t, "Cooper", reg.Account.LastName)
	assert.Equal(t, models.StatusUnverified, reg.Account.Status)
	require.NotNil(t, reg.Account.StudentProfile)
	assert.Equal(t, models.ProfileInactive, reg.Account.StudentProfile.Status)
	require.Len(t, h.mailer.sent, 1)
	assert.Contains(t, h.mailer.sent[0].Body, "123456")

	_, err = h.svc.Login(ctx, "alice@example.com", "secret1", testMeta)
	assert.True(t, HasCode(err, CodeAccountUnverified))

	auth, err := h.svc.VerifyOTP(ctx, "alice@example.com", "123456", testMeta)
	require.NoError(t, err)
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, models.StatusActive, auth.Account.Status)
	assert.Equal(t, models.ProfileActive, auth.Account.StudentProfile.Status)
	assert.Nil(t, auth.Account.OTP)

	stored := h.store.account(reg.Account.ID)
	assert.Equal(t, models.StatusActive, stored.Status)
	assert.Nil(t, stored.OTPExpires)
	assert.Equal(t, []string{ActionRegister, ActionVerifyOTP}, h.audit.actions())

	login, err := h.svc.Login(ctx, "ALICE@example.com", "secret1", testMeta)
	require.NoError(t, err)
	assert.Equal(t, reg.Account.ID, login.Account.ID)
}

func TestRegisterRejectsExistingVerifiedEmail(t *testing.T) {
	h := newAccountHarness(t)
	h.seed(t, models.RoleStudent, models.StatusActive, "bob@example.com", "secret1")

	_, err := h.svc.Register(context.Background(), RegisterInput{
		FirstName: "Bob", LastName: "Stone", Email: "bob@example.com", Password: "secret1",
	}, testMeta)
	assert.True(t, HasCode(err, CodeDuplicateAccount))
}

func TestRegisterRefreshesUnverifiedAccount(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	first, err := h.svc.Register(ctx, RegisterInput{FirstName: "Carl", LastName: "Doe", Email: "carl@example.com", Password: "secret1"}, testMeta)
	require.NoError(t, err)

	h.now = h.now.Add(5 * time.Minute)
	again, err := h.svc.Register(ctx, RegisterInput{FirstName: "Carlos", LastName: "Doe", Email: "carl@example.com", Password: "secret2"}, testMeta)
	require.NoError(t, err)
	assert.True(t, again.Resent)
	assert.Equal(t, first.Account.ID, again.Account.ID)
	assert.Equal(t, "Carlos", again.Account.FirstName)
	require.NotNil(t, again.Account.OTPExpires)
	assert.Equal(t, h.now.Add(OTPTTL), *again.Account.OTPExpires)
	assert.Len(t, h.mailer.sent, 2)
}

func TestRegisterReportsUndeliveredCode(t *testing.T) {
	h := newAccountHarness(t)
	h.mailer.err = errors.New("smtp down")

	reg, err := h.svc.Register(context.Background(), RegisterInput{FirstName: "Dee", LastName: "Ray", Email: "dee@example.com", Password: "secret1"}, testMeta)
	require.NoError(t, err)
	assert.False(t, reg.CodeDelivered)
	assert.Equal(t, models.StatusUnverified, h.store.account(reg.Account.ID).Status)
}

func TestRegisterAdminSkipsVerification(t *testing.T) {
	h := newAccountHarness(t)
	reg, err := h.svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada", LastName: "Admin", Email: "ada@example.com", Password: "secret1", Role: models.RoleAdmin,
	}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, reg.Account.Status)
	assert.Nil(t, reg.Account.OTP)
	assert.Nil(t, reg.Account.StudentProfile)
	assert.Empty(t, h.mailer.sent)

	closed := newAccountHarness(t, WithAdminSignup(false))
	_, err = closed.svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada", LastName: "Admin", Email: "ada@example.com", Password: "secret1", Role: models.RoleAdmin,
	}, testMeta)
	assert.True(t, HasCode(err, CodeForbidden))
}

func TestRegisterValidatesInput(t *testing.T) {
	h := newAccountHarness(t)
	_, err := h.svc.Register(context.Background(), RegisterInput{FirstName: "E", LastName: "F", Email: "not-an-email", Password: "123"}, testMeta)
	assert.True(t, HasCode(err, CodeValidation))

	_, err = h.svc.Register(context.Background(), RegisterInput{FirstName: "E", LastName: "F", Email: "e@example.com", Password: "secret1", Role: models.RoleSuperAdmin}, testMeta)
	assert.True(t, HasCode(err, CodeValidation))
}

func TestVerifyOTPRejectsWrongAndExpiredCodes(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	_, err := h.svc.Register(ctx, RegisterInput{FirstName: "Gil", LastName: "Hart", Email: "gil@example.com", Password: "secret1"}, testMeta)
	require.NoError(t, err)

	_, err = h.svc.VerifyOTP(ctx, "gil@example.com", "000000", testMeta)
	assert.True(t, HasCode(err, CodeInvalidCode))

	_, err = h.svc.VerifyOTP(ctx, "nobody@example.com", "123456", testMeta)
	assert.True(t, HasCode(err, CodeInvalidCode))

	h.now = h.now.Add(OTPTTL)
	_, err = h.svc.VerifyOTP(ctx, "gil@example.com", "123456", testMeta)
	assert.True(t, HasCode(err, CodeInvalidCode))
}

func TestLoginStatusGate(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	h.seed(t, models.RoleStudent, models.StatusPending, "pending@example.com", "secret1")
	h.seed(t, models.RoleStudent, models.StatusRejected, "rejected@example.com", "secret1")
	h.seed(t, models.RoleAdmin, models.StatusPending, "admin@example.com", "secret1")

	_, err := h.svc.Login(ctx, "pending@example.com", "secret1", testMeta)
	assert.True(t, HasCode(err, CodeAccountPending))

	_, err = h.svc.Login(ctx, "rejected@example.com", "secret1", testMeta)
	assert.True(t, HasCode(err, CodeAccountRejected))

	auth, err := h.svc.Login(ctx, "admin@example.com", "secret1", testMeta)
	require.NoError(t, err)
	assert.NotEmpty(t, auth.Token)

	_, err = h.svc.Login(ctx, "admin@example.com", "wrong-password", testMeta)
	assert.True(t, HasCode(err, CodeInvalidCredentials))

	_, err = h.svc.Login(ctx, "", "secret1", testMeta)
	assert.True(t, HasCode(err, CodeValidation))
}

func TestLoginThrottlesRepeatedFailures(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	h.seed(t, models.RoleStudent, models.StatusActive, "frank@example.com", "secret1")

	for i := 0; i < 3; i++ {
		_, err := h.svc.Login(ctx, "frank@example.com", "bad-password", testMeta)
		assert.True(t, HasCode(err, CodeInvalidCredentials))
	}
	_, err := h.svc.Login(ctx, "frank@example.com", "secret1", testMeta)
	assert.True(t, HasCode(err, CodeTooManyAttempts))

	other := RequestMeta{IP: "10.0.0.2"}
	_, err = h.svc.Login(ctx, "frank@example.com", "secret1", other)
	assert.NoError(t, err)
}

func TestAuthenticateAllowsPendingOnlyForOnboarding(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	pending := h.seed(t, models.RoleStudent, models.StatusPending, "pat@example.com", "secret1")
	token, _, err := h.svc.tokens.CreateSessionToken(pending)
	require.NoError(t, err)

	_, err = h.svc.Authenticate(ctx, token, false)
	assert.True(t, HasCode(err, CodeAccountPending))

	account, err := h.svc.Authenticate(ctx, token, true)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, account.ID)

	_, err = h.svc.Authenticate(ctx, "garbage", true)
	assert.True(t, HasCode(err, CodeUnauthorized))

	h.store.mu.Lock()
	delete(h.store.accounts, pending.ID)
	h.store.mu.Unlock()
	_, err = h.svc.Authenticate(ctx, token, true)
	assert.True(t, HasCode(err, CodeUnauthorized))
}

func TestFederatedLoginCreatesPendingAccount(t *testing.T) {
	h := newAccountHarness(t, WithIdentityVerifier(staticVerifier{identity: Identity{
		Name: "Hana Kim", Email: "Hana@Example.com", Picture: "https://img.test/hana.png",
	}}))
	ctx := context.Background()

	result, err := h.svc.FederatedLogin(ctx, "id-token", testMeta)
	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.True(t, result.Created)
	assert.Empty(t, result.Token)
	assert.Equal(t, "hana@example.com", result.Account.Email)
	assert.Equal(t, models.StatusPending, result.Account.Status)
	assert.Equal(t, "Hana", result.Account.FirstName)
	assert.Equal(t, []string{ActionRegisterGoogle}, h.audit.actions())

	_, err = h.svc.FederatedLogin(ctx, "id-token", testMeta)
	assert.True(t, HasCode(err, CodeAccountPending))

	_, err = h.svc.ApproveAccount(ctx, Principal{ID: uuid.NewString(), Role: models.RoleAdmin}, result.Account.ID, testMeta)
	require.NoError(t, err)
	again, err := h.svc.FederatedLogin(ctx, "id-token", testMeta)
	require.NoError(t, err)
	assert.False(t, again.Pending)
	assert.NotEmpty(t, again.Token)
}

func TestFederatedLoginFailures(t *testing.T) {
	ctx := context.Background()
	unconfigured := newAccountHarness(t)
	_, err := unconfigured.svc.FederatedLogin(ctx, "id-token", testMeta)
	assert.True(t, HasCode(err, CodeExternalService))

	bad := newAccountHarness(t, WithIdentityVerifier(staticVerifier{err: errors.New("bad signature")}))
	_, err = bad.svc.FederatedLogin(ctx, "id-token", testMeta)
	assert.True(t, HasCode(err, CodeInvalidAssertion))

	_, err = bad.svc.FederatedLogin(ctx, " ", testMeta)
	assert.True(t, HasCode(err, CodeValidation))
}

func TestPasswordResetFlow(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	account := h.seed(t, models.RoleStudent, models.StatusActive, "ivy@example.com", "secret1")

	require.NoError(t, h.svc.ForgotPassword(ctx, "ivy@example.com"))
	require.NoError(t, h.svc.ForgotPassword(ctx, "unknown@example.com"))
	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "ivy@example.com", h.mailer.sent[0].To)

	require.NoError(t, h.svc.VerifyResetCode(ctx, "ivy@example.com", "123456"))
	assert.True(t, HasCode(h.svc.VerifyResetCode(ctx, "ivy@example.com", "654321"), CodeInvalidCode))

	require.NoError(t, h.svc.ResetPassword(ctx, "ivy@example.com", "123456", "newsecret", testMeta))
	stored := h.store.account(account.ID)
	assert.Nil(t, stored.OTP)
	assert.True(t, h.svc.tokens.VerifyPassword("newsecret", stored.PasswordHash))

	err := h.svc.ResetPassword(ctx, "ivy@example.com", "123456", "another1", testMeta)
	assert.True(t, HasCode(err, CodeInvalidCode))
}

func TestForgotPasswordIgnoresUnusableAccounts(t *testing.T) {
	h := newAccountHarness(t)
	h.seed(t, models.RoleStudent, models.StatusPending, "jo@example.com", "secret1")
	require.NoError(t, h.svc.ForgotPassword(context.Background(), "jo@example.com"))
	assert.Empty(t, h.mailer.sent)

	assert.True(t, HasCode(h.svc.ForgotPassword(context.Background(), "nope"), CodeValidation))
}

func TestUpdateProfileChecksEmailUniqueness(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	kim := h.seed(t, models.RoleStudent, models.StatusActive, "kim@example.com", "secret1")
	h.seed(t, models.RoleStudent, models.StatusActive, "lee@example.com", "secret1")

	_, err := h.svc.UpdateProfile(ctx, PrincipalOf(kim), ProfileUpdateInput{Email: strPtr("LEE@example.com")}, testMeta)
	assert.True(t, HasCode(err, CodeDuplicateAccount))

	updated, err := h.svc.UpdateProfile(ctx, PrincipalOf(kim), ProfileUpdateInput{
		FirstName: strPtr("Kimberly"),
		Phone:     strPtr(" 555-0100 "),
	}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, "Kimberly", updated.FirstName)
	assert.Equal(t, "555-0100", updated.StudentProfile.Phone)
	assert.Equal(t, kim.Version+1, updated.Version)
}

func TestSaveReportsStaleVersionAsConflict(t *testing.T) {
	h := newAccountHarness(t)
	account := h.seed(t, models.RoleStudent, models.StatusActive, "max@example.com", "secret1")
	account.Version = 99
	err := h.svc.save(context.Background(), &account)
	assert.True(t, HasCode(err, CodeConflict))
}
