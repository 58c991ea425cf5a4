package auth

import (
	"context"
	"testing"
	"time"

	"github.com/auth-otp-api/internal/domain"
	jwtinfra "github.com/auth-otp-api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByUUID(ctx context.Context, userUUID string) (*domain.User, error) {
	args := m.Called(ctx, userUUID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockTokenStore struct{ mock.Mock }

func (m *mockTokenStore) Put(ctx context.Context, t *domain.Token) error {
	return m.Called(ctx, t).Error(0)
}
func (m *mockTokenStore) GetLiveByAccessToken(ctx context.Context, userID, accessToken string) (*domain.Token, error) {
	args := m.Called(ctx, userID, accessToken)
	if t, _ := args.Get(0).(*domain.Token); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTokenStore) Retire(ctx context.Context, tokenID string) error {
	return m.Called(ctx, tokenID).Error(0)
}
func (m *mockTokenStore) InvalidateByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockCodec struct{ mock.Mock }

func (m *mockCodec) Issue(subject string, verified bool) (jwtinfra.Pair, error) {
	args := m.Called(subject, verified)
	return args.Get(0).(jwtinfra.Pair), args.Error(1)
}
func (m *mockCodec) Verify(tokenStr string, expected jwtinfra.TokenType, checkExpiry bool) (*jwtinfra.Claims, error) {
	args := m.Called(tokenStr, expected, checkExpiry)
	if c, _ := args.Get(0).(*jwtinfra.Claims); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodec) RefreshEligibility(accessToken string) bool {
	return m.Called(accessToken).Bool(0)
}

type mockEngine struct{ mock.Mock }

func (m *mockEngine) Issue(ctx context.Context, userID, tokenID, deviceID, accessToken string, purpose domain.CodePurpose) (*domain.VerificationCode, error) {
	args := m.Called(ctx, userID, tokenID, deviceID, accessToken, purpose)
	if v, _ := args.Get(0).(*domain.VerificationCode); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockEngine) Check(ctx context.Context, userID, submitted string) error {
	return m.Called(ctx, userID, submitted).Error(0)
}

type mockBinder struct{ mock.Mock }

func (m *mockBinder) Bind(ctx context.Context, userID, deviceUUID, clientInfo string) (*domain.Device, error) {
	args := m.Called(ctx, userID, deviceUUID, clientInfo)
	if d, _ := args.Get(0).(*domain.Device); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockBinder) Devices(ctx context.Context, userID string) ([]domain.Device, error) {
	args := m.Called(ctx, userID)
	if ds, _ := args.Get(0).([]domain.Device); ds != nil {
		return ds, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

// --- builders ---

type testDeps struct {
	users  *mockUserStore
	tokens *mockTokenStore
	codec  *mockCodec
	engine *mockEngine
	binder *mockBinder
	mailer *mockMailer
	sms    *mockSMSSender
}

func newTestService() (Service, *testDeps) {
	d := &testDeps{
		users:  &mockUserStore{},
		tokens: &mockTokenStore{},
		codec:  &mockCodec{},
		engine: &mockEngine{},
		binder: &mockBinder{},
		mailer: &mockMailer{},
		sms:    &mockSMSSender{},
	}
	svc := NewService(ServiceDeps{
		UserRepo:   d.users,
		TokenRepo:  d.tokens,
		Codec:      d.codec,
		Engine:     d.engine,
		Binder:     d.binder,
		Mailer:     d.mailer,
		SMSSender:  d.sms,
		BcryptCost: bcrypt.MinCost,
	})
	return svc, d
}

func testPair() jwtinfra.Pair {
	return jwtinfra.Pair{
		AccessToken:  "access-jwt",
		RefreshToken: "refresh-jwt",
		ExpiresAt:    time.Now().Add(15 * time.Minute).UTC(),
	}
}

func activeUser() *domain.User {
	now := time.Now().UTC()
	hash, _ := bcrypt.GenerateFromPassword([]byte("P@ssw0rd1"), bcrypt.MinCost)
	return &domain.User{
		UserID:       "user-1",
		UUID:         "11111111-1111-1111-1111-111111111111",
		Email:        "a@b.com",
		PasswordHash: string(hash),
		FirstName:    "A",
		LastName:     "B",
		Status:       domain.UserStatusActive,
		VerifiedAt:   &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// expectSessionOpened wires the happy-path session mocks for an unverified
// login/registration: invalidate, store, bind, code issue, email.
func expectSessionOpened(d *testDeps, userID string, purpose domain.CodePurpose) {
	pair := testPair()
	d.codec.On("Issue", mock.AnythingOfType("string"), false).Return(pair, nil)
	d.tokens.On("InvalidateByUser", mock.Anything, userID).Return(nil)
	d.tokens.On("Put", mock.Anything, mock.AnythingOfType("*domain.Token")).Return(nil)
	d.binder.On("Bind", mock.Anything, userID, "dev-1", "ua-string").
		Return(&domain.Device{DeviceID: "device-1", UserID: userID, DeviceUUID: "dev-1"}, nil)
	d.engine.On("Issue", mock.Anything, userID, mock.AnythingOfType("string"), "device-1", pair.AccessToken, purpose).
		Return(&domain.VerificationCode{CodeID: "code-1", Code: "123456"}, nil)
	d.mailer.On("SendEmail", mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil)
}

// --- Register ---

func TestRegister_DuplicateEmailIsOpaque(t *testing.T) {
	svc, d := newTestService()
	d.users.On("GetByEmail", mock.Anything, "a@b.com").Return(activeUser(), nil)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email: "a@b.com", Password: "P@ssw0rd1", FirstName: "A", LastName: "B",
		DeviceID: "dev-1", ClientInfo: "ua-string",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Contains(t, err.Error(), "registration failed")
	d.users.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRegister_OpensUnverifiedSessionWithSignupCode(t *testing.T) {
	svc, d := newTestService()
	d.users.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, domain.ErrNotFound)

	var created *domain.User
	d.users.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
		Return(nil)
	d.codec.On("Issue", mock.AnythingOfType("string"), false).Return(testPair(), nil)
	d.tokens.On("InvalidateByUser", mock.Anything, mock.AnythingOfType("string")).Return(nil)
	d.tokens.On("Put", mock.Anything, mock.AnythingOfType("*domain.Token")).Return(nil)
	d.binder.On("Bind", mock.Anything, mock.AnythingOfType("string"), "dev-1", "ua-string").
		Return(&domain.Device{DeviceID: "device-1"}, nil)
	d.engine.On("Issue", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string"), "device-1", "access-jwt", domain.PurposeSignupEmail).
		Return(&domain.VerificationCode{CodeID: "code-1", Code: "123456", Attempts: 0, State: domain.CodePending}, nil)
	d.mailer.On("SendEmail", "a@b.com", mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil)

	res, err := svc.Register(context.Background(), RegisterRequest{
		Email: "A@B.com", Password: "P@ssw0rd1", FirstName: "A", LastName: "B",
		DeviceID: "dev-1", ClientInfo: "ua-string",
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "a@b.com", created.Email)
	assert.Equal(t, domain.UserStatusUnverified, created.Status)
	assert.Nil(t, created.VerifiedAt)
	assert.NotEqual(t, "P@ssw0rd1", created.PasswordHash)
	assert.NotEmpty(t, created.UUID)

	assert.Equal(t, "access-jwt", res.AccessToken)
	assert.Equal(t, "refresh-jwt", res.RefreshToken)
	assert.Equal(t, "bearer", res.TokenType)
	d.engine.AssertExpectations(t)
	d.mailer.AssertExpectations(t)
}

// --- Login ---

func TestLogin_UnknownEmail(t *testing.T) {
	svc, d := newTestService()
	d.users.On("GetByEmail", mock.Anything, "x@x.com").Return(nil, domain.ErrNotFound)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email: "x@x.com", Password: "whatever1", DeviceID: "dev-1",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, d := newTestService()
	d.users.On("GetByEmail", mock.Anything, "a@b.com").Return(activeUser(), nil)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email: "a@b.com", Password: "not-the-password", DeviceID: "dev-1",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestLogin_UnverifiedAccountRejected(t *testing.T) {
	u := activeUser()
	u.Status = domain.UserStatusUnverified
	u.VerifiedAt = nil

	svc, d := newTestService()
	d.users.On("GetByEmail", mock.Anything, "a@b.com").Return(u, nil)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email: "a@b.com", Password: "P@ssw0rd1", DeviceID: "dev-1",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	d.codec.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestLogin_OpensUnverifiedSessionWithLoginCode(t *testing.T) {
	svc, d := newTestService()
	d.users.On("GetByEmail", mock.Anything, "a@b.com").Return(activeUser(), nil)
	expectSessionOpened(d, "user-1", domain.PurposeLoginEmail)

	res, err := svc.Login(context.Background(), LoginRequest{
		Email: "a@b.com", Password: "P@ssw0rd1", DeviceID: "dev-1", ClientInfo: "ua-string",
	})

	require.NoError(t, err)
	assert.Equal(t, "bearer", res.TokenType)
	d.codec.AssertCalled(t, "Issue", activeUser().UUID, false)
	d.engine.AssertExpectations(t)
}

// --- VerifyOTP ---

func accessClaims(subject string, verified bool) *jwtinfra.Claims {
	c := &jwtinfra.Claims{Verified: verified, TokenType: jwtinfra.TokenTypeAccess}
	c.Subject = subject
	return c
}

func TestVerifyOTP_BadAccessToken(t *testing.T) {
	svc, d := newTestService()
	d.codec.On("Verify", "garbage", jwtinfra.TokenTypeAccess, false).
		Return(nil, domain.ErrUnauthorized)

	_, err := svc.VerifyOTP(context.Background(), OneTimePinRequest{
		AccessToken: "garbage", VerificationCode: "123456", DeviceID: "dev-1",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifyOTP_TokenNotRecognized(t *testing.T) {
	u := activeUser()
	svc, d := newTestService()
	d.codec.On("Verify", "access-jwt", jwtinfra.TokenTypeAccess, false).
		Return(accessClaims(u.UUID, false), nil)
	d.users.On("GetByUUID", mock.Anything, u.UUID).Return(u, nil)
	d.tokens.On("GetLiveByAccessToken", mock.Anything, u.UserID, "access-jwt").
		Return(nil, domain.ErrNotFound)

	_, err := svc.VerifyOTP(context.Background(), OneTimePinRequest{
		AccessToken: "access-jwt", VerificationCode: "123456", DeviceID: "dev-1",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	d.engine.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyOTP_WrongCodePropagates(t *testing.T) {
	u := activeUser()
	svc, d := newTestService()
	d.codec.On("Verify", "access-jwt", jwtinfra.TokenTypeAccess, false).
		Return(accessClaims(u.UUID, false), nil)
	d.users.On("GetByUUID", mock.Anything, u.UUID).Return(u, nil)
	d.tokens.On("GetLiveByAccessToken", mock.Anything, u.UserID, "access-jwt").
		Return(&domain.Token{TokenID: "token-1"}, nil)
	d.engine.On("Check", mock.Anything, u.UserID, "000000").
		Return(domain.ErrBadRequest)

	_, err := svc.VerifyOTP(context.Background(), OneTimePinRequest{
		AccessToken: "access-jwt", VerificationCode: "000000", DeviceID: "dev-1",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	d.codec.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestVerifyOTP_ActivatesUserAndMintsVerifiedPair(t *testing.T) {
	u := activeUser()
	u.Status = domain.UserStatusUnverified
	u.VerifiedAt = nil

	svc, d := newTestService()
	d.codec.On("Verify", "old-access", jwtinfra.TokenTypeAccess, false).
		Return(accessClaims(u.UUID, false), nil)
	d.users.On("GetByUUID", mock.Anything, u.UUID).Return(u, nil)
	d.tokens.On("GetLiveByAccessToken", mock.Anything, u.UserID, "old-access").
		Return(&domain.Token{TokenID: "token-1", AccessToken: "old-access"}, nil)
	d.engine.On("Check", mock.Anything, u.UserID, "123456").Return(nil)
	d.tokens.On("Retire", mock.Anything, "token-1").Return(nil)

	var updates map[string]interface{}
	d.users.On("Update", mock.Anything, u.UserID, mock.Anything).
		Run(func(args mock.Arguments) { updates = args.Get(2).(map[string]interface{}) }).
		Return(nil)

	d.codec.On("Issue", u.UUID, true).Return(testPair(), nil)
	d.tokens.On("InvalidateByUser", mock.Anything, u.UserID).Return(nil)
	d.tokens.On("Put", mock.Anything, mock.AnythingOfType("*domain.Token")).Return(nil)
	d.binder.On("Bind", mock.Anything, u.UserID, "dev-1", "ua-string").
		Return(&domain.Device{DeviceID: "device-1"}, nil)

	res, err := svc.VerifyOTP(context.Background(), OneTimePinRequest{
		AccessToken: "old-access", VerificationCode: "123456", DeviceID: "dev-1", ClientInfo: "ua-string",
	})

	require.NoError(t, err)
	assert.Equal(t, "access-jwt", res.AccessToken)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, string(domain.UserStatusActive), updates["status"])
	assert.NotEmpty(t, updates["verified_at"])
	d.tokens.AssertCalled(t, "Retire", mock.Anything, "token-1")
	d.tokens.AssertCalled(t, "InvalidateByUser", mock.Anything, u.UserID)
	d.engine.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- Refresh ---

func TestRefresh_NotEligible(t *testing.T) {
	svc, d := newTestService()
	d.codec.On("RefreshEligibility", "young-access").Return(false)

	_, err := svc.Refresh(context.Background(), RefreshRequest{
		UserID: "u", AccessToken: "young-access", RefreshToken: "refresh-jwt",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Contains(t, err.Error(), "not eligible")
	d.codec.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_SubjectMismatch(t *testing.T) {
	u := activeUser()
	c := &jwtinfra.Claims{Verified: true, TokenType: jwtinfra.TokenTypeRefresh}
	c.Subject = u.UUID

	svc, d := newTestService()
	d.codec.On("RefreshEligibility", "old-access").Return(true)
	d.codec.On("Verify", "refresh-jwt", jwtinfra.TokenTypeRefresh, true).Return(c, nil)

	_, err := svc.Refresh(context.Background(), RefreshRequest{
		UserID: "someone-else", AccessToken: "old-access", RefreshToken: "refresh-jwt",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Contains(t, err.Error(), "does not belong")
}

func TestRefresh_UnverifiedSessionRejected(t *testing.T) {
	u := activeUser()
	c := &jwtinfra.Claims{Verified: false, TokenType: jwtinfra.TokenTypeRefresh}
	c.Subject = u.UUID

	svc, d := newTestService()
	d.codec.On("RefreshEligibility", "old-access").Return(true)
	d.codec.On("Verify", "refresh-jwt", jwtinfra.TokenTypeRefresh, true).Return(c, nil)

	_, err := svc.Refresh(context.Background(), RefreshRequest{
		UserID: u.UUID, AccessToken: "old-access", RefreshToken: "refresh-jwt",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	d.tokens.AssertNotCalled(t, "InvalidateByUser", mock.Anything, mock.Anything)
}

func TestRefresh_RotatesPair(t *testing.T) {
	u := activeUser()
	c := &jwtinfra.Claims{Verified: true, TokenType: jwtinfra.TokenTypeRefresh}
	c.Subject = u.UUID

	svc, d := newTestService()
	d.codec.On("RefreshEligibility", "old-access").Return(true)
	d.codec.On("Verify", "refresh-jwt", jwtinfra.TokenTypeRefresh, true).Return(c, nil)
	d.users.On("GetByUUID", mock.Anything, u.UUID).Return(u, nil)
	d.codec.On("Issue", u.UUID, true).Return(testPair(), nil)
	d.tokens.On("InvalidateByUser", mock.Anything, u.UserID).Return(nil)
	var stored *domain.Token
	d.tokens.On("Put", mock.Anything, mock.AnythingOfType("*domain.Token")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.Token) }).
		Return(nil)

	res, err := svc.Refresh(context.Background(), RefreshRequest{
		UserID: u.UUID, AccessToken: "old-access", RefreshToken: "refresh-jwt",
	})

	require.NoError(t, err)
	assert.Equal(t, "access-jwt", res.AccessToken)
	require.NotNil(t, stored)
	assert.True(t, stored.Active)
	assert.Equal(t, u.UserID, stored.UserID)
	d.tokens.AssertCalled(t, "InvalidateByUser", mock.Anything, u.UserID)
}

// --- Logout ---

func TestLogout_SubjectMismatch(t *testing.T) {
	u := activeUser()
	svc, d := newTestService()
	d.codec.On("Verify", "access-jwt", jwtinfra.TokenTypeAccess, false).
		Return(accessClaims(u.UUID, true), nil)

	err := svc.Logout(context.Background(), LogoutRequest{
		UserID: "someone-else", AccessToken: "access-jwt",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	d.tokens.AssertNotCalled(t, "InvalidateByUser", mock.Anything, mock.Anything)
}

func TestLogout_InvalidatesTokens(t *testing.T) {
	u := activeUser()
	svc, d := newTestService()
	d.codec.On("Verify", "access-jwt", jwtinfra.TokenTypeAccess, false).
		Return(accessClaims(u.UUID, true), nil)
	d.users.On("GetByUUID", mock.Anything, u.UUID).Return(u, nil)
	d.tokens.On("InvalidateByUser", mock.Anything, u.UserID).Return(nil)

	err := svc.Logout(context.Background(), LogoutRequest{
		UserID: u.UUID, AccessToken: "access-jwt",
	})

	require.NoError(t, err)
	d.tokens.AssertExpectations(t)
}

// --- CurrentUser ---

func TestCurrentUser_DeletedIsNotFound(t *testing.T) {
	u := activeUser()
	now := time.Now().UTC()
	u.DeletedAt = &now

	svc, d := newTestService()
	d.users.On("GetByUUID", mock.Anything, u.UUID).Return(u, nil)

	_, err := svc.CurrentUser(context.Background(), u.UUID)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCurrentUser_ReturnsUser(t *testing.T) {
	u := activeUser()
	svc, d := newTestService()
	d.users.On("GetByUUID", mock.Anything, u.UUID).Return(u, nil)

	got, err := svc.CurrentUser(context.Background(), u.UUID)

	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
}
