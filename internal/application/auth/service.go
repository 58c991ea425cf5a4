package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/auth-otp-api/internal/domain"
	jwtinfra "github.com/auth-otp-api/internal/infrastructure/jwt"
	"github.com/auth-otp-api/internal/pkg/id"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Email      string  `json:"email" validate:"required,email"`
	Password   string  `json:"password" validate:"required,min=8"`
	FirstName  string  `json:"first_name" validate:"required"`
	LastName   string  `json:"last_name" validate:"required"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,e164"`
	DeviceID   string  `json:"device_id" validate:"required"`
	ClientInfo string  `json:"client_info"`
}

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	DeviceID   string `json:"device_id" validate:"required"`
	ClientInfo string `json:"client_info"`
}

type OneTimePinRequest struct {
	AccessToken      string `json:"access_token" validate:"required"`
	VerificationCode string `json:"verification_code" validate:"required,len=6,numeric"`
	DeviceID         string `json:"device_id" validate:"required"`
	ClientInfo       string `json:"client_info"`
}

type RefreshRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	AccessToken string `json:"access_token" validate:"required"`
}

// TokenResult is the wire shape every credential-issuing operation returns.
type TokenResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*TokenResult, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResult, error)
	VerifyOTP(ctx context.Context, req OneTimePinRequest) (*TokenResult, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenResult, error)
	Logout(ctx context.Context, req LogoutRequest) error
	CurrentUser(ctx context.Context, subjectUUID string) (*domain.User, error)
	Devices(ctx context.Context, subjectUUID string) ([]domain.Device, error)
}

type userStore interface {
	Put(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUUID(ctx context.Context, userUUID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type tokenStore interface {
	Put(ctx context.Context, t *domain.Token) error
	GetLiveByAccessToken(ctx context.Context, userID, accessToken string) (*domain.Token, error)
	Retire(ctx context.Context, tokenID string) error
	InvalidateByUser(ctx context.Context, userID string) error
}

type tokenCodec interface {
	Issue(subject string, verified bool) (jwtinfra.Pair, error)
	Verify(tokenStr string, expected jwtinfra.TokenType, checkExpiry bool) (*jwtinfra.Claims, error)
	RefreshEligibility(accessToken string) bool
}

type otpEngine interface {
	Issue(ctx context.Context, userID, tokenID, deviceID, accessToken string, purpose domain.CodePurpose) (*domain.VerificationCode, error)
	Check(ctx context.Context, userID, submitted string) error
}

type deviceBinder interface {
	Bind(ctx context.Context, userID, deviceUUID, clientInfo string) (*domain.Device, error)
	Devices(ctx context.Context, userID string) ([]domain.Device, error)
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	users      userStore
	tokens     tokenStore
	codec      tokenCodec
	engine     otpEngine
	binder     deviceBinder
	mailer     mailer
	smsSender  smsSender
	bcryptCost int
}

type ServiceDeps struct {
	UserRepo   userStore
	TokenRepo  tokenStore
	Codec      tokenCodec
	Engine     otpEngine
	Binder     deviceBinder
	Mailer     mailer
	SMSSender  smsSender
	BcryptCost int
}

func NewService(deps ServiceDeps) Service {
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &service{
		users:      deps.UserRepo,
		tokens:     deps.TokenRepo,
		codec:      deps.Codec,
		engine:     deps.Engine,
		binder:     deps.Binder,
		mailer:     deps.Mailer,
		smsSender:  deps.SMSSender,
		bcryptCost: cost,
	}
}

// Register creates an unverified account and opens its first session. The
// returned pair carries verified=false; the signup code sent alongside is
// what upgrades it.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*TokenResult, error) {
	email := strings.ToLower(req.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		// Deliberately vague so the endpoint cannot be used to probe for
		// registered addresses.
		return nil, fmt.Errorf("registration failed: %w", domain.ErrBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		UUID:         uuid.NewString(),
		Email:        email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Status:       domain.UserStatusUnverified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, err
	}

	return s.openSession(ctx, u, false, domain.PurposeSignupEmail, req.DeviceID, req.ClientInfo)
}

// Login authenticates an active account and opens a new unverified session
// pending an OTP check. Every prior session is retired first.
func (s *service) Login(ctx context.Context, req LoginRequest) (*TokenResult, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if u.IsDeleted() || u.Status != domain.UserStatusActive || u.VerifiedAt == nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	return s.openSession(ctx, u, false, domain.PurposeLoginEmail, req.DeviceID, req.ClientInfo)
}

// VerifyOTP consumes a submitted code against the session the access token
// identifies and, on success, swaps the unverified pair for a verified one.
// An expired access token is accepted here: the OTP window may outlive a
// short-lived early-stage token, and the code check is the actual gate.
func (s *service) VerifyOTP(ctx context.Context, req OneTimePinRequest) (*TokenResult, error) {
	claims, err := s.codec.Verify(req.AccessToken, jwtinfra.TokenTypeAccess, false)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByUUID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if u.IsDeleted() {
		return nil, fmt.Errorf("account no longer exists: %w", domain.ErrUnauthorized)
	}

	tok, err := s.tokens.GetLiveByAccessToken(ctx, u.UserID, req.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("token not recognized: %w", domain.ErrUnauthorized)
	}

	if err := s.engine.Check(ctx, u.UserID, req.VerificationCode); err != nil {
		return nil, err
	}

	// The unverified pair has served its purpose; retire it before the
	// verified one is minted.
	if err := s.tokens.Retire(ctx, tok.TokenID); err != nil {
		return nil, err
	}

	if u.Status != domain.UserStatusActive {
		now := time.Now().UTC()
		if err := s.users.Update(ctx, u.UserID, map[string]interface{}{
			"status":      string(domain.UserStatusActive),
			"verified_at": now.Format(time.RFC3339),
		}); err != nil {
			return nil, err
		}
	}

	return s.openSession(ctx, u, true, "", req.DeviceID, req.ClientInfo)
}

// Refresh rotates an aging verified session. The access token must have
// burned at least 75% of its lifetime; the refresh token must verify in
// full, belong to the claimed user and come from a verified session.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*TokenResult, error) {
	if !s.codec.RefreshEligibility(req.AccessToken) {
		return nil, fmt.Errorf("not eligible: %w", domain.ErrUnauthorized)
	}

	claims, err := s.codec.Verify(req.RefreshToken, jwtinfra.TokenTypeRefresh, true)
	if err != nil {
		return nil, err
	}
	if claims.Subject != req.UserID {
		return nil, fmt.Errorf("token does not belong to the user: %w", domain.ErrUnauthorized)
	}
	if !claims.Verified {
		return nil, fmt.Errorf("session not verified: %w", domain.ErrUnauthorized)
	}

	u, err := s.users.GetByUUID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if u.IsDeleted() {
		return nil, fmt.Errorf("account no longer exists: %w", domain.ErrUnauthorized)
	}

	pair, err := s.codec.Issue(u.UUID, true)
	if err != nil {
		return nil, err
	}
	if _, err := s.storeTokenPair(ctx, u.UserID, pair); err != nil {
		return nil, err
	}
	return tokenResult(pair), nil
}

// Logout invalidates every live token the user holds. The presented access
// token only has to be well-formed and owned by the user; an expired one is
// fine, logging out must always be possible.
func (s *service) Logout(ctx context.Context, req LogoutRequest) error {
	claims, err := s.codec.Verify(req.AccessToken, jwtinfra.TokenTypeAccess, false)
	if err != nil {
		return err
	}
	if claims.Subject != req.UserID {
		return fmt.Errorf("token does not belong to the user: %w", domain.ErrUnauthorized)
	}
	u, err := s.users.GetByUUID(ctx, claims.Subject)
	if err != nil {
		return err
	}
	return s.tokens.InvalidateByUser(ctx, u.UserID)
}

func (s *service) CurrentUser(ctx context.Context, subjectUUID string) (*domain.User, error) {
	u, err := s.users.GetByUUID(ctx, subjectUUID)
	if err != nil {
		return nil, err
	}
	if u.IsDeleted() {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return u, nil
}

// Devices lists the client bindings for the authenticated account. Under
// the single-active-session policy this is at most the device of the login
// that produced the live pair.
func (s *service) Devices(ctx context.Context, subjectUUID string) ([]domain.Device, error) {
	u, err := s.CurrentUser(ctx, subjectUUID)
	if err != nil {
		return nil, err
	}
	return s.binder.Devices(ctx, u.UserID)
}

// openSession mints and stores a token pair, rebinds the device and, for
// unverified sessions, issues and delivers the gating code. Prior tokens
// are invalidated before the new row lands so one live pair exists per user.
func (s *service) openSession(ctx context.Context, u *domain.User, verified bool, purpose domain.CodePurpose, deviceUUID, clientInfo string) (*TokenResult, error) {
	pair, err := s.codec.Issue(u.UUID, verified)
	if err != nil {
		return nil, err
	}
	tok, err := s.storeTokenPair(ctx, u.UserID, pair)
	if err != nil {
		return nil, err
	}

	device, err := s.binder.Bind(ctx, u.UserID, deviceUUID, clientInfo)
	if err != nil {
		return nil, err
	}

	if !verified {
		code, err := s.engine.Issue(ctx, u.UserID, tok.TokenID, device.DeviceID, pair.AccessToken, purpose)
		if err != nil {
			return nil, err
		}
		s.deliverCode(ctx, u, code.Code)
	}

	return tokenResult(pair), nil
}

func (s *service) storeTokenPair(ctx context.Context, userID string, pair jwtinfra.Pair) (*domain.Token, error) {
	if err := s.tokens.InvalidateByUser(ctx, userID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	tok := &domain.Token{
		TokenID:      id.New(),
		UserID:       userID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.tokens.Put(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// deliverCode sends the code over email and, for users with a phone on
// file, SMS. Delivery is best-effort: the credentials are already stored,
// and a provider hiccup must not roll the session back. Failures are
// logged; the user can re-login to trigger a fresh code.
func (s *service) deliverCode(ctx context.Context, u *domain.User, code string) {
	if err := s.mailer.SendEmail(u.Email, "Your verification code", "Your verification code is: "+code); err != nil {
		slog.Error("failed to send verification email", "user_id", u.UserID, "err", err)
	}
	if u.Phone != nil && s.smsSender != nil {
		if err := s.smsSender.SendSMS(ctx, *u.Phone, "Your verification code is: "+code); err != nil {
			slog.Warn("failed to send verification SMS", "user_id", u.UserID, "err", err)
		}
	}
}

func tokenResult(pair jwtinfra.Pair) *TokenResult {
	return &TokenResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		TokenType:    "bearer",
	}
}
