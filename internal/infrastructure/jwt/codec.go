package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/auth-otp-api/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType discriminates the two credentials a pair carries. The claim is
// checked on every verification so an access token cannot be replayed where
// a refresh token is required, or vice versa.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// refreshEligibleFraction is the share of the access token's lifetime that
// must have elapsed before a refresh is accepted.
const refreshEligibleFraction = 0.75

// Claims holds the JWT payload fields.
type Claims struct {
	Verified  bool      `json:"verified"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Config is the explicit signing surface injected at construction.
// There is no package-level signing state.
type Config struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Pair is a freshly issued access/refresh credential pair.
// ExpiresAt is the access token's expiry.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Codec signs and verifies HS256 bearer tokens. It is stateless: storage of
// issued pairs is the caller's concern.
type Codec struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: signing secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt: token lifetimes must be positive")
	}
	return &Codec{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

// Issue produces a signed access/refresh pair for subject. The verified
// claim is embedded in both tokens; callers consult it at the application
// layer, the codec itself attaches no semantics to it.
func (c *Codec) Issue(subject string, verified bool) (Pair, error) {
	if subject == "" {
		return Pair{}, fmt.Errorf("subject required to issue tokens: %w", domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	accessExp := now.Add(c.accessTTL)

	access, err := c.sign(subject, verified, TokenTypeAccess, now, accessExp)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := c.sign(subject, verified, TokenTypeRefresh, now, now.Add(c.refreshTTL))
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Pair{AccessToken: access, RefreshToken: refresh, ExpiresAt: accessExp}, nil
}

func (c *Codec) sign(subject string, verified bool, typ TokenType, now, exp time.Time) (string, error) {
	claims := Claims{
		Verified:  verified,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify parses tokenStr and validates signature, issuer, audience,
// not-before, token type and subject. Expiry is skipped when checkExpiry is
// false; everything else is always enforced. All failures wrap
// domain.ErrUnauthorized.
func (c *Codec) Verify(tokenStr string, expected TokenType, checkExpiry bool) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, c.keyFunc)
	if err != nil {
		if checkExpiry || !expiredOnly(err) {
			return nil, fmt.Errorf("invalid token: %v: %w", err, domain.ErrUnauthorized)
		}
		// Signature, issuer, audience and nbf all validated; only exp failed
		// and the caller asked to tolerate that.
	} else if !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}

	if claims.TokenType == "" {
		return nil, fmt.Errorf("token type missing: %w", domain.ErrUnauthorized)
	}
	if claims.TokenType != expected {
		return nil, fmt.Errorf("invalid token type: expected %s, got %s: %w", expected, claims.TokenType, domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing subject claim: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

// RefreshEligibility reports whether the access token has burned through at
// least 75% of its lifetime. A token that cannot be parsed at all is not
// eligible; an expired but well-formed token is, since its elapsed fraction
// exceeds the threshold by definition.
func (c *Codec) RefreshEligibility(accessToken string) bool {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return false
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return false
	}
	total := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if total <= 0 {
		return false
	}
	elapsed := time.Since(claims.IssuedAt.Time)
	return float64(elapsed)/float64(total) >= refreshEligibleFraction
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return c.secret, nil
}

// expiredOnly reports whether err is an expiry validation failure and
// nothing else. golang-jwt joins claim validation errors, so each fatal
// class has to be ruled out explicitly.
func expiredOnly(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired) &&
		!errors.Is(err, jwt.ErrTokenSignatureInvalid) &&
		!errors.Is(err, jwt.ErrTokenMalformed) &&
		!errors.Is(err, jwt.ErrTokenInvalidIssuer) &&
		!errors.Is(err, jwt.ErrTokenInvalidAudience) &&
		!errors.Is(err, jwt.ErrTokenNotValidYet)
}
