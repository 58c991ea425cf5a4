package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/auth-otp-api/internal/domain"
	"github.com/auth-otp-api/internal/pkg/id"
)

// codeModulus maps a hash digest onto the 000000-999999 code space.
var codeModulus = big.NewInt(1_000_000)

type verificationStore interface {
	Put(ctx context.Context, v *domain.VerificationCode) error
	GetCurrentByUser(ctx context.Context, userID string) (*domain.VerificationCode, error)
	IncrementAttempts(ctx context.Context, codeID string, fromAttempts int) error
	Consume(ctx context.Context, codeID string, state domain.CodeState, attempts int) error
	InvalidatePending(ctx context.Context, userID string, purpose domain.CodePurpose) error
}

// Engine owns the verification-code lifecycle: derivation, the attempt
// counter and the pending -> terminal state transitions. It holds no
// token or user logic.
type Engine struct {
	repo verificationStore
	ttl  time.Duration
}

func NewEngine(repo verificationStore, ttl time.Duration) *Engine {
	return &Engine{repo: repo, ttl: ttl}
}

// Issue derives a fresh six-digit code bound to (user, token, device) and
// stores it pending with zero attempts. Any pending code the user still
// holds for the purpose is invalidated first, so exactly one code per
// purpose is live at a time.
func (e *Engine) Issue(ctx context.Context, userID, tokenID, deviceID, accessToken string, purpose domain.CodePurpose) (*domain.VerificationCode, error) {
	if err := e.repo.InvalidatePending(ctx, userID, purpose); err != nil {
		return nil, err
	}

	code, err := deriveCode(userID, accessToken)
	if err != nil {
		return nil, fmt.Errorf("derive verification code: %w", err)
	}

	now := time.Now().UTC()
	v := &domain.VerificationCode{
		CodeID:    id.New(),
		UserID:    userID,
		TokenID:   tokenID,
		DeviceID:  deviceID,
		Code:      code,
		Purpose:   purpose,
		Attempts:  0,
		State:     domain.CodePending,
		ExpiresAt: now.Add(e.ttl).Unix(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.repo.Put(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Check evaluates a submitted code against the user's current one. The
// attempt cap is enforced before the digits are compared, and expiry before
// both, so a correct code cannot rescue an exhausted or expired one. Wrong
// submissions burn an attempt; the transition into a terminal state is a
// conditional write, so two racing submissions cannot both count the same
// attempt. Terminal codes answer every further check with the same error.
func (e *Engine) Check(ctx context.Context, userID, submitted string) error {
	v, err := e.repo.GetCurrentByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("invalid code: %w", domain.ErrBadRequest)
		}
		return err
	}

	switch v.State {
	case domain.CodeExhausted:
		return fmt.Errorf("too many attempts: %w", domain.ErrBadRequest)
	case domain.CodeExpired:
		return fmt.Errorf("code expired: %w", domain.ErrBadRequest)
	case domain.CodeVerified:
		return fmt.Errorf("invalid code: %w", domain.ErrBadRequest)
	}

	if v.Attempts >= domain.MaxCodeAttempts {
		if err := e.repo.Consume(ctx, v.CodeID, domain.CodeExhausted, v.Attempts); err != nil {
			return err
		}
		return fmt.Errorf("too many attempts: %w", domain.ErrBadRequest)
	}

	if time.Now().Unix() > v.ExpiresAt {
		if err := e.repo.Consume(ctx, v.CodeID, domain.CodeExpired, v.Attempts); err != nil {
			return err
		}
		return fmt.Errorf("code expired: %w", domain.ErrBadRequest)
	}

	if submitted != v.Code {
		if v.Attempts+1 >= domain.MaxCodeAttempts {
			if err := e.repo.Consume(ctx, v.CodeID, domain.CodeExhausted, v.Attempts+1); err != nil {
				return err
			}
			return fmt.Errorf("too many attempts: %w", domain.ErrBadRequest)
		}
		if err := e.repo.IncrementAttempts(ctx, v.CodeID, v.Attempts); err != nil {
			return err
		}
		return fmt.Errorf("invalid code: %w", domain.ErrBadRequest)
	}

	return e.repo.Consume(ctx, v.CodeID, domain.CodeVerified, v.Attempts+1)
}

// deriveCode hashes the user id, the freshly minted access token, the
// current time and a random nonce, then folds the digest onto six decimal
// digits with leading zeros preserved.
func deriveCode(userID, accessToken string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	seed := fmt.Sprintf("%s-%s-%d-%s", userID, accessToken, time.Now().UnixNano(), hex.EncodeToString(nonce))
	sum := sha256.Sum256([]byte(seed))
	n := new(big.Int).Mod(new(big.Int).SetBytes(sum[:]), codeModulus)
	return fmt.Sprintf("%06d", n.Int64()), nil
}
