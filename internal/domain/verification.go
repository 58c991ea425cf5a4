package domain

import "time"

// CodeState is the explicit lifecycle of a verification code. Every state
// other than pending is terminal; timestamps are kept as audit fields only.
type CodeState string

const (
	CodePending     CodeState = "pending"
	CodeVerified    CodeState = "verified"
	CodeExpired     CodeState = "expired"
	CodeExhausted   CodeState = "exhausted"
	CodeInvalidated CodeState = "invalidated" // superseded by a newer login/registration cycle
)

// CodePurpose tags what a verification code gates.
type CodePurpose string

const (
	PurposeSignupEmail CodePurpose = "signup_email"
	PurposeLoginEmail  CodePurpose = "login_email"
)

// MaxCodeAttempts bounds how many times a single code may be checked.
const MaxCodeAttempts = 3

// VerificationCode is a short-lived six-digit code tied to the token and
// device it was issued alongside. Code is a zero-padded decimal string.
// ExpiresAt doubles as the DynamoDB TTL attribute so terminal rows are
// eventually evicted even if never touched again.
type VerificationCode struct {
	CodeID     string      `json:"id" dynamodbav:"code_id"`
	UserID     string      `json:"user_id" dynamodbav:"user_id"`
	TokenID    string      `json:"token_id" dynamodbav:"token_id"`
	DeviceID   string      `json:"device_id" dynamodbav:"device_id"`
	Code       string      `json:"code" dynamodbav:"code"`
	Purpose    CodePurpose `json:"purpose" dynamodbav:"purpose"`
	Attempts   int         `json:"attempts" dynamodbav:"attempts"`
	State      CodeState   `json:"state" dynamodbav:"state"`
	ExpiresAt  int64       `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	VerifiedAt *time.Time  `json:"verified_at,omitempty" dynamodbav:"verified_at,omitempty"`
	DeletedAt  *time.Time  `json:"deleted_at,omitempty" dynamodbav:"deleted_at,omitempty"`
	CreatedAt  time.Time   `json:"created" dynamodbav:"created_at"`
	UpdatedAt  time.Time   `json:"updated" dynamodbav:"updated_at"`
}
