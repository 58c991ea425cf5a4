package domain

import "time"

// UserStatus tracks account activation. A user is created unverified and
// becomes active only through a successful signup OTP check.
type UserStatus string

const (
	UserStatusUnverified UserStatus = "unverified"
	UserStatusActive     UserStatus = "active"
)

type User struct {
	UserID       string     `json:"id" dynamodbav:"user_id"`
	UUID         string     `json:"uuid" dynamodbav:"uuid"`
	Email        string     `json:"email" dynamodbav:"email"` // stored lowercased
	Phone        *string    `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	PasswordHash string     `json:"-" dynamodbav:"password_hash"`
	FirstName    string     `json:"first_name" dynamodbav:"first_name"`
	LastName     string     `json:"last_name" dynamodbav:"last_name"`
	Status       UserStatus `json:"status" dynamodbav:"status"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty" dynamodbav:"verified_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// IsDeleted reports whether the account has been soft-deleted.
// Users are never hard-deleted.
func (u *User) IsDeleted() bool { return u.DeletedAt != nil }
