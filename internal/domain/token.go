package domain

import "time"

// Token is a stored bearer-credential pair. At most one live row
// (Active and not soft-deleted) exists per user: prior rows are
// invalidated before a new one is written.
type Token struct {
	TokenID      string     `json:"id" dynamodbav:"token_id"`
	UserID       string     `json:"user_id" dynamodbav:"user_id"`
	AccessToken  string     `json:"access_token" dynamodbav:"access_token"`
	RefreshToken string     `json:"refresh_token" dynamodbav:"refresh_token"`
	ExpiresAt    time.Time  `json:"expires_at" dynamodbav:"expires_at"`
	Active       bool       `json:"active" dynamodbav:"active"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated" dynamodbav:"updated_at"`
}
