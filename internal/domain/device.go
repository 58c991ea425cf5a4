package domain

import "time"

// Device records the client fingerprint bound to a user's session.
// Binding replaces any prior rows for the user, so one row exists per
// (user, device_uuid) at any time.
type Device struct {
	DeviceID   string    `json:"id" dynamodbav:"device_id"`
	UserID     string    `json:"user_id" dynamodbav:"user_id"`
	DeviceUUID string    `json:"device_uuid" dynamodbav:"device_uuid"`
	ClientInfo string    `json:"client_info" dynamodbav:"client_info"`
	LastSeenAt time.Time `json:"last_seen" dynamodbav:"last_seen_at"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt  time.Time `json:"updated" dynamodbav:"updated_at"`
}
