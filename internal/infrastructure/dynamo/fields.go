package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldActive     = "active"
	fieldAttempts   = "attempts"
	fieldDeletedAt  = "deleted_at"
	fieldState      = "state"
	fieldStatus     = "status"
	fieldUpdatedAt  = "updated_at"
	fieldVerifiedAt = "verified_at"
	fieldLastSeenAt = "last_seen_at"
	fieldClientInfo = "client_info"
)
