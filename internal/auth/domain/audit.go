package domain

import "time"

type AuditEvent string

const (
	AuditEventLogin       AuditEvent = "login"
	AuditEventFailedLogin AuditEvent = "failed_login"
)

type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "success"
	AuditOutcomeFailure AuditOutcome = "failure"
)

// Failed login reasons written to AuditRecord.Details["reason"].
const (
	ReasonUserNotFound    = "user_not_found"
	ReasonAccountInactive = "account_inactive"
	ReasonWrongPassword   = "wrong_password"
)

// AuditRecord is an append-only authentication event.
type AuditRecord struct {
	ID        string
	UserID    *string // nil when the account could not be resolved
	Event     AuditEvent
	Outcome   AuditOutcome
	IPAddress string
	UserAgent *string
	Details   map[string]string
	CreatedAt time.Time
}
