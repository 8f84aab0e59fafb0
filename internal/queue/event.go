// Package queue defines the auth event payload exchanged over the
// message broker, the publisher that emits it and the background
// consumer that writes the audit trail.
package queue

// Event types published on the auth.events queue.
const (
	EventAccountCreated   = "account.created"
	EventPasswordChanged  = "password.changed"
	EventAccountBlocked   = "account.blocked"
	EventAccountUnblocked = "account.unblocked"
)

// AuthEvent is published whenever an account-level security event
// happens.  It carries enough information for downstream consumers to
// audit or notify without querying the primary database.  No credential
// material ever goes into an event.
type AuthEvent struct {
	Type       string `json:"type"`
	Role       string `json:"role"`
	UserID     string `json:"user_id"`
	Email      string `json:"email,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
