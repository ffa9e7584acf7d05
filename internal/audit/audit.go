package audit

import "time"

type Action string

const (
	ActionAppend Action = "append"
	ActionDelete Action = "delete"
	ActionReset  Action = "reset"
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
	ActionDenied Action = "denied"
)

// Event is one state-changing user action. Events are appended in
// chronological order and never rewritten.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"user_id"`
	Actor     string    `json:"actor,omitempty"`
	Action    Action    `json:"action"`
	Key       string    `json:"key,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Recorder persists audit events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Append(event Event) error
	// LoadDay returns the events of the calendar day of day, in append order.
	LoadDay(day time.Time) ([]Event, error)
}
