package model

import "time"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSent       Status = "SENT"
	StatusFailed     Status = "FAILED"
)

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Message is the persisted lifecycle record. ID, To and Content are
// immutable after creation; everything else is owned by the dispatch and
// delivery services.
type Message struct {
	ID         string     `json:"id"`
	To         string     `json:"to"`
	Content    string     `json:"content"`
	Status     Status     `json:"status"`
	MessageID  *string    `json:"messageId,omitempty"`
	RetryCount int        `json:"retryCount"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	SentAt     *time.Time `json:"sentAt,omitempty"`

	// ExpiresAt is an epoch-seconds GC hint for the storage layer; nothing
	// in the services interprets it.
	ExpiresAt *int64 `json:"expiresAt,omitempty"`
}
