package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/webhook-messaging/internal/model"
)

var (
	// ErrNotFound means the message id is unknown to the store.
	ErrNotFound = errors.New("message not found")
	// ErrAlreadyExists means a Create collided on the primary key.
	ErrAlreadyExists = errors.New("message already exists")
)

// StatusUpdate carries the extra fields written alongside a status
// transition. Nil pointers leave the stored value untouched.
type StatusUpdate struct {
	UpdatedAt time.Time
	MessageID *string
	SentAt    *time.Time
}

// MessageStore is the persistence contract shared by the dispatch and
// delivery services. UpdateStatusIfCurrent is the correctness primitive:
// a compare-and-swap on the status field, atomic per id.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)

	// GetPending returns PENDING messages ordered by createdAt ascending.
	// limit is clamped to [0, 100]; a limit of 0 performs no query.
	GetPending(ctx context.Context, limit int) ([]model.Message, error)

	// GetByStatus returns messages ordered by createdAt descending.
	// limit <= 0 means no limit; otherwise clamped to 1000.
	GetByStatus(ctx context.Context, status model.Status, limit int) ([]model.Message, error)

	// UpdateStatus overwrites status and the given fields unconditionally.
	// Used for terminal finalization where no competing writer exists.
	UpdateStatus(ctx context.Context, id string, status model.Status, upd StatusUpdate) error

	// UpdateStatusIfCurrent applies the transition only if the stored
	// status still equals expected at write time. Returns false, with no
	// error and no side effect, when the precondition fails.
	UpdateStatusIfCurrent(ctx context.Context, id string, expected, next model.Status, upd StatusUpdate) (bool, error)

	// IncrementRetryCount atomically adds 1 to retryCount and refreshes
	// updatedAt. No precondition; concurrent calls may undercount only in
	// the sense that each still adds exactly 1.
	IncrementRetryCount(ctx context.Context, id string) error
}
