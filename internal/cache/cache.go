package cache

import (
	"context"
	"time"
)

// SentCache records a short-lived lookup entry after a successful send.
// Writes are best-effort: callers log and swallow failures.
type SentCache interface {
	StoreSent(ctx context.Context, id, messageID string, sentAt time.Time) error
}
