package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/webhook-messaging/internal/clock"
	"github.com/example/webhook-messaging/internal/model"
	"github.com/example/webhook-messaging/internal/queue"
	"github.com/example/webhook-messaging/internal/store"
)

const maxBatch = 100

// Dispatcher moves PENDING messages into the delivery pipeline: claim the
// row first, enqueue the job second. A crash between the two leaves the
// message IN_PROGRESS rather than risking a double enqueue.
type Dispatcher struct {
	store  store.MessageStore
	jobs   queue.JobQueue
	clock  clock.Clock
	logger zerolog.Logger
}

func NewDispatcher(st store.MessageStore, jobs queue.JobQueue, clk clock.Clock, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: st, jobs: jobs, clock: clk, logger: logger}
}

// DispatchPending claims up to limit pending messages and enqueues one send
// job per successful claim. The returned count is the number of jobs
// enqueued, not the number of candidates fetched. Messages whose claim is
// lost to a competing dispatcher are skipped silently.
func (d *Dispatcher) DispatchPending(ctx context.Context, limit int) (int, error) {
	if limit < 0 {
		limit = 0
	}
	if limit > maxBatch {
		limit = maxBatch
	}
	if limit == 0 {
		return 0, nil
	}

	candidates, err := d.store.GetPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("dispatch: fetch pending: %w", err)
	}

	dispatched := 0
	for _, m := range candidates {
		claimed, err := d.store.UpdateStatusIfCurrent(ctx, m.ID,
			model.StatusPending, model.StatusInProgress,
			store.StatusUpdate{UpdatedAt: d.clock.Now()})
		if err != nil {
			return dispatched, fmt.Errorf("dispatch: claim %s: %w", m.ID, err)
		}
		if !claimed {
			d.logger.Debug().Str("id", m.ID).Msg("claim lost, skipping")
			continue
		}

		if err := d.jobs.Enqueue(ctx, queue.Job{ID: m.ID}); err != nil {
			return dispatched, fmt.Errorf("dispatch: enqueue %s: %w", m.ID, err)
		}

		dispatched++
		d.logger.Info().Str("id", m.ID).Msg("message dispatched")
	}

	return dispatched, nil
}
