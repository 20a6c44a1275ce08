package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/webhook-messaging/internal/cache"
	"github.com/example/webhook-messaging/internal/clock"
	"github.com/example/webhook-messaging/internal/model"
	"github.com/example/webhook-messaging/internal/queue"
	"github.com/example/webhook-messaging/internal/store"
)

// PaceInterval is the fixed delay between successive sends within one
// batch. The webhook provider rate-limits bursts, so jobs are paced.
const PaceInterval = 2500 * time.Millisecond

// Outcome classifies a job that completed without a retryable failure.
type Outcome int

const (
	// OutcomeSkipped means the job was a no-op: unknown id or a message
	// already in a terminal state.
	OutcomeSkipped Outcome = iota
	// OutcomeRejected means the message was permanently failed without a
	// webhook call (content over the configured maximum).
	OutcomeRejected
	// OutcomeSent means the webhook confirmed delivery and the message
	// reached SENT.
	OutcomeSent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRejected:
		return "rejected"
	case OutcomeSent:
		return "sent"
	default:
		return "unknown"
	}
}

// Sender performs the webhook call and returns the provider's delivery id.
type Sender interface {
	Send(ctx context.Context, to, content string) (string, error)
}

// Service consumes send jobs. Every step is safe to repeat: the queue is
// at-least-once and may hand the same job to concurrent consumers.
type Service struct {
	store      store.MessageStore
	sender     Sender
	cache      cache.SentCache
	clock      clock.Clock
	contentMax int
	sleep      func(ctx context.Context, d time.Duration) error
	logger     zerolog.Logger
}

func NewService(st store.MessageStore, sender Sender, sentCache cache.SentCache, clk clock.Clock, contentMax int, logger zerolog.Logger) *Service {
	return &Service{
		store:      st,
		sender:     sender,
		cache:      sentCache,
		clock:      clk,
		contentMax: contentMax,
		sleep:      sleepCtx,
		logger:     logger,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ProcessJob handles one queued send job. A returned error is always a
// retryable failure and means retryCount was already incremented for this
// attempt; everything else resolves to an Outcome and a nil error.
func (s *Service) ProcessJob(ctx context.Context, job queue.Job) (Outcome, error) {
	msg, err := s.store.GetByID(ctx, job.ID)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn().Str("id", job.ID).Msg("job refers to unknown message, skipping")
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("delivery: load %s: %w", job.ID, err)
	}

	if msg.Status.IsTerminal() {
		s.logger.Info().Str("id", msg.ID).Str("status", string(msg.Status)).
			Msg("message already finalized, skipping redelivered job")
		return OutcomeSkipped, nil
	}

	if len(msg.Content) > s.contentMax {
		if err := s.store.UpdateStatus(ctx, msg.ID, model.StatusFailed,
			store.StatusUpdate{UpdatedAt: s.clock.Now()}); err != nil {
			return OutcomeSkipped, fmt.Errorf("delivery: mark %s failed: %w", msg.ID, err)
		}
		s.logger.Warn().Str("id", msg.ID).Int("length", len(msg.Content)).
			Int("max", s.contentMax).Msg("content over limit, message failed permanently")
		return OutcomeRejected, nil
	}

	providerID, err := s.sender.Send(ctx, msg.To, msg.Content)
	if err != nil {
		if incErr := s.store.IncrementRetryCount(ctx, msg.ID); incErr != nil {
			s.logger.Error().Err(incErr).Str("id", msg.ID).
				Msg("failed to record retry for failed send")
		}
		return OutcomeSkipped, fmt.Errorf("delivery: send %s: %w", msg.ID, err)
	}

	now := s.clock.Now()
	messageID := fmt.Sprintf("%s-%s", providerID, uuid.NewString())

	if err := s.store.UpdateStatus(ctx, msg.ID, model.StatusSent, store.StatusUpdate{
		UpdatedAt: now,
		MessageID: &messageID,
		SentAt:    &now,
	}); err != nil {
		return OutcomeSkipped, fmt.Errorf("delivery: finalize %s: %w", msg.ID, err)
	}

	if s.cache != nil {
		if err := s.cache.StoreSent(ctx, msg.ID, messageID, now); err != nil {
			s.logger.Warn().Err(err).Str("id", msg.ID).Msg("cache write failed, ignoring")
		}
	}

	s.logger.Info().Str("id", msg.ID).Str("messageId", messageID).Msg("message sent")
	return OutcomeSent, nil
}

// ProcessBatch runs the jobs strictly in order with PaceInterval between
// successive jobs and no delay after the last. The first retryable failure
// aborts the remainder so the queue redelivers the whole batch.
func (s *Service) ProcessBatch(ctx context.Context, jobs []queue.Job) error {
	for i, job := range jobs {
		if _, err := s.ProcessJob(ctx, job); err != nil {
			return err
		}

		if i < len(jobs)-1 {
			if err := s.sleep(ctx, PaceInterval); err != nil {
				return err
			}
		}
	}
	return nil
}
