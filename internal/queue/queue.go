package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Job is the minimal reference placed on the queue per claimed message.
type Job struct {
	ID string `json:"id"`
}

// JobQueue is the outbound side of the delivery channel. The channel is
// at-least-once: consumers may see the same job more than once.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) error
}

var errProducerNotInitialised = errors.New("queue: producer not initialised")

// SyncProducer captures the subset of producer behaviour the publisher needs.
type SyncProducer interface {
	PublishSync(topic string, key, payload []byte) error
}

// Publisher writes send jobs to the job topic, keyed by message id so
// redeliveries of the same message land on the same partition.
type Publisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

var _ JobQueue = (*Publisher)(nil)

func NewPublisher(producer SyncProducer, topic string, logger zerolog.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

func (p *Publisher) Enqueue(_ context.Context, job Job) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialised
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}

	if err := p.producer.PublishSync(p.topic, []byte(job.ID), payload); err != nil {
		return fmt.Errorf("queue: publish job: %w", err)
	}

	p.logger.Debug().Str("id", job.ID).Str("topic", p.topic).Msg("job enqueued")
	return nil
}

// DecodeJob parses a queue entry body.
func DecodeJob(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return Job{}, fmt.Errorf("queue: decode job: %w", err)
	}
	if job.ID == "" {
		return Job{}, errors.New("queue: job missing id")
	}
	return job, nil
}
