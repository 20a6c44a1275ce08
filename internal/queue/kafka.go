package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const (
	defaultSessionTimeout = 30 * time.Second
	defaultHeartbeat      = 3 * time.Second
	defaultConsumeBackoff = time.Second
)

// Producer wraps a Sarama sync producer with idempotent, wait-for-all acks.
type Producer struct {
	client       sarama.Client
	syncProducer sarama.SyncProducer
	logger       zerolog.Logger
}

func NewProducer(brokers []string, logger zerolog.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("queue: at least one broker is required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 6
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("queue: create client: %w", err)
	}

	syncProd, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("queue: create sync producer: %w", err)
	}

	return &Producer{client: client, syncProducer: syncProd, logger: logger}, nil
}

func (p *Producer) PublishSync(topic string, key, payload []byte) error {
	if topic == "" {
		return errors.New("queue: topic is required")
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}

	if _, _, err := p.syncProducer.SendMessage(msg); err != nil {
		return fmt.Errorf("queue: send sync: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	var errs []error
	if err := p.syncProducer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.client.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BatchHandler processes one delivered batch of jobs. A non-nil error leaves
// the batch offsets unmarked so the whole batch is redelivered later.
type BatchHandler func(ctx context.Context, jobs []Job) error

// Consumer reads job batches from the job topic through a consumer group.
type Consumer struct {
	group    sarama.ConsumerGroup
	groupID  string
	maxBatch int
	logger   zerolog.Logger
}

func NewConsumer(brokers []string, groupID string, maxBatch int, logger zerolog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("queue: at least one broker is required")
	}
	if groupID == "" {
		return nil, errors.New("queue: group id is required")
	}
	if maxBatch <= 0 {
		maxBatch = 1
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = defaultSessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = defaultHeartbeat
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Offsets.AutoCommit.Enable = false
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("queue: create consumer group: %w", err)
	}

	c := &Consumer{group: group, groupID: groupID, maxBatch: maxBatch, logger: logger}
	go c.consumeErrors()
	return c, nil
}

// Consume blocks, delivering job batches to handler until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, topic string, handler BatchHandler) error {
	if handler == nil {
		return errors.New("queue: handler is required")
	}

	h := &groupHandler{consumer: c, handler: handler}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.group.Consume(ctx, []string{topic}, h)
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error().Err(err).Msg("consume error")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(defaultConsumeBackoff):
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) consumeErrors() {
	for err := range c.group.Errors() {
		if err != nil {
			c.logger.Error().Err(err).Str("group_id", c.groupID).Msg("consumer group error")
		}
	}
}

type groupHandler struct {
	consumer *Consumer
	handler  BatchHandler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.consumer.logger.Info().Str("group_id", h.consumer.groupID).Msg("consumer group ready")
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim groups ready records into batches. Offsets are marked only
// after the handler accepts the whole batch; a handler error ends the
// session with the batch unmarked so it is redelivered.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		msgs := nextBatch(claim.Messages(), h.consumer.maxBatch)
		if len(msgs) == 0 {
			return nil
		}

		jobs := make([]Job, 0, len(msgs))
		for _, msg := range msgs {
			job, err := DecodeJob(msg.Value)
			if err != nil {
				// Malformed entries cannot be retried into shape; drop them.
				h.consumer.logger.Error().Err(err).
					Int64("offset", msg.Offset).
					Msg("dropping malformed job")
				session.MarkMessage(msg, "")
				continue
			}
			jobs = append(jobs, job)
		}
		if len(jobs) == 0 {
			continue
		}

		if err := h.handler(session.Context(), jobs); err != nil {
			return err
		}
		for _, msg := range msgs {
			session.MarkMessage(msg, "")
		}
		session.Commit()
	}
}

// nextBatch blocks for the first record, then drains whatever is already
// buffered, up to max. Returns nil once the claim channel closes.
func nextBatch(ch <-chan *sarama.ConsumerMessage, max int) []*sarama.ConsumerMessage {
	first, ok := <-ch
	if !ok {
		return nil
	}

	batch := []*sarama.ConsumerMessage{first}
	for len(batch) < max {
		select {
		case msg, ok := <-ch:
			if !ok {
				return batch
			}
			batch = append(batch, msg)
		default:
			return batch
		}
	}
	return batch
}
