package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

type fakeSyncProducer struct {
	err     error
	topic   string
	key     []byte
	payload []byte
	calls   int
}

func (f *fakeSyncProducer) PublishSync(topic string, key, payload []byte) error {
	f.calls++
	f.topic = topic
	f.key = append([]byte(nil), key...)
	f.payload = append([]byte(nil), payload...)
	return f.err
}

func TestPublisher_EnqueuePublishesJob(t *testing.T) {
	prod := &fakeSyncProducer{}
	pub := NewPublisher(prod, "send-jobs", zerolog.Nop())

	if err := pub.Enqueue(context.Background(), Job{ID: "msg-1"}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	if prod.topic != "send-jobs" {
		t.Fatalf("expected topic send-jobs, got %q", prod.topic)
	}
	if string(prod.key) != "msg-1" {
		t.Fatalf("expected key msg-1, got %q", string(prod.key))
	}

	var job Job
	if err := json.Unmarshal(prod.payload, &job); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if job.ID != "msg-1" {
		t.Fatalf("expected payload id msg-1, got %q", job.ID)
	}
}

func TestPublisher_EnqueuePayloadIsMinimal(t *testing.T) {
	prod := &fakeSyncProducer{}
	pub := NewPublisher(prod, "send-jobs", zerolog.Nop())

	if err := pub.Enqueue(context.Background(), Job{ID: "abc"}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	// The wire format is exactly {"id": "<message-id>"}.
	if got := string(prod.payload); got != `{"id":"abc"}` {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestPublisher_EnqueuePropagatesProducerError(t *testing.T) {
	wantErr := errors.New("broker down")
	prod := &fakeSyncProducer{err: wantErr}
	pub := NewPublisher(prod, "send-jobs", zerolog.Nop())

	err := pub.Enqueue(context.Background(), Job{ID: "msg-1"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected producer error, got %v", err)
	}
}

func TestPublisher_NilProducer(t *testing.T) {
	pub := NewPublisher(nil, "send-jobs", zerolog.Nop())
	if err := pub.Enqueue(context.Background(), Job{ID: "x"}); !errors.Is(err, errProducerNotInitialised) {
		t.Fatalf("expected not initialised error, got %v", err)
	}
}

func TestDecodeJob(t *testing.T) {
	job, err := DecodeJob([]byte(`{"id":"msg-9"}`))
	if err != nil {
		t.Fatalf("DecodeJob() error: %v", err)
	}
	if job.ID != "msg-9" {
		t.Fatalf("expected id msg-9, got %q", job.ID)
	}

	if _, err := DecodeJob([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed body")
	}
	if _, err := DecodeJob([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestNextBatch_DrainsBufferedUpToMax(t *testing.T) {
	ch := make(chan *sarama.ConsumerMessage, 5)
	for i := 0; i < 5; i++ {
		ch <- &sarama.ConsumerMessage{Offset: int64(i)}
	}

	batch := nextBatch(ch, 3)
	if len(batch) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(batch))
	}
	for i, msg := range batch {
		if msg.Offset != int64(i) {
			t.Fatalf("expected offset %d at index %d, got %d", i, i, msg.Offset)
		}
	}

	// The remaining two are picked up by the next call.
	batch = nextBatch(ch, 3)
	if len(batch) != 2 {
		t.Fatalf("expected batch of 2, got %d", len(batch))
	}
}

func TestNextBatch_ReturnsNilOnClosedChannel(t *testing.T) {
	ch := make(chan *sarama.ConsumerMessage)
	close(ch)

	if batch := nextBatch(ch, 3); batch != nil {
		t.Fatalf("expected nil batch on closed channel, got %v", batch)
	}
}
