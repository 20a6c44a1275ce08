package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/webhook-messaging/internal/clock"
	"github.com/example/webhook-messaging/internal/model"
	"github.com/example/webhook-messaging/internal/store"
)

// MessageService covers the read/write API surface around the store.
// Delivery-time concerns (length checks, webhook calls) live elsewhere.
type MessageService struct {
	store  store.MessageStore
	clock  clock.Clock
	logger zerolog.Logger
}

func NewMessageService(st store.MessageStore, clk clock.Clock, logger zerolog.Logger) *MessageService {
	return &MessageService{store: st, clock: clk, logger: logger}
}

// CreateMessage inserts a new PENDING message and returns the stored record.
func (s *MessageService) CreateMessage(ctx context.Context, to, content string) (*model.Message, error) {
	now := s.clock.Now()
	msg := &model.Message{
		ID:         uuid.NewString(),
		To:         to,
		Content:    content,
		Status:     model.StatusPending,
		RetryCount: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	s.logger.Info().Str("id", msg.ID).Msg("message created")
	return msg, nil
}

// GetMessage returns a single message or store.ErrNotFound.
func (s *MessageService) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	return s.store.GetByID(ctx, id)
}

// ListSent returns sent messages, newest first.
func (s *MessageService) ListSent(ctx context.Context, limit int) ([]model.Message, error) {
	msgs, err := s.store.GetByStatus(ctx, model.StatusSent, limit)
	if err != nil {
		return nil, fmt.Errorf("list sent messages: %w", err)
	}
	return msgs, nil
}
