package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/contracts"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
)

// RoomConsumer moves published room events from the audit queue into the
// audit log. It is used instead of AuditSink when both RabbitMQ and MongoDB
// are enabled.
type RoomConsumer struct {
	rabbitmq   *messaging.RabbitMQ
	repository domain.RoomAuditRepository
	logger     logging.Logger
}

func NewRoomConsumer(rabbitmq *messaging.RabbitMQ, repository domain.RoomAuditRepository, logger logging.Logger) *RoomConsumer {
	return &RoomConsumer{
		rabbitmq:   rabbitmq,
		repository: repository,
		logger:     logger,
	}
}

// Listen blocks until ctx is done or the broker closes the channel.
func (c *RoomConsumer) Listen(ctx context.Context) error {
	return c.rabbitmq.ConsumeMessages(ctx, messaging.RoomsQueue, func(ctx context.Context, msg amqp091.Delivery) error {
		return c.handle(ctx, msg.Body)
	})
}

func (c *RoomConsumer) handle(ctx context.Context, body []byte) error {
	event, err := decodeRoomEvent(body)
	if err != nil {
		c.logger.Error(logging.Events, logging.Audit, "failed to decode room event", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	if err := c.repository.Log(ctx, event); err != nil {
		c.logger.Error(logging.Events, logging.Audit, "failed to write audit log", map[logging.ExtraKey]any{
			logging.RoomID:       event.RoomID,
			logging.Event:        string(event.Type),
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	return nil
}

func decodeRoomEvent(body []byte) (*domain.RoomEvent, error) {
	var message contracts.AmqpMessage
	if err := json.Unmarshal(body, &message); err != nil {
		return nil, fmt.Errorf("unmarshal amqp message: %w", err)
	}

	var payload messaging.RoomEventData
	if err := json.Unmarshal(message.Data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal room event: %w", err)
	}
	if payload.Event.ID == "" || payload.Event.Type == "" {
		return nil, domain.ErrInvalidInput
	}

	return &payload.Event, nil
}
