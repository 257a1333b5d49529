package events

import (
	"context"
	"encoding/json"

	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/contracts"
	"github.com/hilthontt/watchsync/internal/infrastructure/messaging"
)

type messagePublisher interface {
	PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error
}

// RoomPublisher publishes room events to RabbitMQ, routed by event type.
type RoomPublisher struct {
	rabbitmq messagePublisher
}

func NewRoomPublisher(rabbitmq messagePublisher) *RoomPublisher {
	return &RoomPublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *RoomPublisher) Name() string { return "rabbitmq" }

func (p *RoomPublisher) Handle(ctx context.Context, event *domain.RoomEvent) error {
	payload := messaging.RoomEventData{
		Event: *event,
	}

	roomEventJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, string(event.Type), contracts.AmqpMessage{
		RoomID: event.RoomID,
		Data:   roomEventJSON,
	})
}
