package contracts

import "github.com/hilthontt/watchsync/internal/domain"

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	RoomID string `json:"roomId"`
	Data   []byte `json:"data"`
}

// Routing keys match the room event types one to one.
const (
	EventRoomCreated     = string(domain.EventRoomCreated)
	EventRoomDeleted     = string(domain.EventRoomDeleted)
	EventMemberJoined    = string(domain.EventMemberJoined)
	EventMemberLeft      = string(domain.EventMemberLeft)
	EventHostChanged     = string(domain.EventHostChanged)
	EventURLChanged      = string(domain.EventURLChanged)
	EventSettingsUpdated = string(domain.EventSettingsUpdated)
)

var RoomEventRoutingKeys = []string{
	EventRoomCreated,
	EventRoomDeleted,
	EventMemberJoined,
	EventMemberLeft,
	EventHostChanged,
	EventURLChanged,
	EventSettingsUpdated,
}
