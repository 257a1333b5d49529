package messaging

import "github.com/hilthontt/watchsync/internal/domain"

const (
	RoomsQueue      = "watchsync.rooms.audit"
	DeadLetterQueue = "watchsync.dead_letter_queue"
)

type RoomEventData struct {
	Event domain.RoomEvent `json:"event"`
}
