package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RoomEventType string

const (
	EventRoomCreated     RoomEventType = "room.created"
	EventRoomDeleted     RoomEventType = "room.deleted"
	EventMemberJoined    RoomEventType = "member.joined"
	EventMemberLeft      RoomEventType = "member.left"
	EventHostChanged     RoomEventType = "host.changed"
	EventURLChanged      RoomEventType = "url.changed"
	EventSettingsUpdated RoomEventType = "settings.updated"
)

// RoomEvent is a lifecycle fact emitted by the coordinator. It never
// carries chat text.
type RoomEvent struct {
	ID        string         `bson:"_id" json:"id"`
	RoomID    string         `bson:"room_id" json:"roomId"`
	Type      RoomEventType  `bson:"event_type" json:"eventType"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// RoomAuditRepository stores lifecycle events, newest first on read.
type RoomAuditRepository interface {
	Log(ctx context.Context, event *RoomEvent) error
	GetByRoomID(ctx context.Context, roomID string, limit int) ([]RoomEvent, error)
	EnsureIndexes(ctx context.Context) error
}

func newRoomEvent(roomID string, eventType RoomEventType, metadata map[string]any) *RoomEvent {
	return &RoomEvent{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Type:      eventType,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

func NewRoomCreatedEvent(roomID, hostID string) *RoomEvent {
	return newRoomEvent(roomID, EventRoomCreated, map[string]any{
		"host_id": hostID,
	})
}

func NewRoomDeletedEvent(roomID string, lifetime time.Duration) *RoomEvent {
	return newRoomEvent(roomID, EventRoomDeleted, map[string]any{
		"lifetime_seconds": lifetime.Seconds(),
	})
}

func NewMemberJoinedEvent(roomID, connID string, memberCount int) *RoomEvent {
	return newRoomEvent(roomID, EventMemberJoined, map[string]any{
		"conn_id":      connID,
		"member_count": memberCount,
	})
}

func NewMemberLeftEvent(roomID, connID string, memberCount int, wasHost bool) *RoomEvent {
	return newRoomEvent(roomID, EventMemberLeft, map[string]any{
		"conn_id":      connID,
		"member_count": memberCount,
		"was_host":     wasHost,
	})
}

func NewHostChangedEvent(roomID, previousHostID, newHostID string) *RoomEvent {
	return newRoomEvent(roomID, EventHostChanged, map[string]any{
		"previous_host_id": previousHostID,
		"new_host_id":      newHostID,
		"reason":           "host_left",
	})
}

func NewURLChangedEvent(roomID, url string) *RoomEvent {
	return newRoomEvent(roomID, EventURLChanged, map[string]any{
		"url": url,
	})
}

func NewSettingsUpdatedEvent(roomID string, settings Settings) *RoomEvent {
	return newRoomEvent(roomID, EventSettingsUpdated, map[string]any{
		"sync_sensitivity": settings.SyncSensitivity,
		"strict_mode":      settings.StrictMode,
		"auto_pause":       settings.AutoPause,
	})
}
