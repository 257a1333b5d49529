package ws

import (
	"bytes"
	"encoding/json"

	"github.com/hilthontt/watchsync/internal/domain"
)

// Envelope is the inbound frame: {"event": "...", "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JoinRequest also accepts a bare JSON string holding the room id.
type JoinRequest struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

func (j *JoinRequest) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var roomID string
		if err := json.Unmarshal(trimmed, &roomID); err != nil {
			return err
		}
		*j = JoinRequest{RoomID: roomID}
		return nil
	}

	type plain JoinRequest
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*j = JoinRequest(p)
	return nil
}

type ConnectedPayload struct {
	ID string `json:"id"`
}

type RoomStatePayload struct {
	IsHost     bool            `json:"isHost"`
	CurrentURL *string         `json:"currentUrl"`
	Settings   domain.Settings `json:"settings"`
}

// SyncPayload carries time as null for "pause without seeking".
type SyncPayload struct {
	Type     string   `json:"type"`
	Time     *float64 `json:"time"`
	SenderID string   `json:"senderId,omitempty"`
}

type AdPayload struct {
	Type string `json:"type"`
}

type ChatPayload struct {
	ID        string `json:"id,omitempty"`
	SenderID  string `json:"senderId"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	IsSystem  bool   `json:"isSystem,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type HostUpdatePayload struct {
	NewHostID string `json:"newHostId"`
}

func NewConnected(connID string) *WSMessage {
	return &WSMessage{Event: Connected, Data: ConnectedPayload{ID: connID}}
}

func NewRoomState(room *domain.Room, connID string) *WSMessage {
	snapshot := room.Snapshot()
	return &WSMessage{
		Event: RoomState,
		Data: RoomStatePayload{
			IsHost:     room.IsHost(connID),
			CurrentURL: snapshot.CurrentURL,
			Settings:   snapshot.Settings,
		},
	}
}

func NewSync(p SyncPayload, senderID string) *WSMessage {
	p.SenderID = senderID
	return &WSMessage{Event: SyncEvent, Data: p}
}

func NewChat(msg *domain.ChatMessage) *WSMessage {
	payload := ChatPayload{
		SenderID:  msg.SenderID,
		Username:  msg.Username,
		Text:      msg.Text,
		IsSystem:  msg.IsSystem,
		Timestamp: msg.CreatedAt.UnixMilli(),
	}
	if !msg.IsSystem {
		payload.ID = msg.ID
	}
	return &WSMessage{Event: ChatMessage, Data: payload}
}

func NewURLChange(url string) *WSMessage {
	return &WSMessage{Event: URLChange, Data: url}
}

func NewSettingsUpdated(settings domain.Settings) *WSMessage {
	return &WSMessage{Event: RoomSettingsUpdated, Data: settings}
}

func NewYouAreHost() *WSMessage {
	return &WSMessage{Event: YouAreHost}
}

func NewHostUpdate(newHostID string) *WSMessage {
	return &WSMessage{Event: HostUpdate, Data: HostUpdatePayload{NewHostID: newHostID}}
}

func NewError(message string) *WSMessage {
	return &WSMessage{Event: ErrorEvent, Data: message}
}
