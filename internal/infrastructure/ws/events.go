package ws

// Client -> server
const (
	JoinRoom           = "join-room"
	LeaveRoom          = "leave-room"
	ChangeURL          = "change-url"
	UpdateRoomSettings = "update-room-settings"
	AdEvent            = "ad-event"
)

// Bidirectional
const (
	SyncEvent   = "sync-event"
	ChatMessage = "chat-message"
)

// Server -> client
const (
	Connected           = "connected"
	RoomState           = "room-state"
	URLChange           = "url-change"
	RoomSettingsUpdated = "room-settings-updated"
	YouAreHost          = "you-are-host"
	HostUpdate          = "host-update"
	ErrorEvent          = "error"
)

var inboundEvents = map[string]struct{}{
	JoinRoom:           {},
	LeaveRoom:          {},
	ChangeURL:          {},
	UpdateRoomSettings: {},
	AdEvent:            {},
	SyncEvent:          {},
	ChatMessage:        {},
}

// eventLabel keeps client-chosen names out of metric labels and span names.
func eventLabel(event string) string {
	if _, ok := inboundEvents[event]; ok {
		return event
	}
	return "unknown"
}

const (
	SyncPlay  = "play"
	SyncPause = "pause"
	SyncSeek  = "seek"

	AdStart = "start"
	AdEnd   = "end"
)

// Error notices sent to the offending connection only.
const (
	errNotHostURL      = "Only the host can change the video."
	errNotHostSettings = "Only the host can change room settings."
	errRoomFull        = "Room is full."
	errRoomLimit       = "Too many active rooms. Try again later."
	errInvalidRoomID   = "A valid room ID is required."
	errInvalidUsername = "Invalid username."
	errInvalidSettings = "Invalid room settings."
	errInvalidURL      = "A video URL is required."
	errMessageTooLong  = "Message is too long."
	errRateLimited     = "Rate limit exceeded."
	errStrictMode      = "Only the host can control playback in strict mode."
)
