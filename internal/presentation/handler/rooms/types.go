package rooms

import "time"

type roomListResponse struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

type memberResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
}

type settingsResponse struct {
	SyncSensitivity float64 `json:"syncSensitivity"`
	StrictMode      bool    `json:"strictMode"`
	AutoPause       bool    `json:"autoPause"`
}

// roomResponse is a point-in-time view of a room
type roomResponse struct {
	ID          string           `json:"id"`
	HostID      string           `json:"hostId"`
	CurrentURL  *string          `json:"currentUrl"`
	Settings    settingsResponse `json:"settings"`
	CreatedAt   time.Time        `json:"createdAt"`
	MemberCount int              `json:"memberCount"`
	Members     []memberResponse `json:"members"`
}

type auditEntryResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"eventType"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type auditResponse struct {
	RoomID  string               `json:"roomId"`
	Entries []auditEntryResponse `json:"entries"`
}
