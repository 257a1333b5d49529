package messages

import "time"

// messageResponse represents a chat message kept in the recent buffer
type messageResponse struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	IsSystem  bool      `json:"isSystem"`
	CreatedAt time.Time `json:"createdAt"`
}

type messagesResponse struct {
	RoomID   string            `json:"roomId"`
	Messages []messageResponse `json:"messages"`
}
