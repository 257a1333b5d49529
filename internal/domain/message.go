package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const SystemSenderID = "SYSTEM"

var ErrMessageTooLong = errors.New("message too long")

type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	IsSystem  bool      `json:"isSystem"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewChatMessage(roomID, senderID, username, text string) *ChatMessage {
	return &ChatMessage{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		SenderID:  senderID,
		Username:  username,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

func NewSystemMessage(roomID, text string) *ChatMessage {
	msg := NewChatMessage(roomID, SystemSenderID, SystemSenderID, text)
	msg.IsSystem = true
	return msg
}
