package repository

import (
	"context"
	"sync"

	"github.com/hilthontt/watchsync/internal/domain"
)

// Oldest messages are evicted when capacity is exceeded. Nothing here
// outlives the process.
type chatHistory struct {
	messages map[string][]domain.ChatMessage // roomID -> []ChatMessage
	capacity uint
	mu       *sync.RWMutex
}

// NewChatHistory keeps up to capacity messages per room; zero disables it.
func NewChatHistory(capacity uint) domain.ChatHistory {
	return &chatHistory{
		capacity: capacity,
		messages: make(map[string][]domain.ChatMessage),
		mu:       &sync.RWMutex{},
	}
}

func (r *chatHistory) Append(ctx context.Context, message *domain.ChatMessage) error {
	if message == nil || message.RoomID == "" {
		return domain.ErrInvalidInput
	}
	if r.capacity == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	roomMsgs, exists := r.messages[message.RoomID]
	if !exists {
		roomMsgs = make([]domain.ChatMessage, 0, r.capacity)
	}

	roomMsgs = append(roomMsgs, *message)

	// Evict oldest if over capacity
	if len(roomMsgs) > int(r.capacity) {
		excess := len(roomMsgs) - int(r.capacity)
		roomMsgs = append(roomMsgs[:0], roomMsgs[excess:]...)
	}

	r.messages[message.RoomID] = roomMsgs

	return nil
}

func (r *chatHistory) DeleteByRoomID(ctx context.Context, roomID string) error {
	if roomID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.messages, roomID)
	return nil
}

func (r *chatHistory) GetByRoomID(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	roomMsgs, exists := r.messages[roomID]
	if !exists || len(roomMsgs) == 0 {
		return []domain.ChatMessage{}, nil
	}

	// Return a copy to prevent external mutation
	cpy := make([]domain.ChatMessage, len(roomMsgs))
	copy(cpy, roomMsgs)

	return cpy, nil
}
