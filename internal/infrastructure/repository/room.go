package repository

import (
	"sync"

	"github.com/hilthontt/watchsync/internal/domain"
)

type roomTable struct {
	rooms    map[string]*domain.Room // ID -> Room
	capacity uint
	mu       *sync.RWMutex
}

// NewRoomTable returns an in-memory room table. A capacity of zero means
// unlimited. Rooms are never evicted: they leave only through Delete.
func NewRoomTable(capacity uint) domain.RoomTable {
	return &roomTable{
		rooms:    make(map[string]*domain.Room),
		capacity: capacity,
		mu:       &sync.RWMutex{},
	}
}

func (t *roomTable) Get(id string) (*domain.Room, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	room, ok := t.rooms[id]
	return room, ok
}

// Create adds a room if its ID is unique and capacity allows.
func (t *roomTable) Create(room *domain.Room) error {
	if room == nil || room.ID == "" {
		return domain.ErrInvalidInput
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.rooms[room.ID]; exists {
		return domain.ErrRoomAlreadyExists
	}
	if t.capacity > 0 && uint(len(t.rooms)) >= t.capacity {
		return domain.ErrRoomLimitReached
	}

	t.rooms[room.ID] = room
	return nil
}

// Delete removes a room by ID (idempotent).
func (t *roomTable) Delete(id string) (*domain.Room, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[id]
	if ok {
		delete(t.rooms, id)
	}
	return room, ok
}

// ForEach visits rooms until fn returns false. fn must not call back into the table.
func (t *roomTable) ForEach(fn func(room *domain.Room) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, room := range t.rooms {
		if !fn(room) {
			return
		}
	}
}

func (t *roomTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.rooms)
}
