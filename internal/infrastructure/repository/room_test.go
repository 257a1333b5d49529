package repository

import (
	"testing"

	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomTableLifecycle(t *testing.T) {
	table := NewRoomTable(0)

	_, ok := table.Get("r1")
	assert.False(t, ok)

	room := domain.NewRoom("r1", "a", "alice")
	require.NoError(t, table.Create(room))
	assert.ErrorIs(t, table.Create(domain.NewRoom("r1", "b", "bob")), domain.ErrRoomAlreadyExists)

	got, ok := table.Get("r1")
	require.True(t, ok)
	assert.Same(t, room, got)
	assert.Equal(t, 1, table.Len())

	deleted, ok := table.Delete("r1")
	require.True(t, ok)
	assert.Same(t, room, deleted)

	_, ok = table.Delete("r1")
	assert.False(t, ok, "delete is idempotent")
	assert.Equal(t, 0, table.Len())
}

func TestRoomTableIsCaseSensitive(t *testing.T) {
	table := NewRoomTable(0)

	require.NoError(t, table.Create(domain.NewRoom("Room", "a", "alice")))
	require.NoError(t, table.Create(domain.NewRoom("room", "b", "bob")))
	assert.Equal(t, 2, table.Len())
}

func TestRoomTableCapacity(t *testing.T) {
	table := NewRoomTable(1)

	require.NoError(t, table.Create(domain.NewRoom("r1", "a", "alice")))
	assert.ErrorIs(t, table.Create(domain.NewRoom("r2", "b", "bob")), domain.ErrRoomLimitReached)

	table.Delete("r1")
	assert.NoError(t, table.Create(domain.NewRoom("r2", "b", "bob")))
}

func TestRoomTableForEachStops(t *testing.T) {
	table := NewRoomTable(0)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, table.Create(domain.NewRoom(id, "host-"+id, "h")))
	}

	visited := 0
	table.ForEach(func(*domain.Room) bool {
		visited++
		return visited < 2
	})
	assert.Equal(t, 2, visited)

	assert.ErrorIs(t, table.Create(nil), domain.ErrInvalidInput)
}
