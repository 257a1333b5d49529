package domain

import "time"

type ConnectionState int

const (
	StateConnected ConnectionState = iota // no room yet
	StateJoined
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is the registry's record of one client session.
type Connection struct {
	ID          string
	DisplayName string
	RoomID      string
	State       ConnectionState
	ConnectedAt time.Time
}

func NewConnection(id string) *Connection {
	return &Connection{
		ID:          id,
		DisplayName: DefaultDisplayName,
		State:       StateConnected,
		ConnectedAt: time.Now(),
	}
}

func (c *Connection) InRoom() bool {
	return c.State == StateJoined && c.RoomID != ""
}

func (c *Connection) EnterRoom(roomID, name string) {
	c.RoomID = roomID
	c.DisplayName = name
	c.State = StateJoined
}

func (c *Connection) ExitRoom() {
	c.RoomID = ""
	if c.State == StateJoined {
		c.State = StateConnected
	}
}

func (c *Connection) Close() {
	c.RoomID = ""
	c.State = StateClosed
}
