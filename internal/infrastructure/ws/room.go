package ws

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
)

func (c *Core) handleJoin(ctx context.Context, cl *Client, data json.RawMessage) {
	var req JoinRequest
	if err := decode(data, &req); err != nil {
		c.rejectErr(cl, JoinRoom, domain.ErrInvalidRoomID)
		return
	}

	name := strings.TrimSpace(req.Username)
	if name == "" {
		name = domain.DefaultDisplayName
	}
	if err := validateJoin(req.RoomID, name); err != nil {
		c.rejectErr(cl, JoinRoom, err)
		return
	}

	c.join(ctx, cl, req.RoomID, name)
}

// join moves cl into roomID, creating the room when it does not exist.
// Capacity is checked before the previous room is left so a refused join
// leaves the client where it was.
func (c *Core) join(ctx context.Context, cl *Client, roomID, name string) {
	sess := cl.session

	if sess.InRoom() && sess.RoomID == roomID {
		if room, ok := c.rooms.Get(roomID); ok {
			if err := room.Rename(cl.ID, name); err != nil {
				c.logger.Error(logging.Room, logging.Join, "rename member failed", map[logging.ExtraKey]any{
					logging.ConnID:       cl.ID,
					logging.RoomID:       roomID,
					logging.ErrorMessage: err.Error(),
				})
				return
			}
			sess.EnterRoom(roomID, name)
			c.send(cl, NewRoomState(room, cl.ID))
			return
		}
	}

	room, exists := c.rooms.Get(roomID)
	if exists {
		if err := room.CheckCapacity(c.opts.MaxMembers); err != nil {
			c.rejectErr(cl, JoinRoom, err)
			return
		}
	} else if c.opts.MaxRooms > 0 && uint(c.rooms.Len()) >= c.opts.MaxRooms {
		c.rejectErr(cl, JoinRoom, domain.ErrRoomLimitReached)
		return
	}

	if sess.InRoom() {
		c.leave(ctx, cl)
	}

	if !exists {
		room = domain.NewRoom(roomID, cl.ID, name)
		if err := c.rooms.Create(room); err != nil {
			c.rejectErr(cl, JoinRoom, err)
			return
		}
		c.metrics.SetRooms(c.rooms.Len())
		c.emit(domain.NewRoomCreatedEvent(roomID, cl.ID))

		c.logger.Info(logging.Room, logging.Join, "room created", map[logging.ExtraKey]any{
			logging.RoomID: roomID,
			logging.HostID: cl.ID,
		})
	} else if err := room.AddMember(cl.ID, name); err != nil {
		c.logger.Error(logging.Room, logging.Join, "add member failed", map[logging.ExtraKey]any{
			logging.ConnID:       cl.ID,
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	sess.EnterRoom(roomID, name)
	c.send(cl, NewRoomState(room, cl.ID))

	if exists {
		c.systemMessage(ctx, room, name+" joined the room.", cl.ID)
	}
	c.emit(domain.NewMemberJoinedEvent(roomID, cl.ID, room.MemberCount()))

	c.logger.Info(logging.Room, logging.Join, "member joined", map[logging.ExtraKey]any{
		logging.ConnID:      cl.ID,
		logging.RoomID:      roomID,
		logging.MemberCount: room.MemberCount(),
	})
}

// leave removes cl from its room. The last member out deletes the room;
// a departing host hands over to the earliest-joined remaining member.
func (c *Core) leave(ctx context.Context, cl *Client) {
	sess := cl.session
	if !sess.InRoom() {
		return
	}

	roomID := sess.RoomID
	room, ok := c.rooms.Get(roomID)
	if !ok {
		sess.ExitRoom()
		return
	}

	name, ok := room.DisplayName(cl.ID)
	if !ok {
		name = sess.DisplayName
	}
	previousHost := room.HostID

	successor, promoted, err := room.LeaveAndAutoPromote(cl.ID)
	sess.ExitRoom()
	if err != nil {
		c.logger.Warn(logging.Room, logging.Leave, "member missing from room", map[logging.ExtraKey]any{
			logging.ConnID: cl.ID,
			logging.RoomID: roomID,
		})
		return
	}

	c.emit(domain.NewMemberLeftEvent(roomID, cl.ID, room.MemberCount(), previousHost == cl.ID))
	c.logger.Info(logging.Room, logging.Leave, "member left", map[logging.ExtraKey]any{
		logging.ConnID:      cl.ID,
		logging.RoomID:      roomID,
		logging.MemberCount: room.MemberCount(),
	})

	if room.IsEmpty() {
		c.deleteRoom(ctx, room)
		return
	}

	c.systemMessage(ctx, room, name+" left the room.", "")

	if promoted {
		c.failover(ctx, room, previousHost, successor)
	}
}

func (c *Core) failover(ctx context.Context, room *domain.Room, previousHost, successor string) {
	c.broadcast(room, NewHostUpdate(successor), "")
	if cl, ok := c.clients[successor]; ok {
		c.send(cl, NewYouAreHost())
	}

	name, ok := room.DisplayName(successor)
	if !ok {
		name = "Unknown"
	}
	c.systemMessage(ctx, room, name+" is now the host.", "")

	c.metrics.Failover()
	c.emit(domain.NewHostChangedEvent(room.ID, previousHost, successor))

	c.logger.Info(logging.Room, logging.HostFailover, "host migrated", map[logging.ExtraKey]any{
		logging.RoomID: room.ID,
		logging.HostID: successor,
	})
}

func (c *Core) deleteRoom(ctx context.Context, room *domain.Room) {
	c.rooms.Delete(room.ID)
	if err := c.history.DeleteByRoomID(ctx, room.ID); err != nil {
		c.logger.Warn(logging.Room, logging.Leave, "clear chat history failed", map[logging.ExtraKey]any{
			logging.RoomID:       room.ID,
			logging.ErrorMessage: err.Error(),
		})
	}

	c.metrics.SetRooms(c.rooms.Len())
	c.emit(domain.NewRoomDeletedEvent(room.ID, time.Since(room.CreatedAt)))

	c.logger.Info(logging.Room, logging.Leave, "room deleted", map[logging.ExtraKey]any{
		logging.RoomID: room.ID,
	})
}

func (c *Core) systemMessage(ctx context.Context, room *domain.Room, text, except string) {
	msg := domain.NewSystemMessage(room.ID, text)
	c.appendHistory(ctx, msg)
	c.broadcast(room, NewChat(msg), except)
}

func (c *Core) appendHistory(ctx context.Context, msg *domain.ChatMessage) {
	if err := c.history.Append(ctx, msg); err != nil {
		c.logger.Warn(logging.Room, logging.Chat, "append chat history failed", map[logging.ExtraKey]any{
			logging.RoomID:       msg.RoomID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// currentRoom returns the room cl belongs to.
func (c *Core) currentRoom(cl *Client) (*domain.Room, error) {
	if !cl.session.InRoom() {
		return nil, domain.ErrNotInRoom
	}
	room, ok := c.rooms.Get(cl.session.RoomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}
