package ws

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
)

// Frames from a connection without a room are dropped silently.

func (c *Core) handleSync(cl *Client, data json.RawMessage) {
	room, err := c.currentRoom(cl)
	if err != nil {
		return
	}

	var p SyncPayload
	if err := decode(data, &p); err != nil {
		c.reject(cl, SyncEvent, "malformed", "")
		return
	}
	if validateSyncType(p.Type) != nil {
		c.reject(cl, SyncEvent, "invalid_type", "")
		return
	}
	if p.Time != nil && (math.IsNaN(*p.Time) || math.IsInf(*p.Time, 0) || *p.Time < 0) {
		c.reject(cl, SyncEvent, "invalid_time", "")
		return
	}

	if c.opts.EnforceStrictSync && room.Settings.StrictMode && !room.IsHost(cl.ID) {
		c.reject(cl, SyncEvent, "strict_mode", errStrictMode)
		return
	}

	c.broadcast(room, NewSync(SyncPayload{Type: p.Type, Time: p.Time}, cl.ID), cl.ID)
}

func (c *Core) handleChat(ctx context.Context, cl *Client, data json.RawMessage) {
	room, err := c.currentRoom(cl)
	if err != nil {
		return
	}

	var text string
	if err := decode(data, &text); err != nil {
		c.reject(cl, ChatMessage, "malformed", "")
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := c.validateChat(text); err != nil {
		c.rejectErr(cl, ChatMessage, err)
		return
	}

	name, _ := room.DisplayName(cl.ID)
	msg := domain.NewChatMessage(room.ID, cl.ID, name, text)
	c.appendHistory(ctx, msg)
	c.broadcast(room, NewChat(msg), "")
}

func (c *Core) handleAd(ctx context.Context, cl *Client, data json.RawMessage) {
	room, err := c.currentRoom(cl)
	if err != nil {
		return
	}

	var p AdPayload
	if err := decode(data, &p); err != nil || validateAdType(p.Type) != nil {
		c.reject(cl, AdEvent, "invalid_type", "")
		return
	}

	name, _ := room.DisplayName(cl.ID)
	if p.Type == AdStart {
		c.systemMessage(ctx, room, name+" is watching an ad. Pausing room.", "")
		return
	}
	c.systemMessage(ctx, room, name+"'s ad finished. Resuming...", "")
}

func (c *Core) handleChangeURL(ctx context.Context, cl *Client, data json.RawMessage) {
	room, err := c.currentRoom(cl)
	if err != nil {
		return
	}
	if err := room.CheckHost(cl.ID); err != nil {
		c.rejectErr(cl, ChangeURL, err)
		return
	}

	var url string
	if err := decode(data, &url); err != nil || validateURL(url) != nil {
		c.rejectErr(cl, ChangeURL, domain.ErrInvalidInput)
		return
	}
	if err := room.ChangeURL(cl.ID, url); err != nil {
		c.rejectErr(cl, ChangeURL, err)
		return
	}

	c.broadcast(room, NewURLChange(url), "")
	c.systemMessage(ctx, room, "Host changed video.", "")
	c.emit(domain.NewURLChangedEvent(room.ID, url))

	c.logger.Info(logging.Room, logging.UrlChange, "video changed", map[logging.ExtraKey]any{
		logging.RoomID: room.ID,
		logging.HostID: cl.ID,
	})
}

func (c *Core) handleUpdateSettings(cl *Client, data json.RawMessage) {
	room, err := c.currentRoom(cl)
	if err != nil {
		return
	}
	if err := room.CheckHost(cl.ID); err != nil {
		c.rejectErr(cl, UpdateRoomSettings, err)
		return
	}

	var patch domain.SettingsPatch
	if err := decode(data, &patch); err != nil {
		c.rejectErr(cl, UpdateRoomSettings, domain.ErrInvalidSettings)
		return
	}

	settings, err := room.ChangeSettings(cl.ID, patch)
	if err != nil {
		c.rejectErr(cl, UpdateRoomSettings, err)
		return
	}

	c.broadcast(room, NewSettingsUpdated(settings), "")
	c.emit(domain.NewSettingsUpdatedEvent(room.ID, settings))

	c.logger.Info(logging.Room, logging.SettingsChange, "settings updated", map[logging.ExtraKey]any{
		logging.RoomID: room.ID,
		logging.HostID: cl.ID,
	})
}
