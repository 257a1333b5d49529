package ws

import (
	"errors"

	"github.com/hilthontt/watchsync/internal/domain"
)

// rejection maps err to a metrics reason and the notice for the sender.
// An empty notice drops the frame without telling the client.
func rejection(event string, err error) (reason, notice string) {
	switch {
	case errors.Is(err, domain.ErrNotHost):
		if event == UpdateRoomSettings {
			return "not_host", errNotHostSettings
		}
		return "not_host", errNotHostURL
	case errors.Is(err, domain.ErrRoomFull):
		return "room_full", errRoomFull
	case errors.Is(err, domain.ErrRoomLimitReached):
		return "room_limit", errRoomLimit
	case errors.Is(err, domain.ErrInvalidRoomID):
		return "invalid_room_id", errInvalidRoomID
	case errors.Is(err, domain.ErrInvalidUsername):
		return "invalid_username", errInvalidUsername
	case errors.Is(err, domain.ErrInvalidSettings):
		return "invalid_settings", errInvalidSettings
	case errors.Is(err, domain.ErrMessageTooLong):
		return "too_long", errMessageTooLong
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited", errRateLimited
	case errors.Is(err, domain.ErrInvalidInput):
		if event == ChangeURL {
			return "invalid_url", errInvalidURL
		}
		return "invalid_input", ""
	default:
		return "internal", ""
	}
}

func (c *Core) rejectErr(cl *Client, event string, err error) {
	reason, notice := rejection(event, err)
	c.reject(cl, event, reason, notice)
}
