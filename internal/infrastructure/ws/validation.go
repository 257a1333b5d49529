package ws

import (
	"fmt"

	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/validate"
)

const (
	maxRoomIDLength      = 128
	maxUsernameLength    = 32
	maxURLLength         = 2048
	defaultChatMaxLength = 1000
)

type validatorFunc = validate.Validator

var (
	validateRoomID = validate.Field("roomId",
		validate.Required(),
		validate.MaxLength(maxRoomIDLength),
		validate.NoControlChars(),
	)

	validateUsername = validate.Field("username",
		validate.MaxLength(maxUsernameLength),
		validate.NoControlChars(),
	)

	validateURL = validate.Field("url",
		validate.Required(),
		validate.MaxLength(maxURLLength),
		validate.NoControlChars(),
	)

	validateSyncType = validate.OneOf(SyncPlay, SyncPause, SyncSeek)
	validateAdType   = validate.OneOf(AdStart, AdEnd)
)

// validateJoin wraps field errors in the matching domain sentinel.
func validateJoin(roomID, username string) error {
	if err := validateRoomID(roomID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRoomID, err)
	}
	if err := validateUsername(username); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidUsername, err)
	}
	return nil
}

// chatValidator reports domain.ErrMessageTooLong for oversized text.
func chatValidator(maxLength int) validatorFunc {
	tooLong := validate.MaxLength(maxLength)
	return func(text string) error {
		if tooLong(text) != nil {
			return domain.ErrMessageTooLong
		}
		return nil
	}
}
