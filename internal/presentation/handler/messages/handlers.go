package messages

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/json"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/validate"
)

var validateRoomID = validate.Field("roomId", validate.Required(), validate.MaxLength(128))

type Handler struct {
	history domain.ChatHistory
	logger  logging.Logger
}

func NewHandler(history domain.ChatHistory, logger logging.Logger) *Handler {
	return &Handler{
		history: history,
		logger:  logger,
	}
}

// GetMessagesHandler returns the recent chat of a room, oldest first.
// Unknown rooms yield an empty list.
func (h *Handler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if err := validateRoomID(roomID); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	messages, err := h.history.GetByRoomID(r.Context(), roomID)
	if err != nil {
		h.logger.Error(logging.Room, logging.Chat, "failed to read chat history", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
		return
	}

	resp := messagesResponse{RoomID: roomID, Messages: make([]messageResponse, 0, len(messages))}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, messageResponse{
			ID:        m.ID,
			SenderID:  m.SenderID,
			Username:  m.Username,
			Text:      m.Text,
			IsSystem:  m.IsSystem,
			CreatedAt: m.CreatedAt,
		})
	}

	_ = json.Write(w, http.StatusOK, resp)
}
