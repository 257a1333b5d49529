package rooms

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/json"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/validate"
	"github.com/hilthontt/watchsync/internal/infrastructure/ws"
)

const maxAuditLimit = 500

var validateRoomID = validate.Field("roomId", validate.Required(), validate.MaxLength(128))

type roomReader interface {
	RoomSnapshot(ctx context.Context, roomID string) (domain.RoomSnapshot, error)
	Stats(ctx context.Context) (ws.Stats, error)
}

type Handler struct {
	core   roomReader
	audit  domain.RoomAuditRepository
	logger logging.Logger
}

// NewHandler accepts a nil audit repository when MongoDB is disabled.
func NewHandler(core roomReader, audit domain.RoomAuditRepository, logger logging.Logger) *Handler {
	return &Handler{
		core:   core,
		audit:  audit,
		logger: logger,
	}
}

// ListRoomsHandler returns room and connection counts. Room ids are
// sharing tokens and are never listed.
func (h *Handler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.core.Stats(r.Context())
	if err != nil {
		h.writeCoreError(w, err)
		return
	}

	_ = json.Write(w, http.StatusOK, roomListResponse{
		Rooms:       stats.Rooms,
		Connections: stats.Connections,
	})
}

func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if err := validateRoomID(roomID); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	snapshot, err := h.core.RoomSnapshot(r.Context(), roomID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			json.WriteNotFoundError(w, "Room not found")
		default:
			h.writeCoreError(w, err)
		}
		return
	}

	_ = json.Write(w, http.StatusOK, newRoomResponse(snapshot))
}

func (h *Handler) GetRoomAuditHandler(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		json.WriteError(w, http.StatusServiceUnavailable, errors.New("audit disabled"), "Audit log is not enabled")
		return
	}

	roomID := chi.URLParam(r, "roomId")
	if err := validateRoomID(roomID); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAuditLimit {
			json.WriteBadRequestError(w, "limit must be between 1 and "+strconv.Itoa(maxAuditLimit))
			return
		}
		limit = n
	}

	events, err := h.audit.GetByRoomID(r.Context(), roomID, limit)
	if err != nil {
		h.logger.Error(logging.MongoDB, logging.Audit, "failed to read audit log", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
		return
	}

	resp := auditResponse{RoomID: roomID, Entries: make([]auditEntryResponse, 0, len(events))}
	for _, e := range events {
		resp.Entries = append(resp.Entries, auditEntryResponse{
			ID:        e.ID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp,
			Metadata:  e.Metadata,
		})
	}

	_ = json.Write(w, http.StatusOK, resp)
}

func (h *Handler) writeCoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ws.ErrCoreStopped) {
		json.WriteError(w, http.StatusServiceUnavailable, err, "Server is shutting down")
		return
	}
	h.logger.Error(logging.Room, logging.Read, "room query failed", map[logging.ExtraKey]any{
		logging.ErrorMessage: err.Error(),
	})
	json.WriteInternalError(w, err)
}

func newRoomResponse(s domain.RoomSnapshot) roomResponse {
	members := make([]memberResponse, 0, len(s.Members))
	for _, m := range s.Members {
		members = append(members, memberResponse{ID: m.ID, Username: m.Username, IsHost: m.IsHost})
	}

	return roomResponse{
		ID:         s.ID,
		HostID:     s.HostID,
		CurrentURL: s.CurrentURL,
		Settings: settingsResponse{
			SyncSensitivity: s.Settings.SyncSensitivity,
			StrictMode:      s.Settings.StrictMode,
			AutoPause:       s.Settings.AutoPause,
		},
		CreatedAt:   s.CreatedAt,
		MemberCount: s.MemberCount,
		Members:     members,
	}
}
