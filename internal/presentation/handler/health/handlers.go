package health

import (
	"net/http"
	"time"

	"github.com/hilthontt/watchsync/internal/infrastructure/json"
)

var startTime = time.Now()

// coordinator reports when the room coordinator has stopped.
type coordinator interface {
	Done() <-chan struct{}
}

type Handler struct {
	core coordinator
}

func NewHandler(core coordinator) *Handler {
	return &Handler{core: core}
}

// GetHealth reports process liveness.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	_ = json.Write(w, http.StatusOK, newHealthResponse("ok"))
}

// GetReady fails once the coordinator loop is no longer running.
func (h *Handler) GetReady(w http.ResponseWriter, r *http.Request) {
	if h.core != nil {
		select {
		case <-h.core.Done():
			_ = json.Write(w, http.StatusServiceUnavailable, newHealthResponse("unhealthy"))
			return
		default:
		}
	}

	_ = json.Write(w, http.StatusOK, newHealthResponse("ok"))
}

func newHealthResponse(status string) healthResponse {
	return healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}
}
