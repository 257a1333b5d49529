package ws

import (
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/ratelimiter"
)

// Server upgrades HTTP requests and attaches the resulting clients to a Core.
type Server struct {
	core     *Core
	upgrader websocket.Upgrader
	opts     ClientOptions
	limiter  ratelimiter.Limiter
	logger   logging.Logger
}

// NewServer accepts any origin when allowedOrigins is empty or contains "*".
func NewServer(core *Core, opts ClientOptions, allowedOrigins []string, limiter ratelimiter.Limiter, logger logging.Logger) *Server {
	return &Server{
		core: core,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		opts:    opts,
		limiter: limiter,
		logger:  logger,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(logging.WebSocket, logging.Connect, "upgrade failed", map[logging.ExtraKey]any{
			logging.ClientIp:     r.RemoteAddr,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := NewClient(conn, uuid.NewString(), s.opts, s.limiter, s.logger)
	if !s.core.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(s.core)
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
