package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/watchsync/internal/infrastructure/configs"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/watchsync/internal/infrastructure/repository"
	"github.com/hilthontt/watchsync/internal/infrastructure/ws"
	healthHandler "github.com/hilthontt/watchsync/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/watchsync/internal/presentation/handler/messages"
	roomHandler "github.com/hilthontt/watchsync/internal/presentation/handler/rooms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, cfg configs.Config, limiter ratelimiter.Limiter) http.Handler {
	t.Helper()

	logger := logging.NewNop()
	history := repository.NewChatHistory(10)
	core := ws.NewCore(ws.Options{MaxMembers: 4}, repository.NewRoomTable(0), history, nil, logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go core.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-core.Done()
	})

	wsServer := ws.NewServer(core, ws.ClientOptions{}, nil, limiter, logger)

	app := NewApplication(
		cfg,
		roomHandler.NewHandler(core, nil, logger),
		healthHandler.NewHandler(core),
		messagesHandler.NewHandler(history, logger),
		wsServer,
		logger,
		limiter,
	)

	return app.Mount()
}

func generousLimiter() ratelimiter.Limiter {
	return ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1000, MaxBurst: 1000})
}

func TestRoutes(t *testing.T) {
	h := newTestApp(t, configs.Config{}, generousLimiter())

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"health", "/api/health", http.StatusOK},
		{"healthz", "/api/healthz", http.StatusOK},
		{"live", "/api/live", http.StatusOK},
		{"ready", "/api/ready", http.StatusOK},
		{"rooms", "/api/rooms", http.StatusOK},
		{"unknown room", "/api/rooms/nope", http.StatusNotFound},
		{"messages", "/api/rooms/nope/messages", http.StatusOK},
		{"audit disabled", "/api/rooms/nope/audit", http.StatusServiceUnavailable},
		{"metrics", "/metrics", http.StatusOK},
		{"expvar", "/debug/vars", http.StatusOK},
		{"not found", "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestListRoomsBody(t *testing.T) {
	h := newTestApp(t, configs.Config{}, generousLimiter())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "rooms")
	assert.Contains(t, body, "connections")
}

func TestRateLimiterMiddleware(t *testing.T) {
	limiter := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1, MaxBurst: 2})
	h := newTestApp(t, configs.Config{}, limiter)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = fmt.Sprintf("198.51.100.1:%d", 40000+i)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes,
		"forwarding headers from an untrusted peer are ignored")

	// Other peers keep their own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "198.51.100.2:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTrustProxyUsesForwardedAddress(t *testing.T) {
	limiter := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1, MaxBurst: 1})
	cfg := configs.Config{HTTP: configs.HTTPConfig{TrustProxy: true}}
	h := newTestApp(t, cfg, limiter)

	codes := make([]int, 0, 3)
	for _, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:8080"
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCors(t *testing.T) {
	t.Run("preflight", func(t *testing.T) {
		h := newTestApp(t, configs.Config{}, generousLimiter())

		req := httptest.NewRequest(http.MethodOptions, "/api/rooms", nil)
		req.Header.Set("Origin", "https://watch.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://watch.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
	})

	t.Run("restricted origins", func(t *testing.T) {
		cfg := configs.Config{HTTP: configs.HTTPConfig{
			AllowedOrigins: []string{"https://watch.example"},
			AllowedHeaders: []string{"Content-Type", "X-Custom"},
		}}
		h := newTestApp(t, cfg, generousLimiter())

		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Content-Type, X-Custom", rec.Header().Get("Access-Control-Allow-Headers"))

		req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://watch.example")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "https://watch.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestWebSocketThroughMiddleware(t *testing.T) {
	h := newTestApp(t, configs.Config{}, generousLimiter())
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg struct {
		Event string `json:"event"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "connected", msg.Event)
}
