package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/watchsync/internal/infrastructure/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startServer(t *testing.T, limiter ratelimiter.Limiter) (*Core, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	core := NewCore(Options{}, repository.NewRoomTable(0), repository.NewChatHistory(10), nil, logging.NewNop(), nil)
	go core.Run(ctx)

	srv := httptest.NewServer(NewServer(core, ClientOptions{}, nil, limiter, logging.NewNop()))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-core.Done()
	})

	return core, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, Connected, f.Event)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServerJoinOverWebSocket(t *testing.T) {
	core, url := startServer(t, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"join-room","data":{"roomId":"movie","username":"alice"}}`)))

	f := readFrame(t, conn)
	require.Equal(t, RoomState, f.Event)
	assert.JSONEq(t,
		`{"isHost":true,"currentUrl":null,"settings":{"syncSensitivity":0.5,"strictMode":false,"autoPause":false}}`,
		string(f.Data))

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		stats, err := core.Stats(context.Background())
		return err == nil && stats.Rooms == 0 && stats.Connections == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerIgnoresMalformedFrames(t *testing.T) {
	_, url := startServer(t, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"join-room","data":"movie"}`)))

	f := readFrame(t, conn)
	assert.Equal(t, RoomState, f.Event)
}

func TestServerRateLimitsFrames(t *testing.T) {
	limiter := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1, MaxBurst: 1})
	_, url := startServer(t, limiter)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"join-room","data":"movie"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"chat-message","data":"hi"}`)))

	assert.Equal(t, RoomState, readFrame(t, conn).Event)

	f := readFrame(t, conn)
	require.Equal(t, ErrorEvent, f.Event)
	assert.JSONEq(t, `"Rate limit exceeded."`, string(f.Data))
}

func TestCheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")

	assert.True(t, checkOrigin(nil)(req))
	assert.True(t, checkOrigin([]string{"*"})(req))
	assert.False(t, checkOrigin([]string{"https://watch.example"})(req))

	req.Header.Set("Origin", "https://watch.example")
	assert.True(t, checkOrigin([]string{"https://watch.example"})(req))
}

func TestJoinRequestDecoding(t *testing.T) {
	var req JoinRequest
	require.NoError(t, json.Unmarshal([]byte(`"movie"`), &req))
	assert.Equal(t, JoinRequest{RoomID: "movie"}, req)

	require.NoError(t, json.Unmarshal([]byte(`{"roomId":"movie","username":"alice"}`), &req))
	assert.Equal(t, JoinRequest{RoomID: "movie", Username: "alice"}, req)

	assert.Error(t, json.Unmarshal([]byte(`42`), &req))
}
