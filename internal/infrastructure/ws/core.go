package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/metrics"
	"github.com/hilthontt/watchsync/internal/infrastructure/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrCoreStopped = errors.New("core stopped")

// EventEmitter receives room lifecycle events. Emit must not block.
type EventEmitter interface {
	Emit(event *domain.RoomEvent)
}

type Options struct {
	MaxRooms          uint
	MaxMembers        uint
	EnforceStrictSync bool
	ChatMaxLength     int
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

type inboundFrame struct {
	client   *Client
	envelope Envelope
	err      error
}

type query struct {
	fn   func()
	done chan struct{}
}

// Core is the room coordinator. A single goroutine (Run) owns the
// connection registry and the room table; every register, disconnect,
// inbound frame and query is handled to completion before the next.
type Core struct {
	opts    Options
	rooms   domain.RoomTable
	history domain.ChatHistory
	emitter EventEmitter
	logger  logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	clients map[string]*Client // connection registry
	dropped []*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan *inboundFrame
	queries    chan query
	done       chan struct{}

	validateChat validatorFunc
}

func NewCore(
	opts Options,
	rooms domain.RoomTable,
	history domain.ChatHistory,
	emitter EventEmitter,
	logger logging.Logger,
	m *metrics.Metrics,
) *Core {
	if opts.ChatMaxLength <= 0 {
		opts.ChatMaxLength = defaultChatMaxLength
	}

	return &Core{
		opts:         opts,
		rooms:        rooms,
		history:      history,
		emitter:      emitter,
		logger:       logger,
		metrics:      m,
		tracer:       tracing.GetTracer("watchsync/ws"),
		clients:      make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		inbound:      make(chan *inboundFrame),
		queries:      make(chan query),
		done:         make(chan struct{}),
		validateChat: chatValidator(opts.ChatMaxLength),
	}
}

// Run processes events until ctx is cancelled, then closes every client.
func (c *Core) Run(ctx context.Context) {
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case cl := <-c.register:
			c.handleRegister(cl)

		case cl := <-c.unregister:
			c.handleDisconnect(ctx, cl)

		case frame := <-c.inbound:
			c.handleFrame(ctx, frame)

		case q := <-c.queries:
			q.fn()
			close(q.done)
		}

		c.flushDropped(ctx)
	}
}

func (c *Core) Done() <-chan struct{} {
	return c.done
}

// Register adds a client to the registry. It reports false once the core
// has stopped.
func (c *Core) Register(cl *Client) bool {
	select {
	case c.register <- cl:
		return true
	case <-c.done:
		return false
	}
}

func (c *Core) disconnect(cl *Client) {
	select {
	case c.unregister <- cl:
	case <-c.done:
	}
}

func (c *Core) submit(frame *inboundFrame) bool {
	select {
	case c.inbound <- frame:
		return true
	case <-c.done:
		return false
	}
}

// do runs fn on the core goroutine and waits for it.
func (c *Core) do(ctx context.Context, fn func()) error {
	q := query{fn: fn, done: make(chan struct{})}

	select {
	case c.queries <- q:
	case <-c.done:
		return ErrCoreStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Core) RoomSnapshot(ctx context.Context, roomID string) (domain.RoomSnapshot, error) {
	var (
		snapshot domain.RoomSnapshot
		found    bool
	)

	err := c.do(ctx, func() {
		room, ok := c.rooms.Get(roomID)
		if !ok {
			return
		}
		snapshot, found = room.Snapshot(), true
	})
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	if !found {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	return snapshot, nil
}

func (c *Core) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.do(ctx, func() {
		stats = Stats{Rooms: c.rooms.Len(), Connections: len(c.clients)}
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (c *Core) handleRegister(cl *Client) {
	cl.session = domain.NewConnection(cl.ID)
	c.clients[cl.ID] = cl
	c.metrics.ConnectionOpened()

	c.send(cl, NewConnected(cl.ID))

	c.logger.Info(logging.WebSocket, logging.Connect, "client connected", map[logging.ExtraKey]any{
		logging.ConnID: cl.ID,
	})
}

// handleDisconnect is idempotent: a client dropped for being slow is
// unregistered again when its reader exits.
func (c *Core) handleDisconnect(ctx context.Context, cl *Client) {
	if registered, ok := c.clients[cl.ID]; !ok || registered != cl {
		return
	}

	c.leave(ctx, cl)
	cl.session.Close()
	delete(c.clients, cl.ID)
	c.closeSend(cl)
	c.metrics.ConnectionClosed()

	c.logger.Info(logging.WebSocket, logging.Disconnect, "client disconnected", map[logging.ExtraKey]any{
		logging.ConnID: cl.ID,
	})
}

func (c *Core) handleFrame(ctx context.Context, frame *inboundFrame) {
	cl := frame.client
	if _, ok := c.clients[cl.ID]; !ok {
		return
	}

	event := frame.envelope.Event
	ctx, span := c.tracer.Start(ctx, "ws "+eventLabel(event), trace.WithAttributes(
		attribute.String("ws.event", event),
		attribute.String("ws.conn_id", cl.ID),
		attribute.String("ws.room_id", cl.session.RoomID),
	))
	defer span.End()

	if frame.err != nil {
		c.rejectErr(cl, event, frame.err)
		return
	}

	data := frame.envelope.Data
	switch event {
	case JoinRoom:
		c.handleJoin(ctx, cl, data)
	case LeaveRoom:
		c.leave(ctx, cl)
	case SyncEvent:
		c.handleSync(cl, data)
	case ChatMessage:
		c.handleChat(ctx, cl, data)
	case AdEvent:
		c.handleAd(ctx, cl, data)
	case ChangeURL:
		c.handleChangeURL(ctx, cl, data)
	case UpdateRoomSettings:
		c.handleUpdateSettings(cl, data)
	default:
		c.metrics.Rejected("unknown", "unknown_event")
		c.logger.Debug(logging.WebSocket, logging.Read, "unknown event", map[logging.ExtraKey]any{
			logging.ConnID: cl.ID,
			logging.Event:  event,
		})
		return
	}

	c.metrics.Event(event)
}

// send queues msg for cl. A full buffer marks the client slow; it is
// disconnected once the current event has been handled.
func (c *Core) send(cl *Client, msg *WSMessage) {
	if cl.slow || cl.closed {
		return
	}

	select {
	case cl.Message <- msg:
	default:
		cl.slow = true
		c.dropped = append(c.dropped, cl)
		c.metrics.SlowClientDropped()
	}
}

// broadcast sends msg to every member of room except the given id ("" for none).
func (c *Core) broadcast(room *domain.Room, msg *WSMessage, except string) {
	for _, id := range room.Members() {
		if id == except {
			continue
		}
		if cl, ok := c.clients[id]; ok {
			c.send(cl, msg)
		}
	}
}

func (c *Core) reject(cl *Client, event, reason, notice string) {
	c.metrics.Rejected(eventLabel(event), reason)
	if notice != "" {
		c.send(cl, NewError(notice))
	}

	c.logger.Debug(logging.Room, logging.Rejected, reason, map[logging.ExtraKey]any{
		logging.ConnID: cl.ID,
		logging.RoomID: cl.session.RoomID,
		logging.Event:  event,
	})
}

func (c *Core) emit(event *domain.RoomEvent) {
	if c.emitter != nil {
		c.emitter.Emit(event)
	}
}

func (c *Core) closeSend(cl *Client) {
	if !cl.closed {
		cl.closed = true
		close(cl.Message)
	}
}

func (c *Core) flushDropped(ctx context.Context) {
	for len(c.dropped) > 0 {
		cl := c.dropped[0]
		c.dropped = c.dropped[1:]

		c.logger.Warn(logging.WebSocket, logging.Write, "send buffer full, dropping client", map[logging.ExtraKey]any{
			logging.ConnID: cl.ID,
		})
		c.handleDisconnect(ctx, cl)
	}
}

func (c *Core) shutdown() {
	close(c.done)
	for _, cl := range c.clients {
		cl.session.Close()
		c.closeSend(cl)
	}
	c.clients = make(map[string]*Client)

	c.logger.Info(logging.WebSocket, logging.Shutdown, "core stopped", nil)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return domain.ErrInvalidInput
	}
	return json.Unmarshal(data, v)
}
