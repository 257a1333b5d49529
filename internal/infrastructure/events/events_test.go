package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/contracts"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []*domain.RoomEvent
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Handle(_ context.Context, event *domain.RoomEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fakePublisher struct {
	routingKey string
	message    contracts.AmqpMessage
}

func (p *fakePublisher) PublishMessage(_ context.Context, routingKey string, message contracts.AmqpMessage) error {
	p.routingKey = routingKey
	p.message = message
	return nil
}

type memoryAudit struct {
	mu     sync.Mutex
	events []domain.RoomEvent
}

func (m *memoryAudit) Log(_ context.Context, event *domain.RoomEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryAudit) GetByRoomID(_ context.Context, roomID string, _ int) ([]domain.RoomEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.RoomEvent
	for _, e := range m.events {
		if e.RoomID == roomID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryAudit) EnsureIndexes(context.Context) error { return nil }

func TestDispatcherDeliversToEverySink(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	failing := &recordingSink{name: "failing", err: errors.New("broker down")}
	d := NewDispatcher(8, logging.NewNop(), metrics.New(prometheus.NewRegistry()), ok, failing)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	d.Emit(domain.NewRoomCreatedEvent("movie", "a"))
	d.Emit(domain.NewMemberJoinedEvent("movie", "a", 1))

	assert.Eventually(t, func() bool {
		return ok.count() == 2 && failing.count() == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-d.Done()
}

func TestDispatcherFlushesOnShutdown(t *testing.T) {
	sink := &recordingSink{name: "ok"}
	d := NewDispatcher(8, logging.NewNop(), nil, sink)

	for i := 0; i < 3; i++ {
		d.Emit(domain.NewURLChangedEvent("movie", "https://x/video"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	assert.Equal(t, 3, sink.count())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &recordingSink{name: "ok"}
	d := NewDispatcher(1, logging.NewNop(), nil, sink)

	d.Emit(domain.NewRoomCreatedEvent("a", "x"))
	d.Emit(domain.NewRoomCreatedEvent("b", "y"))

	assert.Len(t, d.queue, 1)
}

func TestDispatcherWithoutSinksIsNoop(t *testing.T) {
	d := NewDispatcher(1, logging.NewNop(), nil)
	d.Emit(domain.NewRoomCreatedEvent("a", "x"))
	assert.Empty(t, d.queue)
}

func TestRoomPublisherRoundTripsThroughConsumer(t *testing.T) {
	pub := &fakePublisher{}
	event := domain.NewHostChangedEvent("movie", "a", "b")

	require.NoError(t, NewRoomPublisher(pub).Handle(context.Background(), event))
	assert.Equal(t, contracts.EventHostChanged, pub.routingKey)
	assert.Equal(t, "movie", pub.message.RoomID)

	body, err := json.Marshal(pub.message)
	require.NoError(t, err)

	audit := &memoryAudit{}
	consumer := NewRoomConsumer(nil, audit, logging.NewNop())
	require.NoError(t, consumer.handle(context.Background(), body))

	logged, err := audit.GetByRoomID(context.Background(), "movie", 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, event.ID, logged[0].ID)
	assert.Equal(t, domain.EventHostChanged, logged[0].Type)
	assert.Equal(t, "b", logged[0].Metadata["new_host_id"])
}

func TestRoomConsumerRejectsGarbage(t *testing.T) {
	consumer := NewRoomConsumer(nil, &memoryAudit{}, logging.NewNop())

	assert.Error(t, consumer.handle(context.Background(), []byte("nope")))
	assert.ErrorIs(t, consumer.handle(context.Background(), []byte(`{"roomId":"x","data":"e30="}`)), domain.ErrInvalidInput)
}

func TestAuditSinkLogs(t *testing.T) {
	audit := &memoryAudit{}
	sink := NewAuditSink(audit)

	require.NoError(t, sink.Handle(context.Background(), domain.NewRoomDeletedEvent("movie", time.Minute)))
	logged, err := audit.GetByRoomID(context.Background(), "movie", 0)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, domain.EventRoomDeleted, logged[0].Type)
}
