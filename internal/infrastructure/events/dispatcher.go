package events

import (
	"context"
	"time"

	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/metrics"
)

const (
	defaultBuffer      = 1024
	defaultSinkTimeout = 5 * time.Second
)

// Sink consumes room lifecycle events outside the coordinator loop.
type Sink interface {
	Name() string
	Handle(ctx context.Context, event *domain.RoomEvent) error
}

// Dispatcher fans room events out to sinks on its own goroutine. Emit never
// blocks: when the queue is full the event is dropped and counted.
type Dispatcher struct {
	queue       chan *domain.RoomEvent
	sinks       []Sink
	sinkTimeout time.Duration
	logger      logging.Logger
	metrics     *metrics.Metrics
	done        chan struct{}
}

func NewDispatcher(buffer int, logger logging.Logger, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	return &Dispatcher{
		queue:       make(chan *domain.RoomEvent, buffer),
		sinks:       sinks,
		sinkTimeout: defaultSinkTimeout,
		logger:      logger,
		metrics:     m,
		done:        make(chan struct{}),
	}
}

func (d *Dispatcher) Emit(event *domain.RoomEvent) {
	if len(d.sinks) == 0 || event == nil {
		return
	}

	select {
	case d.queue <- event:
	default:
		d.metrics.SinkError("dispatcher")
		d.logger.Warn(logging.Events, logging.Publish, "event queue full, dropping event", map[logging.ExtraKey]any{
			logging.RoomID: event.RoomID,
			logging.Event:  string(event.Type),
		})
	}
}

// Run delivers events until ctx is done, then flushes whatever is queued.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		case <-ctx.Done():
			d.flush()
			return
		}
	}
}

func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) flush() {
	ctx := context.Background()
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event *domain.RoomEvent) {
	for _, sink := range d.sinks {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sinkTimeout)
		err := sink.Handle(sinkCtx, event)
		cancel()

		if err != nil {
			d.metrics.SinkError(sink.Name())
			d.logger.Error(logging.Events, logging.Publish, "sink failed", map[logging.ExtraKey]any{
				logging.LoggerName:   sink.Name(),
				logging.RoomID:       event.RoomID,
				logging.Event:        string(event.Type),
				logging.ErrorMessage: err.Error(),
			})
		}
	}
}
