package authz

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is the audit record emitted for each permission decision.
type Event struct {
	At           time.Time
	UserID       uuid.UUID
	TenantID     *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   string
	Decision     Decision
}

// AuditSink persists audit events. Delivery is best-effort; sink failures
// are logged and never affect access decisions.
type AuditSink interface {
	Record(ctx context.Context, event Event) error
}

// Recorder decouples decision latency from audit persistence through a
// bounded queue consumed by a single background goroutine. A full queue
// drops the event rather than blocking the check.
type Recorder struct {
	sink   AuditSink
	queue  chan Event
	logger *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewRecorder builds a Recorder with the given queue capacity.
func NewRecorder(sink AuditSink, capacity int, logger *slog.Logger) *Recorder {
	if capacity <= 0 {
		capacity = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		sink:   sink,
		queue:  make(chan Event, capacity),
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Subsequent calls are no-ops.
func (r *Recorder) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go r.consume(ctx)
	})
}

// Enqueue queues the event, reporting false when the queue is full.
func (r *Recorder) Enqueue(event Event) bool {
	select {
	case r.queue <- event:
		return true
	default:
		return false
	}
}

// Close stops the consumer after draining queued events.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done
	})
}

func (r *Recorder) consume(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case <-r.stop:
			r.drain()
			return
		case event := <-r.queue:
			r.record(event)
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case event := <-r.queue:
			r.record(event)
		default:
			return
		}
	}
}

func (r *Recorder) record(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.sink.Record(ctx, event); err != nil {
		r.logger.Warn("authz: audit record failed",
			slog.String("user_id", event.UserID.String()),
			slog.String("action", event.Action),
			slog.Any("error", err))
	}
}
