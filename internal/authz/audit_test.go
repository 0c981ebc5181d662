package authz_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lattice-saas/lattice/internal/authz"
	_ "github.com/lattice-saas/lattice/testing"
)

type collectingSink struct {
	mu     sync.Mutex
	events []authz.Event
}

func (s *collectingSink) Record(ctx context.Context, event authz.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *collectingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestRecorderDeliversEvents(t *testing.T) {
	sink := &collectingSink{}
	recorder := authz.NewRecorder(sink, 16, nil)
	recorder.Start(context.Background())

	event := authz.Event{
		At:           time.Now().UTC(),
		UserID:       uuid.New(),
		Action:       "view",
		ResourceType: "user",
		Decision:     authz.Decision{Allowed: true, ScopeUsed: authz.ScopeTenant},
	}
	if !recorder.Enqueue(event) {
		t.Fatal("enqueue on empty queue must succeed")
	}
	recorder.Close()

	if sink.len() != 1 {
		t.Fatalf("expected 1 delivered event, got %d", sink.len())
	}
	sink.mu.Lock()
	got := sink.events[0]
	sink.mu.Unlock()
	if got.UserID != event.UserID || got.Action != "view" || !got.Decision.Allowed {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestRecorderDrainsOnClose(t *testing.T) {
	sink := &collectingSink{}
	recorder := authz.NewRecorder(sink, 64, nil)
	for i := 0; i < 10; i++ {
		if !recorder.Enqueue(authz.Event{UserID: uuid.New(), Action: "view", ResourceType: "user"}) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	// Start after filling so the drain path does the delivery.
	recorder.Start(context.Background())
	recorder.Close()

	if sink.len() != 10 {
		t.Fatalf("expected all 10 events drained, got %d", sink.len())
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	sink := &collectingSink{}
	recorder := authz.NewRecorder(sink, 1, nil)
	// Consumer not started, so the queue cannot make progress.
	if !recorder.Enqueue(authz.Event{UserID: uuid.New()}) {
		t.Fatal("first enqueue should fit")
	}
	if recorder.Enqueue(authz.Event{UserID: uuid.New()}) {
		t.Fatal("second enqueue must report a drop, not block")
	}
	recorder.Start(context.Background())
	recorder.Close()
}
