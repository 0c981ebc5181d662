package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/lattice-saas/lattice/internal/authz"
)

// Sink adapts the repository to the decision recorder.
type Sink struct {
	repo RepositoryPort
}

// NewSink constructs a Sink.
func NewSink(repo RepositoryPort) *Sink {
	return &Sink{repo: repo}
}

// Record persists one decision event.
func (s *Sink) Record(ctx context.Context, event authz.Event) error {
	entry := Entry{
		ID:           uuid.New(),
		OccurredAt:   event.At,
		UserID:       event.UserID,
		TenantID:     event.TenantID,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Allowed:      event.Decision.Allowed,
		Reason:       string(event.Decision.Reason),
	}
	if event.Decision.Allowed {
		entry.ScopeUsed = event.Decision.ScopeUsed.String()
	}
	return s.repo.Insert(ctx, entry)
}

var _ authz.AuditSink = (*Sink)(nil)
