// Package audit persists and serves the permission decision trail.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one persisted permission decision.
type Entry struct {
	ID           uuid.UUID  `json:"id"`
	OccurredAt   time.Time  `json:"occurred_at"`
	UserID       uuid.UUID  `json:"user_id"`
	TenantID     *uuid.UUID `json:"tenant_id,omitempty"`
	Action       string     `json:"action"`
	ResourceType string     `json:"resource_type"`
	ResourceID   string     `json:"resource_id,omitempty"`
	Allowed      bool       `json:"allowed"`
	ScopeUsed    string     `json:"scope_used,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

// Filter narrows a timeline query. Zero values match everything.
type Filter struct {
	UserID       *uuid.UUID
	TenantID     *uuid.UUID
	ResourceType string
	Allowed      *bool
	Since        time.Time
	Until        time.Time
}
