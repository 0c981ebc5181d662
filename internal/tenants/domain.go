package tenants

import (
	"time"

	"github.com/google/uuid"
)

// Status values for a tenant lifecycle.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Tenant represents an isolated customer organization.
type Tenant struct {
	ID        uuid.UUID  `json:"id"`
	Slug      string     `json:"slug"`
	Name      string     `json:"name"`
	PlanID    *uuid.UUID `json:"plan_id,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
