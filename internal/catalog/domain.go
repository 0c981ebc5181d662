package catalog

import "time"

// Role represents a high-level permission grouping.
type Role struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission represents an atomic capability tied to a resource, action
// and scope level.
type Permission struct {
	Code         string `json:"code"`
	ResourceType string `json:"resource_type"`
	Action       string `json:"action"`
	Scope        string `json:"scope"`
	Description  string `json:"description"`
}
