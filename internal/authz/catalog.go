package authz

import "context"

// Permission is an atomic capability, uniquely identified by Code
// (e.g. "tenant.update").
type Permission struct {
	Code         string `json:"code"`
	ResourceType string `json:"resource_type"`
	Action       string `json:"action"`
	Scope        Scope  `json:"scope"`
}

// Role groups permissions under a stable code. Roles are immutable once
// attached to an in-flight context; mutations flow through the catalog.
type Role struct {
	Code        string
	Name        string
	Permissions map[string]struct{}
}

// Grants reports whether the role includes the permission code.
func (r Role) Grants(permissionCode string) bool {
	_, ok := r.Permissions[permissionCode]
	return ok
}

// Catalog is the read-only source of truth mapping roles to permissions.
// Implementations must be safe for unsynchronized concurrent reads.
type Catalog interface {
	Role(code string) (Role, bool)
	Permission(resourceType, action string, scope Scope) (Permission, bool)
	KnownResource(resourceType string) bool
}

// CatalogSource hands out the current catalog. It exists so the engine can
// observe out-of-band reloads without holding ambient global state.
type CatalogSource interface {
	Catalog(ctx context.Context) (Catalog, error)
}

type permissionKey struct {
	resourceType string
	action       string
	scope        Scope
}

// Snapshot is an immutable in-memory Catalog built from loaded rows.
type Snapshot struct {
	roles       map[string]Role
	permissions map[permissionKey]Permission
	resources   map[string]struct{}
}

// NewSnapshot indexes the given roles and permissions.
func NewSnapshot(roles []Role, permissions []Permission) *Snapshot {
	snap := &Snapshot{
		roles:       make(map[string]Role, len(roles)),
		permissions: make(map[permissionKey]Permission, len(permissions)),
		resources:   make(map[string]struct{}),
	}
	for _, role := range roles {
		snap.roles[role.Code] = role
	}
	for _, perm := range permissions {
		key := permissionKey{resourceType: perm.ResourceType, action: perm.Action, scope: perm.Scope}
		snap.permissions[key] = perm
		snap.resources[perm.ResourceType] = struct{}{}
	}
	return snap
}

// Role returns the role for code, if present.
func (s *Snapshot) Role(code string) (Role, bool) {
	role, ok := s.roles[code]
	return role, ok
}

// Permission returns the permission matching the triple, if present.
func (s *Snapshot) Permission(resourceType, action string, scope Scope) (Permission, bool) {
	perm, ok := s.permissions[permissionKey{resourceType: resourceType, action: action, scope: scope}]
	return perm, ok
}

// KnownResource reports whether any permission references the resource type.
func (s *Snapshot) KnownResource(resourceType string) bool {
	_, ok := s.resources[resourceType]
	return ok
}

var _ Catalog = (*Snapshot)(nil)

// StaticSource wraps a fixed catalog, mainly for tests and seeding.
type StaticSource struct {
	Snapshot Catalog
}

// Catalog returns the wrapped catalog.
func (s StaticSource) Catalog(ctx context.Context) (Catalog, error) {
	return s.Snapshot, nil
}
