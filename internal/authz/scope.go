package authz

import (
	"encoding/json"
	"fmt"
)

// Scope describes the breadth of a permission grant. Values are ordered:
// a grant at a higher scope covers every lower scope for the same
// resource/action pair.
type Scope int

const (
	// ScopeOwn limits a grant to resources owned by the acting user.
	ScopeOwn Scope = iota
	// ScopeAccount covers all resources within the user's account.
	ScopeAccount
	// ScopeTenant covers all resources within the user's tenant.
	ScopeTenant
	// ScopeGlobal covers the whole platform.
	ScopeGlobal
)

var scopeNames = map[Scope]string{
	ScopeOwn:     "own",
	ScopeAccount: "account",
	ScopeTenant:  "tenant",
	ScopeGlobal:  "global",
}

// String returns the wire representation of the scope.
func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// Covers reports whether a grant at scope s authorizes access at scope other.
func (s Scope) Covers(other Scope) bool {
	return s >= other
}

// ParseScope converts the stored representation back into a Scope.
func ParseScope(value string) (Scope, error) {
	for scope, name := range scopeNames {
		if name == value {
			return scope, nil
		}
	}
	return ScopeOwn, fmt.Errorf("authz: unknown scope %q", value)
}

// MarshalJSON encodes the scope as its string form.
func (s Scope) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the string form produced by MarshalJSON.
func (s *Scope) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseScope(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// EligibleScopes returns the scopes a context may be granted access at,
// ordered most specific first. The ceiling follows the narrowest association
// on the context: an account-bound user probes own and account, a tenant
// member without an account binding probes up to tenant, and a platform-level
// user (no tenant) probes all four. Order only matters for short-circuiting;
// a grant at any eligible scope authorizes the action.
func EligibleScopes(uctx UserContext) []Scope {
	ceiling := ScopeGlobal
	switch {
	case uctx.AccountID != nil:
		ceiling = ScopeAccount
	case uctx.TenantID != nil:
		ceiling = ScopeTenant
	}
	scopes := make([]Scope, 0, 4)
	for scope := ScopeOwn; scope <= ScopeGlobal; scope++ {
		if ceiling.Covers(scope) {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}
