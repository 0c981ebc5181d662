package authz

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/lattice-saas/lattice/internal/shared"
)

// ErrUnauthenticated indicates the request carries no identified user.
// Callers must translate it to 401, as opposed to a denial decision (403).
var ErrUnauthenticated = errors.New("authz: unauthenticated")

// UserContext is an immutable per-request snapshot of the acting user.
// TenantID is nil for platform-level accounts; AccountID is nil for users
// not bound to a single account within their tenant.
type UserContext struct {
	UserID    uuid.UUID
	TenantID  *uuid.UUID
	AccountID *uuid.UUID
	RoleCodes []string
	IsActive  bool
}

// Identity is the stored profile an IdentityStore resolves a user ID to.
type Identity struct {
	UserID    uuid.UUID
	TenantID  *uuid.UUID
	AccountID *uuid.UUID
	RoleCodes []string
	IsActive  bool
}

// IdentityStore resolves session user IDs to identities.
type IdentityStore interface {
	Identity(ctx context.Context, userID uuid.UUID) (Identity, error)
}

// Extractor derives a normalized UserContext from an authenticated session.
type Extractor struct {
	store IdentityStore
}

// NewExtractor constructs an Extractor backed by the given store.
func NewExtractor(store IdentityStore) *Extractor {
	return &Extractor{store: store}
}

// Extract builds the UserContext for the session. It fails with
// ErrUnauthenticated when the session carries no user; store failures are
// returned as-is for the caller to treat as resolution errors.
func (e *Extractor) Extract(ctx context.Context, sess *shared.Session) (UserContext, error) {
	if sess == nil {
		return UserContext{}, ErrUnauthenticated
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return UserContext{}, ErrUnauthenticated
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return UserContext{}, ErrUnauthenticated
	}
	identity, err := e.store.Identity(ctx, userID)
	if err != nil {
		return UserContext{}, err
	}
	return UserContext{
		UserID:    identity.UserID,
		TenantID:  identity.TenantID,
		AccountID: identity.AccountID,
		RoleCodes: identity.RoleCodes,
		IsActive:  identity.IsActive,
	}, nil
}

type userContextKey struct{}

// ContextWithUser stores the resolved user context for downstream handlers.
func ContextWithUser(ctx context.Context, uctx UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, uctx)
}

// UserFromContext extracts the user context placed by the middleware.
func UserFromContext(ctx context.Context) (UserContext, bool) {
	uctx, ok := ctx.Value(userContextKey{}).(UserContext)
	return uctx, ok
}
