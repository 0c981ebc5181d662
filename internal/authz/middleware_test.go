package authz_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/lattice-saas/lattice/internal/authz"
	"github.com/lattice-saas/lattice/internal/shared"
	_ "github.com/lattice-saas/lattice/testing"
)

type stubIdentityStore struct {
	identity authz.Identity
	err      error
}

func (s *stubIdentityStore) Identity(ctx context.Context, userID uuid.UUID) (authz.Identity, error) {
	if s.err != nil {
		return authz.Identity{}, s.err
	}
	return s.identity, nil
}

func newGuard(store authz.IdentityStore) authz.Middleware {
	engine := authz.NewEngine(authz.EngineConfig{Catalog: authz.StaticSource{Snapshot: testSnapshot()}})
	return authz.Middleware{Engine: engine, Extractor: authz.NewExtractor(store)}
}

func sessionForUser(userID uuid.UUID) *shared.Session {
	sess := &shared.Session{ID: uuid.NewString()}
	sess.SetUser(userID.String())
	return sess
}

func serveGuarded(t *testing.T, guard authz.Middleware, sess *shared.Session) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	var nextCalled bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authz.UserFromContext(r.Context()); !ok {
			t.Error("expected user context downstream of the guard")
		}
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	res := httptest.NewRecorder()
	guard.Require("view", "user")(next).ServeHTTP(res, req)
	return res, nextCalled
}

func TestRequireWithoutSessionReturns401(t *testing.T) {
	guard := newGuard(&stubIdentityStore{})

	res, called := serveGuarded(t, guard, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if called {
		t.Fatal("next handler must not run")
	}
}

func TestRequireAnonymousSessionReturns401(t *testing.T) {
	guard := newGuard(&stubIdentityStore{})

	res, called := serveGuarded(t, guard, &shared.Session{ID: uuid.NewString()})
	if res.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401 without user, got %d (called=%v)", res.Code, called)
	}
}

func TestRequireGrantedPassesThrough(t *testing.T) {
	userID := uuid.New()
	tenantID := uuid.New()
	guard := newGuard(&stubIdentityStore{identity: authz.Identity{
		UserID:    userID,
		TenantID:  &tenantID,
		RoleCodes: []string{"tenant_admin"},
		IsActive:  true,
	}})

	res, called := serveGuarded(t, guard, sessionForUser(userID))
	if res.Code != http.StatusOK || !called {
		t.Fatalf("expected pass-through, got %d (called=%v)", res.Code, called)
	}
}

func TestRequireDeniedReturns403WithReason(t *testing.T) {
	userID := uuid.New()
	tenantID := uuid.New()
	guard := newGuard(&stubIdentityStore{identity: authz.Identity{
		UserID:   userID,
		TenantID: &tenantID,
		IsActive: true,
	}})

	res, called := serveGuarded(t, guard, sessionForUser(userID))
	if res.Code != http.StatusForbidden || called {
		t.Fatalf("expected 403, got %d (called=%v)", res.Code, called)
	}
	if !strings.Contains(res.Body.String(), authz.ReasonNoMatch) {
		t.Fatalf("expected deny reason in body, got %s", res.Body.String())
	}
}

func TestRequireInactiveUserReturns403(t *testing.T) {
	userID := uuid.New()
	guard := newGuard(&stubIdentityStore{identity: authz.Identity{
		UserID:    userID,
		RoleCodes: []string{"tenant_admin"},
		IsActive:  false,
	}})

	res, _ := serveGuarded(t, guard, sessionForUser(userID))
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), authz.ReasonInactiveUser) {
		t.Fatalf("expected inactive_user reason, got %s", res.Body.String())
	}
}

func TestRequireIdentityFailureFailsClosed(t *testing.T) {
	userID := uuid.New()
	guard := newGuard(&stubIdentityStore{err: errors.New("identity store offline")})

	res, called := serveGuarded(t, guard, sessionForUser(userID))
	if res.Code != http.StatusForbidden || called {
		t.Fatalf("expected fail-closed 403, got %d (called=%v)", res.Code, called)
	}
}
