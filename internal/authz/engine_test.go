package authz_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lattice-saas/lattice/internal/authz"
	_ "github.com/lattice-saas/lattice/testing"
)

func testSnapshot() *authz.Snapshot {
	permissions := []authz.Permission{
		{Code: "user.view.tenant", ResourceType: "user", Action: "view", Scope: authz.ScopeTenant},
		{Code: "user.view.own", ResourceType: "user", Action: "view", Scope: authz.ScopeOwn},
		{Code: "tenant.update.global", ResourceType: "tenant", Action: "update", Scope: authz.ScopeGlobal},
	}
	roles := []authz.Role{
		{Code: "tenant_admin", Name: "Tenant Admin", Permissions: map[string]struct{}{"user.view.tenant": {}}},
		{Code: "member", Name: "Member", Permissions: map[string]struct{}{"user.view.own": {}}},
		{Code: "platform_admin", Name: "Platform Admin", Permissions: map[string]struct{}{"tenant.update.global": {}}},
	}
	return authz.NewSnapshot(roles, permissions)
}

type stubCache struct {
	mu      sync.Mutex
	entries map[authz.CacheKey]authz.Decision
	ttls    map[authz.CacheKey]time.Duration
	getErr  error
	setErr  error
}

func newStubCache() *stubCache {
	return &stubCache{
		entries: make(map[authz.CacheKey]authz.Decision),
		ttls:    make(map[authz.CacheKey]time.Duration),
	}
}

func (c *stubCache) Get(ctx context.Context, key authz.CacheKey) (authz.Decision, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return authz.Decision{}, false, c.getErr
	}
	decision, ok := c.entries[key]
	return decision, ok, nil
}

func (c *stubCache) Set(ctx context.Context, key authz.CacheKey, decision authz.Decision, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = decision
	c.ttls[key] = ttl
	return nil
}

func (c *stubCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error   { return nil }
func (c *stubCache) InvalidateTenant(ctx context.Context, tenant uuid.UUID) error { return nil }
func (c *stubCache) InvalidateAll(ctx context.Context) error                      { return nil }

type stubInstr struct {
	mu        sync.Mutex
	hits      int
	misses    int
	dropped   int
	decisions []authz.Decision
}

func (s *stubInstr) DecisionResolved(decision authz.Decision, cacheHit bool, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cacheHit {
		s.hits++
	} else {
		s.misses++
	}
	s.decisions = append(s.decisions, decision)
}

func (s *stubInstr) AuditDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped++
}

type errorSource struct{}

func (errorSource) Catalog(ctx context.Context) (authz.Catalog, error) {
	return nil, errors.New("catalog store offline")
}

func activeTenantUser(roles ...string) authz.UserContext {
	tenantID := uuid.New()
	return authz.UserContext{
		UserID:    uuid.New(),
		TenantID:  &tenantID,
		RoleCodes: roles,
		IsActive:  true,
	}
}

func TestCheckAllowsTenantRole(t *testing.T) {
	engine := authz.NewEngine(authz.EngineConfig{Catalog: authz.StaticSource{Snapshot: testSnapshot()}})
	uctx := activeTenantUser("tenant_admin")

	decision := engine.Check(context.Background(), uctx, "view", "user", "")
	if !decision.Allowed {
		t.Fatalf("expected allow, got deny with reason %q", decision.Reason)
	}
	if decision.ScopeUsed != authz.ScopeTenant {
		t.Fatalf("expected tenant scope, got %v", decision.ScopeUsed)
	}
	if decision.Matched == nil || decision.Matched.Code != "user.view.tenant" {
		t.Fatalf("expected matched permission user.view.tenant, got %+v", decision.Matched)
	}
}

func TestCheckDeniesWithoutGrant(t *testing.T) {
	engine := authz.NewEngine(authz.EngineConfig{Catalog: authz.StaticSource{Snapshot: testSnapshot()}})
	uctx := activeTenantUser()

	decision := engine.Check(context.Background(), uctx, "view", "user", "")
	if decision.Allowed {
		t.Fatal("expected deny for user without roles")
	}
	if decision.Reason != authz.ReasonNoMatch {
		t.Fatalf("expected %q, got %q", authz.ReasonNoMatch, decision.Reason)
	}
}

func TestCheckDeniesInactiveUser(t *testing.T) {
	engine := authz.NewEngine(authz.EngineConfig{Catalog: authz.StaticSource{Snapshot: testSnapshot()}})
	uctx := activeTenantUser("tenant_admin")
	uctx.IsActive = false

	decision := engine.Check(context.Background(), uctx, "view", "user", "")
	if decision.Allowed || decision.Reason != authz.ReasonInactiveUser {
		t.Fatalf("expected inactive_user deny, got %+v", decision)
	}
}

func TestCheckDeniesUnknownResource(t *testing.T) {
	engine := authz.NewEngine(authz.EngineConfig{Catalog: authz.StaticSource{Snapshot: testSnapshot()}})
	uctx := activeTenantUser("tenant_admin")

	decision := engine.Check(context.Background(), uctx, "view", "spaceship", "")
	if decision.Allowed || decision.Reason != authz.ReasonUnknownResource {
		t.Fatalf("expected unknown_resource deny, got %+v", decision)
	}
}

func TestCheckCatalogFailureFailsClosed(t *testing.T) {
	engine := authz.NewEngine(authz.EngineConfig{Catalog: errorSource{}})
	uctx := activeTenantUser("tenant_admin")

	decision := engine.Check(context.Background(), uctx, "view", "user", "")
	if decision.Allowed || decision.Reason != authz.ReasonResolutionError {
		t.Fatalf("expected resolution_error deny, got %+v", decision)
	}
}

func TestCheckOwnScopeMatchesResourceID(t *testing.T) {
	engine := authz.NewEngine(authz.EngineConfig{Catalog: authz.StaticSource{Snapshot: testSnapshot()}})
	tenantID := uuid.New()
	accountID := uuid.New()
	uctx := authz.UserContext{
		UserID:    uuid.New(),
		TenantID:  &tenantID,
		AccountID: &accountID,
		RoleCodes: []string{"member"},
		IsActive:  true,
	}

	own := engine.Check(context.Background(), uctx, "view", "user", uctx.UserID.String())
	if !own.Allowed || own.ScopeUsed != authz.ScopeOwn {
		t.Fatalf("expected own-scope allow for own resource, got %+v", own)
	}

	other := engine.Check(context.Background(), uctx, "view", "user", uuid.New().String())
	if other.Allowed {
		t.Fatal("expected deny for someone else's resource")
	}
}

func TestCheckOwnScopeDecisionsNotCached(t *testing.T) {
	cache := newStubCache()
	engine := authz.NewEngine(authz.EngineConfig{
		Catalog: authz.StaticSource{Snapshot: testSnapshot()},
		Cache:   cache,
	})
	tenantID := uuid.New()
	accountID := uuid.New()
	uctx := authz.UserContext{
		UserID:    uuid.New(),
		TenantID:  &tenantID,
		AccountID: &accountID,
		RoleCodes: []string{"member"},
		IsActive:  true,
	}

	own := engine.Check(context.Background(), uctx, "view", "user", uctx.UserID.String())
	if !own.Allowed || own.ScopeUsed != authz.ScopeOwn {
		t.Fatalf("expected own-scope allow for own resource, got %+v", own)
	}

	// The allow above must not be served for someone else's resource.
	other := engine.Check(context.Background(), uctx, "view", "user", uuid.New().String())
	if other.Allowed {
		t.Fatalf("own-scope allow leaked to another resource: %+v", other)
	}

	// Nor must the deny above shadow the user's own resource.
	own = engine.Check(context.Background(), uctx, "view", "user", uctx.UserID.String())
	if !own.Allowed {
		t.Fatalf("deny for another resource leaked to the user's own: %+v", own)
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	if len(cache.entries) != 0 {
		t.Fatalf("resource-dependent decisions must not be cached, found %d entries", len(cache.entries))
	}
}

func TestCheckCancelledContextNotCached(t *testing.T) {
	cache := newStubCache()
	engine := authz.NewEngine(authz.EngineConfig{
		Catalog: authz.StaticSource{Snapshot: testSnapshot()},
		Cache:   cache,
	})
	uctx := activeTenantUser("tenant_admin")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine.Check(ctx, uctx, "view", "user", "")

	// The shared resolution may still be finishing; it skips the cache
	// write for a cancelled context either way.
	time.Sleep(10 * time.Millisecond)
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if len(cache.entries) != 0 {
		t.Fatalf("cancelled check must not commit a cache entry, found %d", len(cache.entries))
	}
}

func TestCheckTenantUserCannotUseGlobalGrant(t *testing.T) {
	engine := authz.NewEngine(authz.EngineConfig{Catalog: authz.StaticSource{Snapshot: testSnapshot()}})
	// The role carries a global grant, but the tenant binding caps
	// eligibility at tenant scope.
	uctx := activeTenantUser("platform_admin")

	decision := engine.Check(context.Background(), uctx, "update", "tenant", "")
	if decision.Allowed {
		t.Fatal("tenant-bound user must not exercise a global grant")
	}

	platform := authz.UserContext{UserID: uuid.New(), RoleCodes: []string{"platform_admin"}, IsActive: true}
	decision = engine.Check(context.Background(), platform, "update", "tenant", "")
	if !decision.Allowed || decision.ScopeUsed != authz.ScopeGlobal {
		t.Fatalf("platform user should match the global grant, got %+v", decision)
	}
}

func TestCheckUsesCachedDecision(t *testing.T) {
	cache := newStubCache()
	instr := &stubInstr{}
	engine := authz.NewEngine(authz.EngineConfig{
		Catalog: authz.StaticSource{Snapshot: testSnapshot()},
		Cache:   cache,
		Metrics: instr,
	})
	uctx := activeTenantUser("tenant_admin")

	first := engine.Check(context.Background(), uctx, "view", "user", "")
	second := engine.Check(context.Background(), uctx, "view", "user", "")
	if !first.Allowed || !second.Allowed {
		t.Fatalf("expected both checks to allow, got %+v / %+v", first, second)
	}

	instr.mu.Lock()
	defer instr.mu.Unlock()
	if instr.misses != 1 || instr.hits != 1 {
		t.Fatalf("expected one miss then one hit, got misses=%d hits=%d", instr.misses, instr.hits)
	}
}

func TestCheckNegativeDecisionCachedWithShorterTTL(t *testing.T) {
	cache := newStubCache()
	engine := authz.NewEngine(authz.EngineConfig{
		Catalog: authz.StaticSource{Snapshot: testSnapshot()},
		Cache:   cache,
		TTL:     10 * time.Minute,
	})
	allowed := activeTenantUser("tenant_admin")
	denied := activeTenantUser()

	engine.Check(context.Background(), allowed, "view", "user", "")
	engine.Check(context.Background(), denied, "view", "user", "")

	cache.mu.Lock()
	defer cache.mu.Unlock()
	var positive, negative time.Duration
	for key, decision := range cache.entries {
		if decision.Allowed {
			positive = cache.ttls[key]
		} else {
			negative = cache.ttls[key]
		}
	}
	if positive != 10*time.Minute {
		t.Fatalf("expected positive TTL 10m, got %v", positive)
	}
	if negative != 2*time.Minute {
		t.Fatalf("expected negative TTL 2m (one fifth), got %v", negative)
	}
}

func TestCheckCacheFailureDegradesToResolution(t *testing.T) {
	cache := newStubCache()
	cache.getErr = errors.New("backend down")
	cache.setErr = errors.New("backend down")
	engine := authz.NewEngine(authz.EngineConfig{
		Catalog: authz.StaticSource{Snapshot: testSnapshot()},
		Cache:   cache,
	})
	uctx := activeTenantUser("tenant_admin")

	decision := engine.Check(context.Background(), uctx, "view", "user", "")
	if !decision.Allowed {
		t.Fatalf("cache outage must not change the decision, got %+v", decision)
	}
}

func TestCheckUnknownRoleCodesIgnored(t *testing.T) {
	engine := authz.NewEngine(authz.EngineConfig{Catalog: authz.StaticSource{Snapshot: testSnapshot()}})
	uctx := activeTenantUser("ghost_role", "tenant_admin")

	decision := engine.Check(context.Background(), uctx, "view", "user", "")
	if !decision.Allowed {
		t.Fatalf("known role should still match, got %+v", decision)
	}

	uctx.RoleCodes = []string{"ghost_role"}
	decision = engine.Check(context.Background(), uctx, "view", "user", "")
	if decision.Allowed {
		t.Fatal("unknown role alone must not grant access")
	}
}
