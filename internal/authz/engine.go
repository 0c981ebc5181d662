package authz

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Deny reasons reported on Decision.Reason.
const (
	ReasonInactiveUser    = "inactive_user"
	ReasonUnknownResource = "unknown_resource"
	ReasonNoMatch         = "no_matching_permission"
	ReasonResolutionError = "resolution_error"
)

// Decision is the engine's verdict for one check.
type Decision struct {
	Allowed   bool        `json:"allowed"`
	Matched   *Permission `json:"matched_permission,omitempty"`
	ScopeUsed Scope       `json:"scope_used"`
	Reason    string      `json:"reason,omitempty"`
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Instrumentation receives engine observations. Implementations must be
// cheap and non-blocking; a nil Instrumentation disables them.
type Instrumentation interface {
	DecisionResolved(decision Decision, cacheHit bool, elapsed time.Duration)
	AuditDropped()
}

// EngineConfig collects Engine dependencies. Cache and Recorder are
// optional: without a cache every check resolves directly, and without a
// recorder no audit events are emitted.
type EngineConfig struct {
	Catalog     CatalogSource
	Cache       DecisionCache
	Recorder    *Recorder
	Logger      *slog.Logger
	Metrics     Instrumentation
	TTL         time.Duration
	NegativeTTL time.Duration
}

// Engine resolves permission checks against the catalog, consulting the
// decision cache and recording audit events. It fails closed: every internal
// failure surfaces as a denial, never as an error to the caller.
type Engine struct {
	catalog     CatalogSource
	cache       DecisionCache
	recorder    *Recorder
	logger      *slog.Logger
	metrics     Instrumentation
	ttl         time.Duration
	negativeTTL time.Duration
	group       singleflight.Group
}

// NewEngine constructs an Engine, applying TTL defaults (5m positive,
// 1/5 of that for negatives so role changes converge faster).
func NewEngine(cfg EngineConfig) *Engine {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	negative := cfg.NegativeTTL
	if negative <= 0 {
		negative = ttl / 5
		if negative < 5*time.Second {
			negative = 5 * time.Second
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalog:     cfg.Catalog,
		cache:       cfg.Cache,
		recorder:    cfg.Recorder,
		logger:      logger,
		metrics:     cfg.Metrics,
		ttl:         ttl,
		negativeTTL: negative,
	}
}

// Check resolves whether the context may perform action on resourceType.
// resourceID may be empty; when set it participates in own-scope matching
// and is carried into the audit record.
func (e *Engine) Check(ctx context.Context, uctx UserContext, action, resourceType, resourceID string) Decision {
	start := time.Now()

	if !uctx.IsActive {
		decision := deny(ReasonInactiveUser)
		e.finish(ctx, uctx, action, resourceType, resourceID, decision, false, start)
		return decision
	}

	key := e.cacheKey(uctx, action, resourceType)
	if e.cache != nil {
		cached, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			// Cache backend failure degrades to direct resolution.
			e.logger.Warn("authz: cache get failed", slog.String("key", key.String()), slog.Any("error", err))
		} else if ok {
			e.finish(ctx, uctx, action, resourceType, resourceID, cached, true, start)
			return cached
		}
	}

	decision := e.resolveShared(ctx, key, uctx, action, resourceType, resourceID)
	e.finish(ctx, uctx, action, resourceType, resourceID, decision, false, start)
	return decision
}

// resolveShared collapses concurrent misses for the same check into a single
// catalog resolution; recomputation is deterministic so sharing is safe.
// resourceID is part of the collapse key because own-scope outcomes differ
// per resource.
func (e *Engine) resolveShared(ctx context.Context, key CacheKey, uctx UserContext, action, resourceType, resourceID string) Decision {
	resultCh := e.group.DoChan(key.String()+"|"+resourceID, func() (any, error) {
		return e.resolve(ctx, key, uctx, action, resourceType, resourceID), nil
	})
	select {
	case <-ctx.Done():
		// Abandon the in-flight resolution without committing a result for
		// this caller; the shared computation may still complete for others.
		return deny(ReasonResolutionError)
	case result := <-resultCh:
		return result.Val.(Decision)
	}
}

func (e *Engine) resolve(ctx context.Context, key CacheKey, uctx UserContext, action, resourceType, resourceID string) Decision {
	catalog, err := e.catalog.Catalog(ctx)
	if err != nil {
		e.logger.Error("authz: catalog unavailable", slog.Any("error", err))
		return deny(ReasonResolutionError)
	}

	var decision Decision
	var resourceBound bool
	if !catalog.KnownResource(resourceType) {
		// Almost always a caller bug: the route asked about a resource the
		// catalog never defined.
		e.logger.Warn("authz: unknown resource type",
			slog.String("resource", resourceType),
			slog.String("action", action))
		decision = deny(ReasonUnknownResource)
	} else {
		decision, resourceBound = e.probeScopes(catalog, uctx, action, resourceType, resourceID)
	}

	// Decisions that turned on the resource being acted on (own-scope
	// grants) are never cached: the cache key carries no resourceID, so a
	// stored verdict would leak across resources.
	if e.cache != nil && !resourceBound && ctx.Err() == nil {
		ttl := e.ttl
		if !decision.Allowed {
			ttl = e.negativeTTL
		}
		if err := e.cache.Set(ctx, key, decision, ttl); err != nil {
			e.logger.Warn("authz: cache set failed", slog.String("key", key.String()), slog.Any("error", err))
		}
	}
	return decision
}

// probeScopes walks the eligible scopes most specific first and returns the
// first granted match. The second return reports whether the outcome depends
// on resourceID: an own-scope allow, or a deny where an otherwise-granted
// own permission was bypassed because the resource belongs to someone else.
func (e *Engine) probeScopes(catalog Catalog, uctx UserContext, action, resourceType, resourceID string) (Decision, bool) {
	resourceBound := false
	for _, scope := range EligibleScopes(uctx) {
		perm, ok := catalog.Permission(resourceType, action, scope)
		if !ok {
			continue
		}
		if scope == ScopeOwn && resourceID != "" && resourceID != uctx.UserID.String() {
			if e.roleGrants(catalog, uctx.RoleCodes, perm.Code) {
				resourceBound = true
			}
			continue
		}
		if e.roleGrants(catalog, uctx.RoleCodes, perm.Code) {
			matched := perm
			decision := Decision{Allowed: true, Matched: &matched, ScopeUsed: scope}
			return decision, resourceBound || scope == ScopeOwn
		}
	}
	return deny(ReasonNoMatch), resourceBound
}

func (e *Engine) roleGrants(catalog Catalog, roleCodes []string, permissionCode string) bool {
	for _, code := range roleCodes {
		role, ok := catalog.Role(code)
		if !ok {
			// Unknown role codes are ignored, never treated as grants.
			continue
		}
		if role.Grants(permissionCode) {
			return true
		}
	}
	return false
}

func (e *Engine) finish(ctx context.Context, uctx UserContext, action, resourceType, resourceID string, decision Decision, cacheHit bool, start time.Time) {
	if e.metrics != nil {
		e.metrics.DecisionResolved(decision, cacheHit, time.Since(start))
	}
	if e.recorder == nil {
		return
	}
	event := Event{
		At:           time.Now().UTC(),
		UserID:       uctx.UserID,
		TenantID:     uctx.TenantID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Decision:     decision,
	}
	if !e.recorder.Enqueue(event) && e.metrics != nil {
		e.metrics.AuditDropped()
	}
}

func (e *Engine) cacheKey(uctx UserContext, action, resourceType string) CacheKey {
	tenantID := uuid.Nil
	if uctx.TenantID != nil {
		tenantID = *uctx.TenantID
	}
	return CacheKey{
		UserID:       uctx.UserID,
		TenantID:     tenantID,
		ResourceType: resourceType,
		Action:       action,
	}
}
