package authz_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/lattice-saas/lattice/internal/authz"
	_ "github.com/lattice-saas/lattice/testing"
)

func TestScopeCovers(t *testing.T) {
	cases := []struct {
		grant  authz.Scope
		target authz.Scope
		want   bool
	}{
		{authz.ScopeGlobal, authz.ScopeOwn, true},
		{authz.ScopeGlobal, authz.ScopeGlobal, true},
		{authz.ScopeTenant, authz.ScopeAccount, true},
		{authz.ScopeTenant, authz.ScopeGlobal, false},
		{authz.ScopeOwn, authz.ScopeAccount, false},
		{authz.ScopeAccount, authz.ScopeAccount, true},
	}
	for _, tc := range cases {
		if got := tc.grant.Covers(tc.target); got != tc.want {
			t.Errorf("%s.Covers(%s) = %v, want %v", tc.grant, tc.target, got, tc.want)
		}
	}
}

func TestParseScopeRoundtrip(t *testing.T) {
	for _, scope := range []authz.Scope{authz.ScopeOwn, authz.ScopeAccount, authz.ScopeTenant, authz.ScopeGlobal} {
		parsed, err := authz.ParseScope(scope.String())
		if err != nil {
			t.Fatalf("parse %q: %v", scope.String(), err)
		}
		if parsed != scope {
			t.Fatalf("roundtrip %q: got %v", scope.String(), parsed)
		}
	}
	if _, err := authz.ParseScope("galaxy"); err == nil {
		t.Fatal("expected error for unknown scope")
	}
}

func TestScopeJSON(t *testing.T) {
	data, err := json.Marshal(authz.ScopeTenant)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"tenant"` {
		t.Fatalf("expected \"tenant\", got %s", data)
	}
	var scope authz.Scope
	if err := json.Unmarshal([]byte(`"global"`), &scope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if scope != authz.ScopeGlobal {
		t.Fatalf("expected global, got %v", scope)
	}
}

func TestEligibleScopes(t *testing.T) {
	tenantID := uuid.New()
	accountID := uuid.New()

	platform := authz.EligibleScopes(authz.UserContext{})
	if len(platform) != 4 || platform[len(platform)-1] != authz.ScopeGlobal {
		t.Fatalf("platform user should probe all scopes ending at global, got %v", platform)
	}

	tenant := authz.EligibleScopes(authz.UserContext{TenantID: &tenantID})
	if len(tenant) != 3 || tenant[len(tenant)-1] != authz.ScopeTenant {
		t.Fatalf("tenant user should stop at tenant scope, got %v", tenant)
	}

	account := authz.EligibleScopes(authz.UserContext{TenantID: &tenantID, AccountID: &accountID})
	if len(account) != 2 || account[len(account)-1] != authz.ScopeAccount {
		t.Fatalf("account user should stop at account scope, got %v", account)
	}
	if account[0] != authz.ScopeOwn {
		t.Fatalf("probing must start at the most specific scope, got %v", account[0])
	}
}
