package authz

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/keygate/internal/security"
)

func adminToken() *security.Token {
	return security.NewToken("k").Authenticate(security.Principal{
		ID:       "k1",
		Name:     "user123",
		Roles:    []string{"admin"},
		Scopes:   []string{"read", "write"},
		Metadata: map[string]string{"team": "core"},
	})
}

func readerToken() *security.Token {
	return security.NewToken("r").Authenticate(security.Principal{
		ID:     "r1",
		Name:   "reader",
		Scopes: []string{"read"},
	})
}

func testPolicies() []Policy {
	return []Policy{
		{Name: "admin", PathPrefix: "/admin", Expression: `authenticated && "admin" in roles`},
		{Name: "write", PathPrefix: "/api", Methods: []string{"POST", "DELETE"}, Expression: `"write" in scopes`},
		{Name: "internal", PathPrefix: "/internal", Expression: `ip_in_range(client_ip, "10.0.0.0/8")`},
		{Name: "team", PathPrefix: "/team", Expression: `metadata["team"] == "core"`},
	}
}

func TestEngine_Authorize(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(testPolicies())
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     Request
		allowed bool
		policy  string
		reason  string
	}{
		{"no policy applies", Request{Method: "GET", Path: "/public"}, true, "", ReasonNoPolicy},
		{"admin allowed", Request{Method: "GET", Path: "/admin/users", Token: adminToken()}, true, "", ReasonAllowed},
		{"admin denied for reader", Request{Method: "GET", Path: "/admin", Token: readerToken()}, false, "admin", ReasonDenied},
		{"admin denied unauthenticated", Request{Method: "GET", Path: "/admin"}, false, "admin", ReasonDenied},
		{"read method not covered", Request{Method: "GET", Path: "/api/items", Token: readerToken()}, true, "", ReasonNoPolicy},
		{"write denied for reader", Request{Method: "post", Path: "/api/items", Token: readerToken()}, false, "write", ReasonDenied},
		{"write allowed", Request{Method: "DELETE", Path: "/api/items/1", Token: adminToken()}, true, "", ReasonAllowed},
		{"ip in range", Request{Method: "GET", Path: "/internal", ClientIP: "10.1.2.3"}, true, "", ReasonAllowed},
		{"ip out of range", Request{Method: "GET", Path: "/internal", ClientIP: "192.168.1.1"}, false, "internal", ReasonDenied},
		{"ip unparsable", Request{Method: "GET", Path: "/internal", ClientIP: "bogus"}, false, "internal", ReasonDenied},
		{"metadata match", Request{Method: "GET", Path: "/team", Token: adminToken()}, true, "", ReasonAllowed},
		{"metadata missing key", Request{Method: "GET", Path: "/team", Token: readerToken()}, false, "team", ReasonEvaluationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := tt.req
			decision := engine.Authorize(context.Background(), &req)
			assert.Equal(t, tt.allowed, decision.Allowed)
			assert.Equal(t, tt.policy, decision.Policy)
			assert.Equal(t, tt.reason, decision.Reason)
		})
	}
}

func TestEngine_AllApplicablePoliciesMustAllow(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Policy{
		{Name: "authenticated", Expression: "authenticated"},
		{Name: "admin", PathPrefix: "/admin", Expression: `"admin" in roles`},
	})
	require.NoError(t, err)

	assert.False(t, engine.Authorize(context.Background(), &Request{Path: "/x"}).Allowed)
	assert.True(t, engine.Authorize(context.Background(), &Request{Path: "/x", Token: readerToken()}).Allowed)

	d := engine.Authorize(context.Background(), &Request{Path: "/admin", Token: readerToken()})
	assert.False(t, d.Allowed)
	assert.Equal(t, "admin", d.Policy)
}

func TestEngine_Now(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Policy{
		{Name: "business-hours", Expression: `now.getHours("UTC") >= 9 && now.getHours("UTC") < 17`},
	})
	require.NoError(t, err)

	engine.now = func() time.Time { return time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC) }
	assert.True(t, engine.Authorize(context.Background(), &Request{Path: "/"}).Allowed)

	engine.now = func() time.Time { return time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC) }
	assert.False(t, engine.Authorize(context.Background(), &Request{Path: "/"}).Allowed)
}

func TestEngine_InvalidPolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		policies []Policy
	}{
		{"missing name", []Policy{{Expression: "true"}}},
		{"missing expression", []Policy{{Name: "p"}}},
		{"bad prefix", []Policy{{Name: "p", PathPrefix: "admin", Expression: "true"}}},
		{"syntax error", []Policy{{Name: "p", Expression: "authenticated &&"}}},
		{"unknown variable", []Policy{{Name: "p", Expression: "user == 'x'"}}},
		{"non bool", []Policy{{Name: "p", Expression: "principal"}}},
		{"duplicate", []Policy{{Name: "p", Expression: "true"}, {Name: "p", Expression: "false"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewEngine(tt.policies)
			require.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestEngine_SetPoliciesKeepsPreviousOnError(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Policy{{Name: "deny-all", Expression: "false"}})
	require.NoError(t, err)

	require.Error(t, engine.SetPolicies([]Policy{{Name: "broken", Expression: "("}}))
	require.Len(t, engine.Policies(), 1)
	assert.Equal(t, "deny-all", engine.Policies()[0].Name)

	require.NoError(t, engine.SetPolicies(nil))
	assert.Empty(t, engine.Policies())
	assert.True(t, engine.Authorize(context.Background(), &Request{Path: "/"}).Allowed)
}

func TestEngine_CompileDoesNotLoad(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Policy{{Name: "deny-all", Expression: "false"}})
	require.NoError(t, err)

	set, err := engine.Compile([]Policy{{Name: "allow-all", Expression: "true"}})
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, "deny-all", engine.Policies()[0].Name)
	assert.False(t, engine.Authorize(context.Background(), &Request{Path: "/"}).Allowed)

	_, err = engine.Compile([]Policy{{Name: "broken", Expression: "("}})
	require.ErrorIs(t, err, ErrInvalidPolicy)

	engine.Install(set)
	assert.Equal(t, "allow-all", engine.Policies()[0].Name)
	assert.True(t, engine.Authorize(context.Background(), &Request{Path: "/"}).Allowed)
}

func TestEngine_Metrics(t *testing.T) {
	t.Parallel()

	metrics := NewMetricsWithRegisterer("test", prometheus.NewRegistry())
	engine, err := NewEngine(testPolicies(), WithEngineMetrics(metrics))
	require.NoError(t, err)

	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.policyCount))

	engine.Authorize(context.Background(), &Request{Path: "/admin", Token: adminToken()})
	engine.Authorize(context.Background(), &Request{Path: "/admin"})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.evaluationsTotal.WithLabelValues("admin", "allow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.evaluationsTotal.WithLabelValues("admin", "deny")))
}

func TestPolicy_Applies(t *testing.T) {
	t.Parallel()

	p := Policy{PathPrefix: "/api", Methods: []string{"GET"}}
	assert.True(t, p.Applies("GET", "/api/x"))
	assert.True(t, p.Applies("get", "/api"))
	assert.False(t, p.Applies("POST", "/api/x"))
	assert.False(t, p.Applies("GET", "/other"))

	assert.True(t, (&Policy{Methods: []string{"*"}}).Applies("PATCH", "/anything"))
}
