package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/keygate/internal/security"
)

func TestNewMetricsWithRegisterer(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("", registry)
	m.Init()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["keygate_gate_outcomes_total"])
	assert.True(t, names["keygate_gate_duration_seconds"])
	assert.True(t, names["keygate_gate_authority_duration_seconds"])
	assert.True(t, names["keygate_gate_context_clears_total"])
}

func TestNewMetricsWithRegisterer_Duplicate(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		NewMetricsWithRegisterer("dup", registry)
		NewMetricsWithRegisterer("dup", registry)
	})
}

func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	m := NewMetricsWithRegisterer("test", prometheus.NewRegistry())

	m.RecordOutcome("http", OutcomeForbidden, time.Millisecond)
	m.RecordOutcome("http", OutcomeForbidden, time.Millisecond)
	m.RecordContextClear()
	m.ObserveAuthority(VerdictRejected, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("http", "forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.contextClears))
}

func TestGate_RecordsMetrics(t *testing.T) {
	t.Parallel()

	m := NewMetricsWithRegisterer("test", prometheus.NewRegistry())
	g, err := NewGate(&fakeAuthority{rejectMsg: "Invalid API Key"}, WithGateMetrics(m))
	require.NoError(t, err)

	sc := security.NewContext()
	sc.SetCurrent(authenticatedToken("bad-key", "user123"))

	req := httptest.NewRequest(http.MethodGet, "/?api_key=bad-key", nil)
	g.Handle(req, sc)
	g.Handle(httptest.NewRequest(http.MethodGet, "/", nil), sc)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("http", "forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("http", "unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.contextClears))
}
