package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsCollectors(t *testing.T) {
	m := New()
	m.RecordEvaluation("baseline")
	m.RecordEvaluation("baseline")
	m.RecordGuardrailFailure("pii")
	m.RecordPipelineOutcome("strict", "block")
	m.RecordApplyDuration("texts", 25*time.Millisecond)
	m.SetActivePolicies(3)
	m.RecordReload(nil)
	m.RecordReload(errors.New("db down"))

	body := scrape(t, m)
	assert.Contains(t, body, `policy_evaluations_total{policy="baseline"} 2`)
	assert.Contains(t, body, `policy_guardrail_failures_total{guardrail="pii"} 1`)
	assert.Contains(t, body, `policy_pipeline_outcomes_total{action="block",policy="strict"} 1`)
	assert.Contains(t, body, "policy_guardrail_apply_duration_seconds_count")
	assert.Contains(t, body, "policy_active_policies 3")
	assert.Contains(t, body, `policy_store_reloads_total{status="success"} 1`)
	assert.Contains(t, body, `policy_store_reloads_total{status="error"} 1`)
}

func TestMetricsIndependentRegistries(t *testing.T) {
	// Two instances never collide; with a global registry the second
	// MustRegister would panic.
	a := New()
	b := New()
	a.RecordEvaluation("p")
	assert.NotContains(t, scrape(t, b), `policy_evaluations_total{policy="p"}`)
}

func TestMetricsServerServes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := New()
	m.SetActivePolicies(1)
	go ListenAndServe(ctx, m, 19092)

	var resp *http.Response
	var err error
	for i := 0; i < 20; i++ {
		time.Sleep(50 * time.Millisecond)
		resp, err = http.Get("http://localhost:19092/metrics")
		if err == nil {
			break
		}
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "policy_active_policies"))
}
