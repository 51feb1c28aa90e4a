package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harun/ffmpeg-mcp/pkg/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func intPtr(v int) *int { return &v }

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	require.NotNil(t, m)
	assert.NotNil(t, m.Registry())
	assert.NotNil(t, m.ExecutionsTotal)
	assert.NotNil(t, m.ExecutionDuration)
	assert.NotNil(t, m.ExecutionsInFlight)
	assert.NotNil(t, m.AdmissionRejectedTotal)
	assert.NotNil(t, m.RequestsTotal)
	assert.NotNil(t, m.RequestDuration)
}

func TestSetWebSocketClients(t *testing.T) {
	m := NewMetrics()

	m.SetWebSocketClients(3)
	assert.Contains(t, scrape(t, m), "ffmpeg_mcp_websocket_clients 3")

	m.SetWebSocketClients(0)
	assert.Contains(t, scrape(t, m), "ffmpeg_mcp_websocket_clients 0")
}

func TestMetricsRegistriesAreIndependent(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.ExecutionRejected()

	assert.Contains(t, scrape(t, a), "ffmpeg_mcp_admission_rejected_total 1")
	assert.Contains(t, scrape(t, b), "ffmpeg_mcp_admission_rejected_total 0")
}

func TestExecutionObserver(t *testing.T) {
	m := NewMetrics()

	m.ExecutionAdmitted(1)
	m.ExecutionAdmitted(2)
	assert.Contains(t, scrape(t, m), "ffmpeg_mcp_executions_in_flight 2")

	m.ExecutionFinished(sandbox.Result{
		ExitCode: intPtr(0),
		Cause:    sandbox.CauseNormal,
		Duration: 1500 * time.Millisecond,
	}, 1)
	m.ExecutionFinished(sandbox.Result{
		Cause:    sandbox.CauseTimedOut,
		Duration: 10 * time.Second,
		Stderr:   sandbox.Output{Truncated: true, Dropped: 4096},
	}, 0)
	m.ExecutionRejected()

	body := scrape(t, m)

	assert.Contains(t, body, `ffmpeg_mcp_executions_total{cause="normal"} 1`)
	assert.Contains(t, body, `ffmpeg_mcp_executions_total{cause="timed-out"} 1`)
	assert.Contains(t, body, `ffmpeg_mcp_execution_duration_seconds_count{cause="normal"} 1`)
	assert.Contains(t, body, `ffmpeg_mcp_execution_duration_seconds_sum{cause="timed-out"} 10`)
	assert.Contains(t, body, "ffmpeg_mcp_executions_in_flight 0")
	assert.Contains(t, body, "ffmpeg_mcp_admission_rejected_total 1")
	assert.Contains(t, body, `ffmpeg_mcp_output_truncated_total{stream="stderr"} 1`)
	assert.Contains(t, body, `ffmpeg_mcp_output_dropped_bytes_total{stream="stderr"} 4096`)
	assert.NotContains(t, body, `ffmpeg_mcp_output_truncated_total{stream="stdout"}`)
}

func TestRequestObserver(t *testing.T) {
	m := NewMetrics()

	m.RequestHandled("tools/call", 0, 20*time.Millisecond)
	m.RequestHandled("tools/call", -32010, time.Millisecond)
	m.RequestHandled("unknown", -32601, 0)

	body := scrape(t, m)

	assert.Contains(t, body, `ffmpeg_mcp_rpc_requests_total{code="ok",method="tools/call"} 1`)
	assert.Contains(t, body, `ffmpeg_mcp_rpc_requests_total{code="-32010",method="tools/call"} 1`)
	assert.Contains(t, body, `ffmpeg_mcp_rpc_requests_total{code="-32601",method="unknown"} 1`)
	assert.Contains(t, body, `ffmpeg_mcp_rpc_request_duration_seconds_count{method="tools/call"} 2`)
}

func TestMetricsRegistry(t *testing.T) {
	m := NewMetrics()
	m.ExecutionsTotal.WithLabelValues("normal").Inc()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}

	assert.True(t, names["ffmpeg_mcp_executions_total"])
	assert.True(t, names["ffmpeg_mcp_admission_rejected_total"])
	assert.True(t, names["go_goroutines"])
}
