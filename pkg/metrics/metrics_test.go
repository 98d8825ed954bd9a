package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	m := New()

	m.IncConsumed()
	m.IncConsumed()
	m.IncDelivered()
	m.IncFailed()
	m.IncRetried()
	m.IncDeadLettered()

	snapshot := m.Snapshot()
	assert.Equal(t, int64(2), snapshot["consumed"])
	assert.Equal(t, int64(1), snapshot["delivered"])
	assert.Equal(t, int64(1), snapshot["failed"])
	assert.Equal(t, int64(1), snapshot["retried"])
	assert.Equal(t, int64(1), snapshot["dead_lettered"])
}

func TestSnapshot_ZeroCounters(t *testing.T) {
	snapshot := New().Snapshot()

	require.Len(t, snapshot, 5)
	for name, value := range snapshot {
		assert.Zero(t, value, name)
	}
}

func TestHandler_ServesPrometheusFormat(t *testing.T) {
	m := New()
	m.IncDelivered()
	m.IncDelivered()

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "notification_worker_delivered_total 2")
	assert.Contains(t, body, "notification_worker_consumed_total 0")
	assert.Contains(t, body, "notification_worker_dead_lettered_total 0")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := New()
	b := New()

	a.IncFailed()

	assert.Equal(t, int64(1), a.Snapshot()["failed"])
	assert.Zero(t, b.Snapshot()["failed"])
}
