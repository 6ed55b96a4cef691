package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlertWatch/internal/model"
)

func TestObserveCycle(t *testing.T) {
	m := New(nil)
	start := time.Now()
	m.ObserveCycle(model.CycleReport{
		Outcome:        model.OutcomeCompleted,
		StartedAt:      start,
		FinishedAt:     start.Add(90 * time.Second),
		TickersScanned: 3,
		TickerErrors:   1,
		AlertsFired:    2,
		APICalls:       8,
	})
	m.ObserveCycle(model.CycleReport{Outcome: model.OutcomeOutsideWindow})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("outside_window")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TickersScanned))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertsTotal))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.APICallsTotal))
	assert.Equal(t, float64(start.Add(90*time.Second).Unix()), testutil.ToFloat64(m.LastCycleTime))
}

func TestSkipsAndRunning(t *testing.T) {
	m := New(nil)
	m.ObserveSkip("low_confidence")
	m.ObserveSkip("low_confidence")
	m.ObserveSkip("")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SkipsTotal.WithLabelValues("low_confidence")))

	m.SetRunning(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CycleRunning))
	m.SetRunning(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CycleRunning))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCycle(model.CycleReport{})
	m.ObserveSkip("x")
	m.SetRunning(true)
}

func TestHandlerExposition(t *testing.T) {
	m := New(nil)
	m.AlertsTotal.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "alertwatch_alerts_total 1")
}
