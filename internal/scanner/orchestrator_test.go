package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlertWatch/internal/calculator"
	"AlertWatch/internal/collector"
	"AlertWatch/internal/cooldown"
	"AlertWatch/internal/metrics"
	"AlertWatch/internal/model"
	"AlertWatch/internal/strategy"
)

// fakeNotifier records delivered signals. failFor makes Send fail for a ticker;
// block, when set, is waited on before each send.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []*model.Signal
	failFor map[string]bool
	block   chan struct{}
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Send(ctx context.Context, sig *model.Signal) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[sig.Ticker] {
		return errors.New("webhook down")
	}
	f.sent = append(f.sent, sig)
	return nil
}

func (f *fakeNotifier) tickers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Ticker)
	}
	return out
}

// panickingGateway panics on every fetch for one symbol.
type panickingGateway struct {
	*collector.MockGateway
	symbol string
}

func (p panickingGateway) GetCandles(ctx context.Context, symbol, interval string, count int) (model.CandleSeries, error) {
	if symbol == p.symbol {
		var m map[string]int
		m[symbol]++
	}
	return p.MockGateway.GetCandles(ctx, symbol, interval, count)
}

type failingSource struct{}

func (failingSource) Name() string { return "broken" }
func (failingSource) ListTickers(context.Context) ([]string, error) {
	return nil, errors.New("sheet unavailable")
}

// inWindow is 09:30 America/Los_Angeles.
var inWindow = time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)

func firingEvaluator(t *testing.T) *strategy.Evaluator {
	t.Helper()
	cfg := strategy.DefaultConfig()
	cfg.Weights = calculator.ConfidenceWeights{Base: 60, BullishClose: 10}
	e, err := strategy.NewEvaluator(cfg)
	require.NoError(t, err)
	return e
}

func laWindow(t *testing.T) Window {
	t.Helper()
	w, err := NewWindow("09:15", "10:30", "America/Los_Angeles")
	require.NoError(t, err)
	return w
}

type harness struct {
	orch    *Orchestrator
	gateway *collector.MockGateway
	notify  *fakeNotifier
	sleeps  []time.Duration
}

func newHarness(t *testing.T, tickers []string, mutate func(*Options, *Deps)) *harness {
	t.Helper()
	h := &harness{
		gateway: collector.NewMockGateway(5.0),
		notify:  &fakeNotifier{failFor: map[string]bool{}},
	}
	opts := DefaultOptions()
	opts.Window = laWindow(t)
	deps := Deps{
		Source:    collector.NewStaticSource(tickers),
		Gateway:   h.gateway,
		Evaluator: firingEvaluator(t),
		Notifier:  h.notify,
		Metrics:   metrics.New(nil),
	}
	if mutate != nil {
		mutate(&opts, &deps)
	}
	o, err := New(opts, deps)
	require.NoError(t, err)
	o.Now = func() time.Time { return inWindow }
	o.Sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	h.orch = o
	return h
}

func TestWindowBoundariesInclusive(t *testing.T) {
	w := laWindow(t)
	la := w.Location
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before", time.Date(2026, 3, 2, 9, 14, 59, 0, la), false},
		{"start", time.Date(2026, 3, 2, 9, 15, 0, 0, la), true},
		{"inside", time.Date(2026, 3, 2, 10, 0, 0, 0, la), true},
		{"end minute", time.Date(2026, 3, 2, 10, 30, 59, 0, la), true},
		{"after", time.Date(2026, 3, 2, 10, 31, 0, 0, la), false},
		{"utc input", time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.at))
		})
	}
	assert.True(t, Window{}.Contains(time.Date(2026, 3, 2, 3, 0, 0, 0, la)), "disabled window")
}

func TestWindowWrapsMidnight(t *testing.T) {
	w, err := NewWindow("22:00", "02:00", "UTC")
	require.NoError(t, err)
	assert.True(t, w.Contains(time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))
}

func TestNewWindowErrors(t *testing.T) {
	_, err := NewWindow("9:75", "10:30", "UTC")
	assert.Error(t, err)
	_, err = NewWindow("0915", "10:30", "UTC")
	assert.Error(t, err)
	_, err = NewWindow("09:15", "10:30", "Mars/Olympus")
	assert.Error(t, err)
}

func TestRunCycleOutsideWindowDoesNothing(t *testing.T) {
	h := newHarness(t, []string{"AAA"}, nil)
	h.orch.Now = func() time.Time { return time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC) }

	rep, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeOutsideWindow, rep.Outcome)
	assert.Zero(t, h.gateway.Calls())
	assert.Empty(t, h.notify.tickers())
	assert.Equal(t, 1, h.orch.Stats().CyclesRun)
	assert.True(t, h.orch.Stats().LastScanAt.IsZero())
}

func TestRunCycleBatchesAndDelays(t *testing.T) {
	tickers := []string{"a1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "A9", "a1"}
	h := newHarness(t, tickers, nil)

	rep, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCompleted, rep.Outcome)
	assert.Equal(t, 9, rep.TickersTotal, "duplicates dropped")
	assert.Equal(t, 3, rep.Batches)
	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, h.sleeps, "no delay after last batch")
	assert.Equal(t, 18, rep.APICalls)
	assert.Equal(t, 18, h.gateway.Calls())
	assert.Equal(t, 9, rep.AlertsFired)
	assert.Equal(t, []string{"A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "A9"}, h.notify.tickers())
}

func TestRunCycleMaxTickers(t *testing.T) {
	h := newHarness(t, []string{"A", "B", "C", "D", "E"}, func(o *Options, _ *Deps) {
		o.MaxTickers = 3
	})
	rep, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.TickersTotal)
	assert.Equal(t, []string{"A", "B", "C"}, h.notify.tickers())
}

func TestRunCyclePartialFailureIsolated(t *testing.T) {
	h := newHarness(t, []string{"A", "B", "C"}, nil)
	h.gateway.Fail("B", "1min", errors.New("HTTP 500"))

	rep, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCompleted, rep.Outcome)
	assert.Equal(t, []string{"A", "C"}, h.notify.tickers())
	assert.Equal(t, 1, rep.TickerErrors)
	assert.Equal(t, 3, rep.TickersScanned)
	assert.Equal(t, 2, rep.AlertsFired)
	assert.Equal(t, 5, rep.APICalls, "failed primary fetch skips the confirm call")

	st := h.orch.Stats()
	require.NotNil(t, st.LastReport)
	assert.Equal(t, 1, st.LastReport.TickerErrors)
	assert.Equal(t, 2, st.AlertsFired)
}

func TestRunCyclePanicIsolated(t *testing.T) {
	h := newHarness(t, []string{"A", "B", "C"}, nil)
	h.orch.gateway = panickingGateway{MockGateway: h.gateway, symbol: "B"}

	rep, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCompleted, rep.Outcome)
	assert.Equal(t, 1, rep.TickerErrors)
	assert.Equal(t, 2, rep.AlertsFired)
	assert.Equal(t, []string{"A", "C"}, h.notify.tickers())
	assert.False(t, h.orch.Running(), "guard released after a panicking ticker")
}

func TestRunCycleShortDataIsSkip(t *testing.T) {
	h := newHarness(t, []string{"A", "B"}, nil)
	h.gateway.Fail("A", "5min", collector.ErrInsufficientData)
	h.gateway.Set("B", "1min", []model.Bar{{Open: 5.0, High: 5.1, Low: 4.8, Close: 4.9, Volume: 9000}})

	rep, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.TickersSkipped)
	assert.Zero(t, rep.TickerErrors)
	assert.Empty(t, h.notify.tickers())
}

func TestRunCycleNotifyFailureCounted(t *testing.T) {
	h := newHarness(t, []string{"A", "B"}, nil)
	h.notify.failFor["A"] = true

	rep, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.NotifyFailures)
	assert.Equal(t, 1, rep.AlertsFired)
	assert.Equal(t, []string{"B"}, h.notify.tickers())
}

func TestRunCycleNoTickers(t *testing.T) {
	h := newHarness(t, nil, func(_ *Options, d *Deps) { d.Source = failingSource{} })
	rep, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNoTickers, rep.Outcome)
	assert.Zero(t, h.gateway.Calls())
}

func TestRunCycleOverlapGuard(t *testing.T) {
	h := newHarness(t, []string{"A"}, nil)
	h.notify.block = make(chan struct{})

	done := make(chan model.CycleReport)
	go func() {
		rep, _ := h.orch.RunCycle(context.Background())
		done <- rep
	}()

	require.Eventually(t, h.orch.Running, time.Second, time.Millisecond)
	_, err := h.orch.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)
	assert.True(t, h.orch.Stats().Running)

	close(h.notify.block)
	rep := <-done
	assert.Equal(t, 1, rep.AlertsFired)
	assert.False(t, h.orch.Running())

	_, err = h.orch.RunCycle(context.Background())
	assert.NoError(t, err, "guard released after the cycle")
}

func TestRunCycleCancelledStopsEmission(t *testing.T) {
	h := newHarness(t, []string{"A", "B", "C", "D", "E", "F"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	// Shutdown arrives during the first inter-batch delay.
	h.orch.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	rep, err := h.orch.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCancelled, rep.Outcome)
	assert.Equal(t, 1, rep.Batches)
	assert.Equal(t, []string{"A", "B", "C", "D"}, h.notify.tickers())

	st := h.orch.Stats()
	assert.Equal(t, 4, st.AlertsFired, "stats keep what completed")
}

func TestRunCycleCancelledBeforeNotify(t *testing.T) {
	h := newHarness(t, []string{"A"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	h.orch.Now = func() time.Time {
		// Evaluation reads the clock; cancel once both fetches are done.
		if h.gateway.Calls() >= 2 {
			cancel()
		}
		return inWindow
	}

	rep, err := h.orch.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCancelled, rep.Outcome)
	assert.Empty(t, h.notify.tickers())
	assert.Zero(t, rep.AlertsFired)
}

func TestRunCycleCooldownSuppresses(t *testing.T) {
	store := cooldown.NewMemory(time.Hour)
	store.Now = func() time.Time { return inWindow }
	h := newHarness(t, []string{"A", "B"}, func(_ *Options, d *Deps) { d.Cooldown = store })

	rep, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.AlertsFired)

	rep, err = h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.AlertsFired)
	assert.Equal(t, 2, rep.AlertsSuppressed)
	assert.Len(t, h.notify.tickers(), 2)
}

func TestRunCycleFailedDeliveryKeepsCooldownFree(t *testing.T) {
	store := cooldown.NewMemory(time.Hour)
	store.Now = func() time.Time { return inWindow }
	h := newHarness(t, []string{"A", "B"}, func(_ *Options, d *Deps) { d.Cooldown = store })
	h.notify.failFor["A"] = true

	rep, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.NotifyFailures)
	assert.Equal(t, 1, rep.AlertsFired)

	// Webhook recovers: A was never delivered so it alerts now; B stays suppressed.
	h.notify.failFor["A"] = false
	rep, err = h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.AlertsFired)
	assert.Equal(t, 1, rep.AlertsSuppressed)
	assert.Equal(t, []string{"B", "A"}, h.notify.tickers())
}

func TestRunCycleConcurrentBatch(t *testing.T) {
	h := newHarness(t, []string{"A", "B", "C", "D"}, func(o *Options, _ *Deps) {
		o.Concurrency = 4
	})
	rep, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, rep.AlertsFired)
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, h.notify.tickers())
}

func TestSendMockAlert(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.orch.SendMockAlert(context.Background()))
	require.Len(t, h.notify.sent, 1)
	assert.True(t, h.notify.sent[0].Test)
	assert.Zero(t, h.orch.Stats().AlertsFired)

	h.notify.failFor["TEST"] = true
	assert.Error(t, h.orch.SendMockAlert(context.Background()))
}

func TestOptionsValidate(t *testing.T) {
	o := DefaultOptions()
	require.NoError(t, o.Validate())
	o.BatchSize = 0
	assert.Error(t, o.Validate())
}

func TestStatsPersistAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "stats.json")
	h := newHarness(t, []string{"A", "B"}, func(o *Options, _ *Deps) { o.StateFile = path })
	_, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	restarted := newHarness(t, []string{"A"}, func(o *Options, _ *Deps) { o.StateFile = path })
	st := restarted.orch.Stats()
	assert.Equal(t, 1, st.CyclesRun)
	assert.Equal(t, 2, st.AlertsFired)
	assert.Equal(t, 4, st.APICallsUsed)
	assert.False(t, st.Running)
}

func TestLoadStatsMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	st, err := LoadStats(filepath.Join(dir, "none.json"))
	require.NoError(t, err)
	assert.Zero(t, st.CyclesRun)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadStats(bad)
	assert.Error(t, err)
}
