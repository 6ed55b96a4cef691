// Package scanner drives scan cycles: window gate, batching, per-ticker
// fetch, evaluation and alert delivery.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"AlertWatch/internal/calculator"
	"AlertWatch/internal/collector"
	"AlertWatch/internal/cooldown"
	"AlertWatch/internal/metrics"
	"AlertWatch/internal/model"
	"AlertWatch/internal/notifier"
	"AlertWatch/internal/recorder"
	"AlertWatch/internal/strategy"
)

// ErrCycleInProgress is returned when a cycle is requested while one is running.
var ErrCycleInProgress = errors.New("scan cycle already in progress")

// Options controls cycle pacing and data requests.
type Options struct {
	Window          Window
	MaxTickers      int
	BatchSize       int
	BatchDelay      time.Duration
	Concurrency     int
	PrimaryInterval string
	PrimaryCount    int
	ConfirmInterval string
	ConfirmCount    int
	FetchTimeout    time.Duration
	NotifyTimeout   time.Duration

	// StateFile, when set, persists the cumulative stats across restarts.
	StateFile string
}

// DefaultOptions mirrors the production pacing: batches of 4 tickers a
// minute apart, 1min primary and 5min confirmation candles.
func DefaultOptions() Options {
	return Options{
		MaxTickers:      20,
		BatchSize:       4,
		BatchDelay:      60 * time.Second,
		Concurrency:     1,
		PrimaryInterval: "1min",
		PrimaryCount:    6,
		ConfirmInterval: "5min",
		ConfirmCount:    3,
		FetchTimeout:    15 * time.Second,
		NotifyTimeout:   10 * time.Second,
	}
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if o.BatchDelay < 0 {
		return fmt.Errorf("batch delay must not be negative")
	}
	if o.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if o.PrimaryInterval == "" || o.ConfirmInterval == "" {
		return fmt.Errorf("primary and confirm intervals are required")
	}
	if o.PrimaryCount < 2 || o.ConfirmCount < 2 {
		return fmt.Errorf("candle counts must be at least 2")
	}
	return nil
}

// Deps are the collaborators of an Orchestrator. Recorder, Cooldown and
// Metrics are optional.
type Deps struct {
	Source    collector.TickerSource
	Gateway   collector.Gateway
	Evaluator *strategy.Evaluator
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Cooldown  cooldown.Store
	Metrics   *metrics.Metrics
}

// Orchestrator runs scan cycles and owns the cumulative stats.
type Orchestrator struct {
	opts      Options
	source    collector.TickerSource
	gateway   collector.Gateway
	evaluator *strategy.Evaluator
	notifier  notifier.Notifier
	recorder  recorder.Recorder
	cooldown  cooldown.Store
	metrics   *metrics.Metrics

	// Now and Sleep are replaceable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	running atomic.Bool
	mu      sync.Mutex
	stats   model.ScanStats
}

// New creates an Orchestrator.
func New(opts Options, deps Deps) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil || deps.Gateway == nil || deps.Evaluator == nil || deps.Notifier == nil {
		return nil, fmt.Errorf("scanner: source, gateway, evaluator and notifier are required")
	}
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	if deps.Cooldown == nil {
		deps.Cooldown = cooldown.Noop{}
	}
	o := &Orchestrator{
		opts:      opts,
		source:    deps.Source,
		gateway:   deps.Gateway,
		evaluator: deps.Evaluator,
		notifier:  deps.Notifier,
		recorder:  deps.Recorder,
		cooldown:  deps.Cooldown,
		metrics:   deps.Metrics,
		Now:       time.Now,
		Sleep:     sleepContext,
	}
	if opts.StateFile != "" {
		st, err := LoadStats(opts.StateFile)
		if err != nil {
			return nil, fmt.Errorf("load scan stats: %w", err)
		}
		o.stats = st
	}
	o.stats.StartedAt = o.Now()
	return o, nil
}

// Options returns the pacing options.
func (o *Orchestrator) Options() Options { return o.opts }

// Running reports whether a cycle is in progress.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Stats returns a copy of the cumulative counters.
func (o *Orchestrator) Stats() model.ScanStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.stats
	if st.LastReport != nil {
		rep := *st.LastReport
		st.LastReport = &rep
	}
	st.Running = o.running.Load()
	return st
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// tickerResult is what one ticker contributes to the cycle report.
type tickerResult struct {
	apiCalls     int
	scanned      bool
	failed       bool
	skipped      bool
	fired        bool
	suppressed   bool
	notifyFailed bool
}

func (r tickerResult) addTo(rep *model.CycleReport) {
	rep.APICalls += r.apiCalls
	if r.scanned {
		rep.TickersScanned++
	}
	if r.failed {
		rep.TickerErrors++
	}
	if r.skipped {
		rep.TickersSkipped++
	}
	if r.fired {
		rep.AlertsFired++
	}
	if r.suppressed {
		rep.AlertsSuppressed++
	}
	if r.notifyFailed {
		rep.NotifyFailures++
	}
}

// RunCycle performs one scan over the current ticker list. It returns
// ErrCycleInProgress without doing any work if another cycle is running.
// Per-ticker failures are logged and counted, never returned.
func (o *Orchestrator) RunCycle(ctx context.Context) (model.CycleReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		return model.CycleReport{}, ErrCycleInProgress
	}
	defer o.running.Store(false)
	o.metrics.SetRunning(true)
	defer o.metrics.SetRunning(false)

	rep := model.CycleReport{CycleID: uuid.NewString(), StartedAt: o.Now()}
	entry := log.WithField("cycle_id", rep.CycleID)

	rep.Outcome = o.scan(ctx, entry, &rep)
	rep.FinishedAt = o.Now()
	o.finish(entry, rep)
	return rep, nil
}

func (o *Orchestrator) scan(ctx context.Context, entry *log.Entry, rep *model.CycleReport) model.CycleOutcome {
	if !o.opts.Window.Contains(rep.StartedAt) {
		entry.WithField("window", o.opts.Window.String()).Debug("outside scan window")
		return model.OutcomeOutsideWindow
	}

	raw, err := o.source.ListTickers(ctx)
	if err != nil {
		entry.WithError(err).WithField("source", o.source.Name()).Warn("list tickers failed")
	}
	tickers := collector.NormalizeTickers(raw, o.opts.MaxTickers)
	rep.TickersTotal = len(tickers)
	if len(tickers) == 0 {
		entry.Info("no tickers to scan")
		return model.OutcomeNoTickers
	}

	batches := splitBatches(tickers, o.opts.BatchSize)
	entry.WithFields(log.Fields{"tickers": len(tickers), "batches": len(batches)}).Info("scan cycle started")

	for i, batch := range batches {
		if i > 0 {
			if err := o.Sleep(ctx, o.opts.BatchDelay); err != nil {
				entry.Info("scan cycle cancelled during batch delay")
				return model.OutcomeCancelled
			}
		}
		if ctx.Err() != nil {
			return model.OutcomeCancelled
		}
		rep.Batches++
		o.runBatch(ctx, entry.WithField("batch", i+1), batch, rep)
	}
	if ctx.Err() != nil {
		return model.OutcomeCancelled
	}
	return model.OutcomeCompleted
}

func splitBatches(tickers []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(tickers); start += size {
		end := start + size
		if end > len(tickers) {
			end = len(tickers)
		}
		out = append(out, tickers[start:end])
	}
	return out
}

func (o *Orchestrator) runBatch(ctx context.Context, entry *log.Entry, batch []string, rep *model.CycleReport) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(o.opts.Concurrency)
	for _, symbol := range batch {
		if ctx.Err() != nil {
			break
		}
		symbol := symbol
		g.Go(func() error {
			res := o.scanTicker(ctx, entry.WithField("ticker", symbol), symbol)
			mu.Lock()
			res.addTo(rep)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) fetch(ctx context.Context, symbol, interval string, count int) (model.CandleSeries, error) {
	if o.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.FetchTimeout)
		defer cancel()
	}
	return o.gateway.GetCandles(ctx, symbol, interval, count)
}

func (o *Orchestrator) scanTicker(ctx context.Context, entry *log.Entry, symbol string) (res tickerResult) {
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", r).Error("ticker scan panicked")
			res.failed = true
			res.fired = false
		}
	}()

	res.scanned = true
	res.apiCalls++
	primary, err := o.fetch(ctx, symbol, o.opts.PrimaryInterval, o.opts.PrimaryCount)
	if err != nil {
		o.fetchFailed(ctx, entry, o.opts.PrimaryInterval, err, &res)
		return res
	}
	res.apiCalls++
	confirm, err := o.fetch(ctx, symbol, o.opts.ConfirmInterval, o.opts.ConfirmCount)
	if err != nil {
		o.fetchFailed(ctx, entry, o.opts.ConfirmInterval, err, &res)
		return res
	}

	cfg := o.evaluator.Config()
	if !calculator.HasATRWindow(primary, cfg.ATRPeriod) {
		entry.WithField("bars", primary.Len()).Debug("atr fallback in use")
	}
	dec := o.evaluator.Evaluate(primary, confirm, o.Now())
	if !dec.Fired() {
		res.skipped = true
		o.metrics.ObserveSkip(string(dec.Reason))
		entry.WithFields(log.Fields{
			"reason":     dec.Reason,
			"confidence": dec.Snapshot.ConfidenceScore,
		}).Debug("no signal")
		return res
	}

	// An aborted cycle must not emit.
	if ctx.Err() != nil {
		return res
	}

	allowed, err := o.cooldown.Allow(ctx, symbol)
	if err != nil {
		entry.WithError(err).Warn("cooldown check failed, alerting anyway")
		allowed = true
	}
	if !allowed {
		res.suppressed = true
		entry.Info("signal suppressed by cooldown")
		return res
	}

	if err := o.deliver(ctx, dec.Signal); err != nil {
		res.notifyFailed = true
		entry.WithError(err).WithField("notifier", o.notifier.Name()).Error("alert delivery failed")
		// Undelivered alerts must not hold the cooldown slot.
		if err := o.cooldown.Release(context.WithoutCancel(ctx), symbol); err != nil {
			entry.WithError(err).Warn("cooldown release failed")
		}
	} else {
		res.fired = true
		entry.WithFields(log.Fields{
			"entry":      dec.Signal.Entry,
			"confidence": dec.Signal.Confidence,
		}).Info("alert sent")
	}
	if err := o.recorder.RecordSignal(dec.Signal); err != nil {
		entry.WithError(err).Error("record signal")
	}
	return res
}

func (o *Orchestrator) fetchFailed(ctx context.Context, entry *log.Entry, interval string, err error, res *tickerResult) {
	switch {
	case ctx.Err() != nil:
		entry.WithField("interval", interval).Debug("fetch aborted")
	case errors.Is(err, collector.ErrInsufficientData):
		res.skipped = true
		o.metrics.ObserveSkip(string(strategy.SkipInsufficientData))
		entry.WithField("interval", interval).Info("not enough candles")
	default:
		res.failed = true
		entry.WithError(err).WithField("interval", interval).Warn("fetch candles failed")
	}
}

func (o *Orchestrator) deliver(ctx context.Context, sig *model.Signal) error {
	if o.opts.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.NotifyTimeout)
		defer cancel()
	}
	return o.notifier.Send(ctx, sig)
}

func (o *Orchestrator) finish(entry *log.Entry, rep model.CycleReport) {
	o.mu.Lock()
	o.stats.CyclesRun++
	if rep.Outcome != model.OutcomeOutsideWindow {
		o.stats.LastScanAt = rep.FinishedAt
	}
	o.stats.TickersScanned += rep.TickersScanned
	o.stats.AlertsFired += rep.AlertsFired
	o.stats.APICallsUsed += rep.APICalls
	o.stats.NotifyFailures += rep.NotifyFailures
	last := rep
	o.stats.LastReport = &last
	snapshot := o.stats
	o.mu.Unlock()

	if o.opts.StateFile != "" {
		if err := SaveStats(o.opts.StateFile, snapshot); err != nil {
			entry.WithError(err).Warn("save scan stats")
		}
	}

	o.metrics.ObserveCycle(rep)
	if rep.Outcome == model.OutcomeOutsideWindow {
		return
	}
	if err := o.recorder.RecordCycle(&rep); err != nil {
		entry.WithError(err).Error("record cycle")
	}
	entry.WithFields(log.Fields{
		"outcome":  rep.Outcome,
		"scanned":  rep.TickersScanned,
		"errors":   rep.TickerErrors,
		"alerts":   rep.AlertsFired,
		"api":      rep.APICalls,
		"duration": rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond),
	}).Info("scan cycle finished")
}

// MockSignal builds the synthetic signal used to check the delivery pipeline.
func MockSignal(now time.Time) *model.Signal {
	return &model.Signal{
		ID:         uuid.NewString(),
		Ticker:     "TEST",
		Entry:      1.234,
		StopLoss:   1.2,
		TakeProfit: 1.3,
		Confidence: 99,
		Interval:   "1min",
		Timestamp:  now,
		Test:       true,
	}
}

// SendMockAlert pushes a synthetic signal through the notifier. It does not
// touch the alert counters.
func (o *Orchestrator) SendMockAlert(ctx context.Context) error {
	sig := MockSignal(o.Now())
	if err := o.deliver(ctx, sig); err != nil {
		return fmt.Errorf("send mock alert via %s: %w", o.notifier.Name(), err)
	}
	if err := o.recorder.RecordSignal(sig); err != nil {
		log.WithError(err).Error("record mock signal")
	}
	log.WithField("notifier", o.notifier.Name()).Info("mock alert sent")
	return nil
}
