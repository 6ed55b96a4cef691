package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlertWatch/internal/calculator"
	"AlertWatch/internal/model"
)

var evalTime = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

// primaryBars returns six bars with a true range of 0.20 each, ending in a
// bullish (but not breakout) bar closing at 5.00.
func primaryBars(volume float64) []model.Bar {
	bars := make([]model.Bar, 0, 6)
	for i := 0; i < 5; i++ {
		bars = append(bars, model.Bar{Open: 4.9, High: 5.0, Low: 4.8, Close: 4.95, Volume: volume})
	}
	return append(bars, model.Bar{Open: 4.85, High: 5.0, Low: 4.8, Close: 5.0, Volume: volume})
}

func greenConfirm() model.CandleSeries {
	return model.NewCandleSeries("ABC", "5min", []model.Bar{
		{Open: 4.7, High: 4.9, Low: 4.6, Close: 4.8, Volume: 50000},
		{Open: 4.8, High: 5.0, Low: 4.75, Close: 4.95, Volume: 60000},
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Weights = calculator.ConfidenceWeights{Base: 60, BullishClose: 10}
	cfg.MinVolume = 1000
	return cfg
}

func mustEvaluator(t *testing.T, cfg Config) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(cfg)
	require.NoError(t, err)
	return e
}

func TestRoundPrice_Tiers(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.4321, "0.4321"},
		{0.43215, "0.4322"},
		{5.6789, "5.679"},
		{12.345, "12.35"},
		{1, "1.000"},
		{10, "10.00"},
		{123.456, "123.46"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrice(tt.in), "FormatPrice(%v)", tt.in)
	}
	assert.Equal(t, 5.679, RoundPrice(5.6789))
	assert.Equal(t, 12.35, RoundPrice(12.345))
}

func TestRoundPrice_TierEdgeCarry(t *testing.T) {
	tests := []struct {
		in        float64
		wantRound float64
		wantText  string
	}{
		{0.99996, 1, "1.000"},
		{9.9996, 10, "10.00"},
		{0.99994, 0.9999, "0.9999"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantRound, RoundPrice(tt.in), "RoundPrice(%v)", tt.in)
		assert.Equal(t, tt.wantText, FormatPrice(tt.in), "FormatPrice(%v)", tt.in)
		assert.Equal(t, FormatPrice(RoundPrice(tt.in)), FormatPrice(tt.in), "stored and displayed disagree for %v", tt.in)
	}
	assert.Equal(t, "n/a", FormatPrice(math.NaN()))
}

func TestDefaultAllocationBands_NotShared(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllocationEnabled = true
	e := mustEvaluator(t, cfg)

	cfg.AllocationBands[0].Percent = 1
	bands := DefaultAllocationBands()
	bands[1].Percent = 2

	assert.Equal(t, 100.0, DefaultAllocationBands()[0].Percent)
	assert.Equal(t, 85.0, DefaultAllocationBands()[1].Percent)
	assert.Equal(t, 100.0, e.Config().AllocationBands[0].Percent)
	assert.Equal(t, 100.0, DefaultConfig().AllocationBands[0].Percent)
}

func TestEvaluate_LevelsFromATR(t *testing.T) {
	e := mustEvaluator(t, testConfig())
	primary := model.NewCandleSeries("ABC", "1min", primaryBars(20000))

	d := e.Evaluate(primary, greenConfirm(), evalTime)
	require.True(t, d.Fired(), "expected signal, skipped with %q", d.Reason)

	sig := d.Signal
	assert.Equal(t, "ABC", sig.Ticker)
	assert.InDelta(t, 0.20, sig.ATR, 1e-9)
	assert.Equal(t, 5.0, sig.Entry)
	assert.Equal(t, 4.74, sig.StopLoss)
	assert.Equal(t, 5.40, sig.TakeProfit)
	assert.Equal(t, 70.0, sig.Confidence)
	assert.Equal(t, "1min", sig.Interval)
	assert.Equal(t, "5min", sig.ConfirmInterval)
	assert.Equal(t, evalTime, sig.Timestamp)
	assert.NotEmpty(t, sig.ID)
	assert.Nil(t, sig.Zones)
	assert.Nil(t, sig.AllocationPct)
}

func TestEvaluate_ThresholdBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.Weights = calculator.ConfidenceWeights{Base: 54, BullishClose: 10}
	primary := model.NewCandleSeries("ABC", "1min", primaryBars(20000))

	d := mustEvaluator(t, cfg).Evaluate(primary, greenConfirm(), evalTime)
	assert.False(t, d.Fired())
	assert.Equal(t, SkipLowConfidence, d.Reason)
	assert.Equal(t, 64.0, d.Snapshot.ConfidenceScore)

	cfg.ConfidenceThreshold = 64
	d = mustEvaluator(t, cfg).Evaluate(primary, greenConfirm(), evalTime)
	assert.True(t, d.Fired())
}

func TestEvaluate_ConfirmRules(t *testing.T) {
	redBreakout := model.NewCandleSeries("ABC", "5min", []model.Bar{
		{Open: 4.7, High: 4.8, Low: 4.6, Close: 4.75},
		{Open: 5.0, High: 5.0, Low: 4.8, Close: 4.9},
	})
	greenNoBreakout := model.NewCandleSeries("ABC", "5min", []model.Bar{
		{Open: 4.7, High: 5.5, Low: 4.6, Close: 4.75},
		{Open: 4.8, High: 5.0, Low: 4.8, Close: 4.9},
	})
	tests := []struct {
		rule    ConfirmRule
		confirm model.CandleSeries
		want    SkipReason
	}{
		{ConfirmGreen, greenConfirm(), SkipNone},
		{ConfirmGreen, redBreakout, SkipNoConfirmation},
		{ConfirmBreakout, redBreakout, SkipNone},
		{ConfirmBreakout, greenNoBreakout, SkipNoConfirmation},
		{ConfirmBoth, greenConfirm(), SkipNone},
		{ConfirmBoth, greenNoBreakout, SkipNoConfirmation},
		{ConfirmEither, redBreakout, SkipNone},
		{ConfirmEither, greenNoBreakout, SkipNone},
		{ConfirmGreen, model.CandleSeries{Symbol: "ABC"}, SkipInsufficientData},
		{ConfirmBreakout, model.NewCandleSeries("ABC", "5min", greenConfirm().Bars[1:]), SkipInsufficientData},
	}
	primary := model.NewCandleSeries("ABC", "1min", primaryBars(20000))
	for _, tt := range tests {
		cfg := testConfig()
		cfg.ConfirmRule = tt.rule
		d := mustEvaluator(t, cfg).Evaluate(primary, tt.confirm, evalTime)
		assert.Equal(t, tt.want, d.Reason, "rule %s", tt.rule)
	}
}

func TestEvaluate_AbsoluteFilters(t *testing.T) {
	primary := model.NewCandleSeries("ABC", "1min", primaryBars(20000))

	cfg := testConfig()
	cfg.MaxPrice = 4
	cfg.MinPrice = 1
	assert.Equal(t, SkipPriceFilter, mustEvaluator(t, cfg).Evaluate(primary, greenConfirm(), evalTime).Reason)

	cfg = testConfig()
	cfg.MinPrice = 6
	cfg.MaxPrice = 0
	assert.Equal(t, SkipPriceFilter, mustEvaluator(t, cfg).Evaluate(primary, greenConfirm(), evalTime).Reason)

	cfg = testConfig()
	cfg.MinVolume = 50000
	assert.Equal(t, SkipVolumeFilter, mustEvaluator(t, cfg).Evaluate(primary, greenConfirm(), evalTime).Reason)
}

func TestEvaluate_MalformedInputIsNoSignal(t *testing.T) {
	bars := primaryBars(20000)
	bars[5].Close = math.NaN()
	d := mustEvaluator(t, testConfig()).Evaluate(model.NewCandleSeries("ABC", "1min", bars), greenConfirm(), evalTime)
	assert.False(t, d.Fired())
	assert.Equal(t, SkipMalformed, d.Reason)

	d = mustEvaluator(t, testConfig()).Evaluate(model.CandleSeries{Symbol: "ABC"}, greenConfirm(), evalTime)
	assert.Equal(t, SkipInsufficientData, d.Reason)
}

func TestEvaluate_ZonesAndAllocation(t *testing.T) {
	cfg := testConfig()
	cfg.StopLossMultiplier = 1.2
	cfg.TakeProfitMult = 2.5
	cfg.Zones = ZoneConfig{Enabled: true, EntryBand: 0.1, StopLossFar: 1.5, TakeProfitFar: 4.0, InvalidationBand: 0.2}
	cfg.AllocationEnabled = true
	cfg.Weights.Base = 67 // 77 total

	d := mustEvaluator(t, cfg).Evaluate(model.NewCandleSeries("ABC", "1min", primaryBars(20000)), greenConfirm(), evalTime)
	require.True(t, d.Fired())
	sig := d.Signal

	require.NotNil(t, sig.Zones)
	assert.Equal(t, 5.0, sig.Zones.EntryLow)
	assert.Equal(t, 5.02, sig.Zones.EntryHigh)
	assert.Equal(t, 4.7, sig.Zones.StopLossLow)
	assert.Equal(t, 4.76, sig.Zones.StopLossHigh)
	assert.Equal(t, 5.5, sig.Zones.TakeProfitLow)
	assert.Equal(t, 5.8, sig.Zones.TakeProfitHigh)
	require.NotNil(t, sig.InvalidationLevel)
	assert.Equal(t, 5.06, *sig.InvalidationLevel)
	require.NotNil(t, sig.AllocationPct)
	assert.Equal(t, 85.0, *sig.AllocationPct)
}

func TestMapAllocation_Bands(t *testing.T) {
	tests := []struct {
		confidence float64
		want       float64
	}{
		{100, 100},
		{80, 100},
		{79.9, 85},
		{75, 85},
		{74, 70},
		{0, 70},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapAllocation(DefaultAllocationBands(), tt.confidence), "confidence %.1f", tt.confidence)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	e := mustEvaluator(t, testConfig())
	primary := model.NewCandleSeries("ABC", "1min", primaryBars(20000))
	a := e.Evaluate(primary, greenConfirm(), evalTime)
	b := e.Evaluate(primary, greenConfirm(), evalTime)
	assert.Equal(t, a.Snapshot, b.Snapshot)
	assert.Equal(t, a.Signal.StopLoss, b.Signal.StopLoss)
	assert.Equal(t, a.Signal.TakeProfit, b.Signal.TakeProfit)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.ConfirmRule = "sideways"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.ATRPeriod = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MaxPrice = 0.1
	assert.Error(t, bad.Validate())
}
