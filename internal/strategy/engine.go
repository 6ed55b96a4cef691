package strategy

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"AlertWatch/internal/calculator"
	"AlertWatch/internal/model"
)

// ConfirmRule selects how the confirmation-interval series must agree.
type ConfirmRule string

const (
	ConfirmGreen    ConfirmRule = "green"    // latest close > latest open
	ConfirmBreakout ConfirmRule = "breakout" // latest close > previous high
	ConfirmBoth     ConfirmRule = "both"
	ConfirmEither   ConfirmRule = "either"
)

// SkipReason explains why no signal was produced. Empty means a signal fired.
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipMalformed        SkipReason = "malformed"
	SkipInsufficientData SkipReason = "insufficient_data"
	SkipLowConfidence    SkipReason = "low_confidence"
	SkipNoConfirmation   SkipReason = "no_confirmation"
	SkipPriceFilter      SkipReason = "price_filter"
	SkipVolumeFilter     SkipReason = "volume_filter"
)

// ZoneConfig widens entry/stop/target into ranges.
type ZoneConfig struct {
	Enabled          bool
	EntryBand        float64 // entry high = entry + EntryBand*atr
	StopLossFar      float64 // stop low = entry - StopLossFar*atr
	TakeProfitFar    float64 // target high = entry + TakeProfitFar*atr
	InvalidationBand float64 // invalidation = entry high + InvalidationBand*atr
}

// Config parameterises the evaluator. Each historical script variant is one Config.
type Config struct {
	ConfidenceThreshold float64
	Weights             calculator.ConfidenceWeights
	ConfirmRule         ConfirmRule
	MinPrice            float64
	MaxPrice            float64 // 0 disables the upper bound
	MinVolume           float64
	ATRPeriod           int
	StopLossMultiplier  float64 // k1
	TakeProfitMult      float64 // k2
	Zones               ZoneConfig
	AllocationEnabled   bool
	AllocationBands     []AllocationBand
}

// DefaultConfig returns the standard evaluator settings.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 65,
		Weights:             calculator.DefaultConfidenceWeights(),
		ConfirmRule:         ConfirmGreen,
		MinPrice:            0.5,
		MaxPrice:            50,
		MinVolume:           5000,
		ATRPeriod:           5,
		StopLossMultiplier:  1.3,
		TakeProfitMult:      2.0,
		AllocationBands:     DefaultAllocationBands(),
	}
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	switch c.ConfirmRule {
	case ConfirmGreen, ConfirmBreakout, ConfirmBoth, ConfirmEither:
	default:
		return fmt.Errorf("unknown confirm rule %q", c.ConfirmRule)
	}
	if c.ATRPeriod <= 0 {
		return fmt.Errorf("atr period must be positive")
	}
	if c.StopLossMultiplier <= 0 || c.TakeProfitMult <= 0 {
		return fmt.Errorf("risk multipliers must be positive")
	}
	if c.MaxPrice > 0 && c.MaxPrice < c.MinPrice {
		return fmt.Errorf("max price %.4f below min price %.4f", c.MaxPrice, c.MinPrice)
	}
	if c.Zones.Enabled && (c.Zones.StopLossFar < c.StopLossMultiplier || c.Zones.TakeProfitFar < c.TakeProfitMult) {
		return fmt.Errorf("zone multipliers must not be tighter than the base levels")
	}
	return nil
}

// Decision is the outcome of evaluating one ticker.
type Decision struct {
	Signal   *model.Signal
	Reason   SkipReason
	Snapshot model.IndicatorSnapshot
}

// Fired reports whether a signal was produced.
func (d Decision) Fired() bool { return d.Signal != nil }

// Evaluator turns candle series into signals. It holds no mutable state.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an Evaluator after validating cfg.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.AllocationBands = append([]AllocationBand(nil), cfg.AllocationBands...)
	return &Evaluator{cfg: cfg}, nil
}

// Config returns the evaluator settings.
func (e *Evaluator) Config() Config { return e.cfg }

// Evaluate decides emit-or-skip for one ticker. Absence of a signal is not an error.
func (e *Evaluator) Evaluate(primary, confirm model.CandleSeries, now time.Time) Decision {
	if err := primary.Validate(); err != nil {
		if err == model.ErrEmptySeries {
			return Decision{Reason: SkipInsufficientData}
		}
		return Decision{Reason: SkipMalformed}
	}

	snap := calculator.Snapshot(primary, e.cfg.ATRPeriod, e.cfg.Weights)
	if snap.ConfidenceScore < e.cfg.ConfidenceThreshold {
		return Decision{Reason: SkipLowConfidence, Snapshot: snap}
	}

	if reason := e.checkConfirmation(confirm); reason != SkipNone {
		return Decision{Reason: reason, Snapshot: snap}
	}

	latest, _ := primary.Latest()
	if latest.Close < e.cfg.MinPrice || (e.cfg.MaxPrice > 0 && latest.Close > e.cfg.MaxPrice) {
		return Decision{Reason: SkipPriceFilter, Snapshot: snap}
	}
	if latest.Volume < e.cfg.MinVolume {
		return Decision{Reason: SkipVolumeFilter, Snapshot: snap}
	}

	sig := e.buildSignal(primary.Symbol, latest.Close, snap, now)
	sig.Interval = primary.Interval
	sig.ConfirmInterval = confirm.Interval
	return Decision{Signal: sig, Snapshot: snap}
}

func (e *Evaluator) checkConfirmation(confirm model.CandleSeries) SkipReason {
	if err := confirm.Validate(); err != nil {
		if err == model.ErrEmptySeries {
			return SkipInsufficientData
		}
		return SkipMalformed
	}
	green := calculator.IsBullishClose(confirm)
	needsPrev := e.cfg.ConfirmRule != ConfirmGreen
	if needsPrev && confirm.Len() < 2 {
		return SkipInsufficientData
	}
	breakout := calculator.IsBreakout(confirm)

	var ok bool
	switch e.cfg.ConfirmRule {
	case ConfirmGreen:
		ok = green
	case ConfirmBreakout:
		ok = breakout
	case ConfirmBoth:
		ok = green && breakout
	case ConfirmEither:
		ok = green || breakout
	}
	if !ok {
		return SkipNoConfirmation
	}
	return SkipNone
}

func (e *Evaluator) buildSignal(symbol string, entry float64, snap model.IndicatorSnapshot, now time.Time) *model.Signal {
	atr := snap.ATR
	sig := &model.Signal{
		ID:         uuid.NewString(),
		Ticker:     symbol,
		Entry:      RoundPrice(entry),
		StopLoss:   RoundPrice(entry - e.cfg.StopLossMultiplier*atr),
		TakeProfit: RoundPrice(entry + e.cfg.TakeProfitMult*atr),
		Confidence: snap.ConfidenceScore,
		ATR:        atr,
		Timestamp:  now,
	}

	if z := e.cfg.Zones; z.Enabled {
		entryHigh := entry + z.EntryBand*atr
		sig.Zones = &model.Zones{
			EntryLow:       RoundPrice(entry),
			EntryHigh:      RoundPrice(entryHigh),
			StopLossLow:    RoundPrice(entry - z.StopLossFar*atr),
			StopLossHigh:   RoundPrice(entry - e.cfg.StopLossMultiplier*atr),
			TakeProfitLow:  RoundPrice(entry + e.cfg.TakeProfitMult*atr),
			TakeProfitHigh: RoundPrice(entry + z.TakeProfitFar*atr),
		}
		inv := RoundPrice(entryHigh + z.InvalidationBand*atr)
		sig.InvalidationLevel = &inv
	}

	if e.cfg.AllocationEnabled {
		pct := mapAllocation(e.cfg.AllocationBands, snap.ConfidenceScore)
		sig.AllocationPct = &pct
	}
	return sig
}
