package calculator

import (
	"math"

	"AlertWatch/internal/model"
)

// MaxConfidence caps the composite score; it is displayed as a percentage.
const MaxConfidence = 100.0

// ConfidenceWeights are the points awarded per satisfied condition.
type ConfidenceWeights struct {
	Base         float64
	Confirmation float64
	VolumeSpike  float64
	HigherLow    float64
	BullishClose float64
	Momentum     float64
	// MomentumPct is the close-to-close change (percent) that earns Momentum.
	MomentumPct float64
}

// DefaultConfidenceWeights returns the standard scoring weights.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		Confirmation: 30,
		VolumeSpike:  25,
		HigherLow:    10,
		BullishClose: 10,
		Momentum:     10,
		MomentumPct:  0.3,
	}
}

// ConfidenceScore adds the weight of each condition the series satisfies.
// The result is clamped to [0, MaxConfidence].
func ConfidenceScore(series model.CandleSeries, w ConfidenceWeights) float64 {
	if series.Len() == 0 {
		return 0
	}
	score := w.Base
	if IsConfirmationCandle(series) {
		score += w.Confirmation
	}
	if IsVolumeSpike(series) {
		score += w.VolumeSpike
	}
	if IsHigherLow(series) {
		score += w.HigherLow
	}
	if IsBullishClose(series) {
		score += w.BullishClose
	}
	if pct, ok := PercentChange(series); ok && pct > w.MomentumPct {
		score += w.Momentum
	}
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(score, MaxConfidence))
}

// Snapshot computes every indicator for the series in one pass.
func Snapshot(series model.CandleSeries, atrPeriod int, w ConfidenceWeights) model.IndicatorSnapshot {
	return model.IndicatorSnapshot{
		ATR:                  AverageTrueRange(series, atrPeriod),
		IsConfirmationCandle: IsConfirmationCandle(series),
		IsVolumeSpike:        IsVolumeSpike(series),
		ConfidenceScore:      ConfidenceScore(series, w),
	}
}
