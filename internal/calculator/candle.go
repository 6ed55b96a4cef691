package calculator

import (
	"math"

	"github.com/montanaflynn/stats"

	"AlertWatch/internal/model"
)

const (
	// VolumeLookback is the number of bars before the latest one that form the volume baseline.
	VolumeLookback = 5
	// VolumeSpikeRatio is the multiple of the baseline the latest volume must exceed.
	VolumeSpikeRatio = 1.3
)

// IsConfirmationCandle is true when the latest bar closes above its own open
// and above the previous bar's high. Requires 2 bars.
func IsConfirmationCandle(series model.CandleSeries) bool {
	latest, ok := series.Latest()
	if !ok {
		return false
	}
	prev, ok := series.Previous()
	if !ok {
		return false
	}
	return latest.Close > latest.Open && latest.Close > prev.High
}

// IsBullishClose is true when the latest bar closes above its open.
func IsBullishClose(series model.CandleSeries) bool {
	latest, ok := series.Latest()
	return ok && latest.Close > latest.Open
}

// IsBreakout is true when the latest bar closes above the previous bar's high.
func IsBreakout(series model.CandleSeries) bool {
	latest, ok := series.Latest()
	if !ok {
		return false
	}
	prev, ok := series.Previous()
	return ok && latest.Close > prev.High
}

// IsHigherLow is true when the latest low is above the previous low.
func IsHigherLow(series model.CandleSeries) bool {
	latest, ok := series.Latest()
	if !ok {
		return false
	}
	prev, ok := series.Previous()
	return ok && latest.Low > prev.Low
}

// PercentChange returns the close-to-close change of the latest bar in percent.
// ok is false when there is no usable previous close.
func PercentChange(series model.CandleSeries) (pct float64, ok bool) {
	latest, ok := series.Latest()
	if !ok {
		return 0, false
	}
	prev, ok := series.Previous()
	if !ok || prev.Close <= 0 {
		return 0, false
	}
	return (latest.Close - prev.Close) / prev.Close * 100, true
}

// IsVolumeSpike compares the latest volume with the mean of the VolumeLookback
// bars before it. An undefined or zero baseline is never a spike.
func IsVolumeSpike(series model.CandleSeries) bool {
	n := series.Len()
	if n < VolumeLookback+1 {
		return false
	}
	prior := make([]float64, 0, VolumeLookback)
	for _, b := range series.Bars[n-1-VolumeLookback : n-1] {
		prior = append(prior, b.Volume)
	}
	avg, err := stats.Mean(prior)
	if err != nil || math.IsNaN(avg) || avg <= 0 {
		return false
	}
	return series.Bars[n-1].Volume > VolumeSpikeRatio*avg
}
