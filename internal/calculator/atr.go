package calculator

import (
	"math"

	"github.com/montanaflynn/stats"

	"AlertWatch/internal/model"
)

// ATRFallback is returned when the series is too short to cover the ATR window.
// It is a placeholder volatility, not a measurement.
const ATRFallback = 0.05

// TrueRanges returns one true range per bar after the first.
func TrueRanges(bars []model.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		cur, prevClose := bars[i], bars[i-1].Close
		tr := math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prevClose), math.Abs(cur.Low-prevClose)))
		trs = append(trs, tr)
	}
	return trs
}

// HasATRWindow reports whether the series holds at least period true ranges.
func HasATRWindow(series model.CandleSeries, period int) bool {
	return period > 0 && series.Len()-1 >= period
}

// AverageTrueRange is the mean of the last period true ranges.
// Returns ATRFallback when fewer than period true ranges exist. Never NaN.
func AverageTrueRange(series model.CandleSeries, period int) float64 {
	if !HasATRWindow(series, period) {
		return ATRFallback
	}
	trs := TrueRanges(series.Bars)
	atr, err := stats.Mean(trs[len(trs)-period:])
	if err != nil || math.IsNaN(atr) || math.IsInf(atr, 0) {
		return ATRFallback
	}
	return atr
}
