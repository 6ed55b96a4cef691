package strategy

import (
	"math"

	"github.com/shopspring/decimal"
)

// PricePrecision returns the number of decimals used to display a price.
// Below 1 uses 4 places, below 10 uses 3, everything else 2.
func PricePrecision(v float64) int32 {
	switch {
	case v < 1:
		return 4
	case v < 10:
		return 3
	default:
		return 2
	}
}

// roundTiered rounds v half away from zero and returns the precision of the
// tier the rounded value lands in. Rounding can carry a value across a tier
// edge (0.99996 becomes 1.0000), so the result is re-rounded at the new tier.
func roundTiered(v float64) (decimal.Decimal, int32) {
	prec := PricePrecision(v)
	d := decimal.NewFromFloat(v).Round(prec)
	f, _ := d.Float64()
	if p := PricePrecision(f); p != prec {
		prec = p
		d = d.Round(prec)
	}
	return d, prec
}

// RoundPrice rounds v to its tiered display precision, half away from zero.
func RoundPrice(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	d, _ := roundTiered(v)
	f, _ := d.Float64()
	return f
}

// FormatPrice renders v with its tiered display precision, e.g. "0.4321", "5.679", "12.35".
// FormatPrice(v) and FormatPrice(RoundPrice(v)) always agree.
func FormatPrice(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	d, prec := roundTiered(v)
	return d.StringFixed(prec)
}

// AllocationBand maps a minimum confidence to a position size in percent.
type AllocationBand struct {
	MinConfidence float64
	Percent       float64
}

// DefaultAllocationBands returns a fresh copy of the standard bands. They are
// checked top-down; the last band is the floor.
func DefaultAllocationBands() []AllocationBand {
	return []AllocationBand{
		{MinConfidence: 80, Percent: 100},
		{MinConfidence: 75, Percent: 85},
		{MinConfidence: 0, Percent: 70},
	}
}

// mapAllocation maps a confidence score to an allocation percentage.
func mapAllocation(bands []AllocationBand, confidence float64) float64 {
	for _, b := range bands {
		if confidence >= b.MinConfidence {
			return b.Percent
		}
	}
	if len(bands) > 0 {
		return bands[len(bands)-1].Percent
	}
	return 0
}
