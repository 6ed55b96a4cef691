package model

import "time"

// IndicatorSnapshot is the derived view of one candle series.
type IndicatorSnapshot struct {
	ATR                  float64
	IsConfirmationCandle bool
	IsVolumeSpike        bool
	ConfidenceScore      float64
}

// Zones widens the single price levels into ranges.
type Zones struct {
	EntryLow       float64 `json:"entry_low"`
	EntryHigh      float64 `json:"entry_high"`
	StopLossLow    float64 `json:"stop_loss_low"`
	StopLossHigh   float64 `json:"stop_loss_high"`
	TakeProfitLow  float64 `json:"take_profit_low"`
	TakeProfitHigh float64 `json:"take_profit_high"`
}

// Signal is the final output of the strategy engine. All prices are already
// rounded to display precision.
type Signal struct {
	ID              string    `json:"id"`
	Ticker          string    `json:"ticker"`
	Entry           float64   `json:"entry"`
	StopLoss        float64   `json:"stop_loss"`
	TakeProfit      float64   `json:"take_profit"`
	Confidence      float64   `json:"confidence"`
	ATR             float64   `json:"atr"`
	Interval        string    `json:"interval"`
	ConfirmInterval string    `json:"confirm_interval"`
	Timestamp       time.Time `json:"timestamp"`

	// Optional extensions, nil when not configured.
	Zones             *Zones   `json:"zones,omitempty"`
	InvalidationLevel *float64 `json:"invalidation_level,omitempty"`
	AllocationPct     *float64 `json:"allocation_pct,omitempty"`

	// Test marks synthetic signals sent through the pipeline for checks.
	Test bool `json:"test,omitempty"`
}
