package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Bar represents a single OHLCV candlestick.
type Bar struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// ErrEmptySeries is returned when a series holds no bars.
var ErrEmptySeries = errors.New("empty candle series")

// Malformed reports whether the bar cannot be used for computation.
// Violations of high >= low and friends are tolerated; only non-finite,
// negative or zero-close values are rejected.
func (b Bar) Malformed() bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return true
		}
	}
	return b.Close <= 0
}

// CandleSeries holds bars for one (symbol, interval) pair, oldest first.
type CandleSeries struct {
	Symbol   string
	Interval string
	Bars     []Bar
}

// NewCandleSeries copies bars so later mutation by the caller does not leak in.
func NewCandleSeries(symbol, interval string, bars []Bar) CandleSeries {
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	return CandleSeries{Symbol: symbol, Interval: interval, Bars: cp}
}

// Len returns the number of bars.
func (s CandleSeries) Len() int { return len(s.Bars) }

// Latest returns the newest bar. ok is false for an empty series.
func (s CandleSeries) Latest() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Previous returns the bar before the newest one.
func (s CandleSeries) Previous() (Bar, bool) {
	if len(s.Bars) < 2 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-2], true
}

// Validate rejects empty series and series containing malformed bars.
func (s CandleSeries) Validate() error {
	if len(s.Bars) == 0 {
		return ErrEmptySeries
	}
	for i, b := range s.Bars {
		if b.Malformed() {
			return fmt.Errorf("%s %s: malformed bar at index %d", s.Symbol, s.Interval, i)
		}
	}
	return nil
}
