package collector

import (
	"context"
	"errors"

	"AlertWatch/internal/model"
)

var (
	// ErrInsufficientData is returned when a gateway answers with no usable bars.
	ErrInsufficientData = errors.New("insufficient candle data")
	// ErrUnknownInterval is returned for interval strings a gateway cannot map.
	ErrUnknownInterval = errors.New("unknown interval")
)

// Gateway defines the interface for fetching candles from a market data API.
// Returned series are ordered oldest to newest.
type Gateway interface {
	GetCandles(ctx context.Context, symbol, interval string, count int) (model.CandleSeries, error)
	Name() string
}

// TickerSource supplies the ordered list of symbols to scan.
type TickerSource interface {
	ListTickers(ctx context.Context) ([]string, error)
	Name() string
}
