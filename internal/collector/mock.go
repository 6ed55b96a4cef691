package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AlertWatch/internal/model"
)

// MockGateway returns controllable data for development and testing.
// Series and Errors are keyed by "SYMBOL|interval"; anything else gets
// generated flat bars around Price.
type MockGateway struct {
	Price  float64
	Series map[string][]model.Bar
	Errors map[string]error

	mu    sync.Mutex
	calls int
}

// NewMockGateway creates an empty mock gateway.
func NewMockGateway(price float64) *MockGateway {
	return &MockGateway{
		Price:  price,
		Series: make(map[string][]model.Bar),
		Errors: make(map[string]error),
	}
}

func mockKey(symbol, interval string) string { return symbol + "|" + interval }

// Set registers bars for symbol at interval.
func (m *MockGateway) Set(symbol, interval string, bars []model.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Series[mockKey(symbol, interval)] = bars
}

// Fail makes every call for symbol at interval return err.
func (m *MockGateway) Fail(symbol, interval string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[mockKey(symbol, interval)] = err
}

// Calls returns how many GetCandles calls were served.
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) GetCandles(ctx context.Context, symbol, interval string, count int) (model.CandleSeries, error) {
	m.mu.Lock()
	m.calls++
	err := m.Errors[mockKey(symbol, interval)]
	bars, ok := m.Series[mockKey(symbol, interval)]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return model.CandleSeries{}, err
	}
	if err != nil {
		return model.CandleSeries{}, err
	}
	if !ok {
		if m.Price <= 0 {
			return model.CandleSeries{}, fmt.Errorf("mock %s %s: %w", symbol, interval, ErrInsufficientData)
		}
		bars = generateMockBars(m.Price, count)
	}
	if count > 0 && len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return model.NewCandleSeries(symbol, interval, bars), nil
}

func generateMockBars(basePrice float64, count int) []model.Bar {
	bars := make([]model.Bar, count)
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Bar{
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Open:     p * 0.999,
			High:     p * 1.005,
			Low:      p * 0.995,
			Close:    p,
			Volume:   100000,
		}
	}
	return bars
}
