// Package cooldown suppresses repeat alerts for the same ticker within a time window.
package cooldown

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Store decides whether an alert for symbol may be sent now. Allow reserves
// the slot when it returns true; Release gives it back when the alert was
// never delivered.
type Store interface {
	Allow(ctx context.Context, symbol string) (bool, error)
	Release(ctx context.Context, symbol string) error
	Name() string
}

// Noop allows every alert.
type Noop struct{}

func (Noop) Allow(context.Context, string) (bool, error) { return true, nil }
func (Noop) Release(context.Context, string) error       { return nil }
func (Noop) Name() string                                { return "none" }

// Memory keeps reservations in process.
type Memory struct {
	TTL time.Duration
	Now func() time.Time

	mu    sync.Mutex
	until map[string]time.Time
}

// NewMemory creates an in-process store.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{TTL: ttl, Now: time.Now, until: make(map[string]time.Time)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Allow(_ context.Context, symbol string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	key := strings.ToUpper(symbol)
	if t, ok := m.until[key]; ok && now.Before(t) {
		return false, nil
	}
	m.until[key] = now.Add(m.TTL)

	// Drop expired entries so the map stays bounded by the watchlist.
	for k, t := range m.until {
		if !now.Before(t) {
			delete(m.until, k)
		}
	}
	return true, nil
}

func (m *Memory) Release(_ context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.until, strings.ToUpper(symbol))
	return nil
}
