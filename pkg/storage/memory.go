package storage

import (
	"context"
	"sync"
	"time"

	"spreadboard/internal/ohlc"
)

type MemoryStore struct {
	mu     sync.Mutex
	series map[SeriesKey]map[int64]ohlc.Bar
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		series: make(map[SeriesKey]map[int64]ohlc.Bar),
	}
}

func (m *MemoryStore) SaveBars(_ context.Context, key SeriesKey, table *ohlc.Table) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bars, ok := m.series[key]
	if !ok {
		bars = make(map[int64]ohlc.Bar)
		m.series[key] = bars
	}
	written := 0
	for _, b := range table.Bars() {
		ts := b.Time.UnixNano()
		if _, exists := bars[ts]; exists {
			continue
		}
		bars[ts] = b
		written++
	}
	return written, nil
}

func (m *MemoryStore) LoadBars(_ context.Context, key SeriesKey, from, to time.Time) (*ohlc.Table, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	// Copy to avoid race
	out := make([]ohlc.Bar, 0, len(m.series[key]))
	for _, b := range m.series[key] {
		if inRange(b.Time, from, to) {
			out = append(out, b)
		}
	}
	m.mu.Unlock()
	return ohlc.NewTable(out)
}

func (m *MemoryStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for key, bars := range m.series {
		for ts, b := range bars {
			if b.Time.Before(before) {
				delete(bars, ts)
				deleted++
			}
		}
		if len(bars) == 0 {
			delete(m.series, key)
		}
	}
	return deleted, nil
}

func (m *MemoryStore) Close() error { return nil }

// Noop discards everything; used when storage.driver is "none".
type Noop struct{}

func (Noop) SaveBars(context.Context, SeriesKey, *ohlc.Table) (int, error) { return 0, nil }

func (Noop) LoadBars(context.Context, SeriesKey, time.Time, time.Time) (*ohlc.Table, error) {
	return ohlc.NewTable(nil)
}

func (Noop) Close() error { return nil }
