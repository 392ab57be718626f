// Package storage archives fetched OHLC bars. It is write-behind only:
// nothing here is consulted before a broker fetch.
package storage

import (
	"context"
	"errors"
	"time"

	"spreadboard/internal/ohlc"
)

var ErrInvalidKey = errors.New("invalid series key")

// SeriesKey identifies one archived series.
type SeriesKey struct {
	Symbol   string   `json:"symbol"`
	Leg      ohlc.Leg `json:"leg"`
	Interval string   `json:"interval"` // broker interval value, e.g. "60"
}

func (k SeriesKey) Validate() error {
	if k.Symbol == "" || k.Interval == "" || !k.Leg.IsValid() {
		return ErrInvalidKey
	}
	return nil
}

// Store is implemented by the gorm store, the memory store and Noop.
type Store interface {
	// SaveBars upserts bars; existing timestamps are left untouched.
	// It returns how many rows were newly written.
	SaveBars(ctx context.Context, key SeriesKey, table *ohlc.Table) (int, error)
	// LoadBars returns bars with from <= time < to. Zero bounds are open.
	LoadBars(ctx context.Context, key SeriesKey, from, to time.Time) (*ohlc.Table, error)
	Close() error
}

// Pruner is implemented by stores that support archive retention.
type Pruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// HealthChecker is implemented by stores backed by a database connection.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Prune deletes bars older than before. Stores without retention report 0.
func Prune(ctx context.Context, store Store, before time.Time) (int64, error) {
	p, ok := store.(Pruner)
	if !ok {
		return 0, nil
	}
	return p.DeleteBefore(ctx, before)
}

// Healthy reports whether store answers. Stores without a check always do.
func Healthy(ctx context.Context, store Store) bool {
	h, ok := store.(HealthChecker)
	if !ok {
		return true
	}
	return h.Healthy(ctx)
}

func inRange(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && !ts.Before(to) {
		return false
	}
	return true
}
