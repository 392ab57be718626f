// Package scrip resolves symbols and legs to broker security identifiers.
package scrip

import (
	"errors"
	"fmt"
	"sort"

	"spreadboard/internal/ohlc"
	"spreadboard/pkg/dhan"
)

var (
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrLegUnavailable = errors.New("leg not listed for symbol")
	ErrInvalidLeg     = errors.New("invalid leg")
)

// ResolutionError is returned when a (symbol, leg) cannot be resolved.
type ResolutionError struct {
	Symbol string
	Leg    ohlc.Leg
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s/%s: %v", e.Symbol, e.Leg, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Row is one reference-table record. A zero id means the leg is not listed.
type Row struct {
	Symbol  string
	Spot    int64
	Current int64
	Next    int64
}

func (r Row) id(leg ohlc.Leg) int64 {
	switch leg {
	case ohlc.LegSpot:
		return r.Spot
	case ohlc.LegCurrent:
		return r.Current
	case ohlc.LegNext:
		return r.Next
	}
	return 0
}

// Instrument is everything a fetch needs to identify one leg.
type Instrument struct {
	Symbol          string   `json:"symbol"`
	Leg             ohlc.Leg `json:"leg"`
	SecurityID      int64    `json:"security_id"`
	ExchangeSegment string   `json:"exchange_segment"`
	InstrumentType  string   `json:"instrument_type"`
}

// Master is the immutable symbol reference table.
type Master struct {
	rows    map[string]Row
	symbols []string
}

// NewMaster builds a master from rows; the first row for a symbol wins.
func NewMaster(rows []Row) *Master {
	m := &Master{rows: make(map[string]Row, len(rows))}
	for _, r := range rows {
		if _, ok := m.rows[r.Symbol]; ok {
			continue
		}
		m.rows[r.Symbol] = r
		m.symbols = append(m.symbols, r.Symbol)
	}
	sort.Strings(m.symbols)
	return m
}

// Symbols returns the sorted symbol list.
func (m *Master) Symbols() []string {
	out := make([]string, len(m.symbols))
	copy(out, m.symbols)
	return out
}

func (m *Master) Len() int { return len(m.symbols) }

// Resolve maps a symbol and leg to its security id and segment.
func (m *Master) Resolve(symbol string, leg ohlc.Leg) (Instrument, error) {
	if !leg.IsValid() {
		return Instrument{}, &ResolutionError{Symbol: symbol, Leg: leg, Err: ErrInvalidLeg}
	}
	row, ok := m.rows[symbol]
	if !ok {
		return Instrument{}, &ResolutionError{Symbol: symbol, Leg: leg, Err: ErrSymbolNotFound}
	}
	id := row.id(leg)
	if id == 0 {
		return Instrument{}, &ResolutionError{Symbol: symbol, Leg: leg, Err: ErrLegUnavailable}
	}
	seg, err := dhan.SegmentFor(leg)
	if err != nil {
		return Instrument{}, &ResolutionError{Symbol: symbol, Leg: leg, Err: err}
	}
	return Instrument{
		Symbol:          symbol,
		Leg:             leg,
		SecurityID:      id,
		ExchangeSegment: seg.Exchange,
		InstrumentType:  seg.Instrument,
	}, nil
}
