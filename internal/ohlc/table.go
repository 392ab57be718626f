package ohlc

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Column names, in display order.
const (
	ColOpen  = "Open"
	ColHigh  = "High"
	ColLow   = "Low"
	ColClose = "Close"
)

var Columns = []string{ColOpen, ColHigh, ColLow, ColClose}

// Bar is a single OHLC row.
type Bar struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Value returns the bar's value for a column name.
func (b Bar) Value(col string) (float64, bool) {
	switch col {
	case ColOpen:
		return b.Open, true
	case ColHigh:
		return b.High, true
	case ColLow:
		return b.Low, true
	case ColClose:
		return b.Close, true
	}
	return 0, false
}

// Table is an ordered OHLC series indexed by timestamp.
// Timestamps are strictly increasing.
type Table struct {
	bars  []Bar
	index map[int64]int
}

// NewTable sorts bars by time and rejects duplicate timestamps.
func NewTable(bars []Bar) (*Table, error) {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	index := make(map[int64]int, len(sorted))
	for i, b := range sorted {
		key := b.Time.UnixNano()
		if _, dup := index[key]; dup {
			return nil, fmt.Errorf("duplicate timestamp %s", b.Time.Format(time.RFC3339))
		}
		index[key] = i
	}
	return &Table{bars: sorted, index: index}, nil
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.bars)
}

// Bars returns a copy of the rows in time order.
func (t *Table) Bars() []Bar {
	if t == nil {
		return nil
	}
	out := make([]Bar, len(t.bars))
	copy(out, t.bars)
	return out
}

// Times returns the ordered timestamp sequence.
func (t *Table) Times() []time.Time {
	if t == nil {
		return nil
	}
	out := make([]time.Time, len(t.bars))
	for i, b := range t.bars {
		out[i] = b.Time
	}
	return out
}

// At looks up the bar stamped at ts.
func (t *Table) At(ts time.Time) (Bar, bool) {
	if t == nil {
		return Bar{}, false
	}
	i, ok := t.index[ts.UnixNano()]
	if !ok {
		return Bar{}, false
	}
	return t.bars[i], true
}

// Column extracts one column in time order.
func (t *Table) Column(col string) ([]float64, error) {
	if t == nil {
		return nil, nil
	}
	out := make([]float64, len(t.bars))
	for i, b := range t.bars {
		v, ok := b.Value(col)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		out[i] = v
	}
	return out, nil
}

func (t *Table) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	return json.Marshal(t.bars)
}

func (t *Table) UnmarshalJSON(b []byte) error {
	var bars []Bar
	if err := json.Unmarshal(b, &bars); err != nil {
		return err
	}
	parsed, err := NewTable(bars)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}
