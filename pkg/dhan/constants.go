package dhan

import (
	"fmt"
	"strings"

	"spreadboard/internal/ohlc"
)

// Chart endpoints, relative to the REST base URL.
const (
	HistoricalPath = "/v2/charts/historical"
	IntradayPath   = "/v2/charts/intraday"
)

// Exchange segments and instrument types used by the legs.
const (
	SegmentNSEEquity = "NSE_EQ"
	SegmentNSEFNO    = "NSE_FNO"

	InstrumentEquity = "EQUITY"
	InstrumentFutStk = "FUTSTK"
)

// Segment is the (exchange segment, instrument type) pair a leg trades on.
type Segment struct {
	Exchange   string
	Instrument string
}

var legSegments = map[ohlc.Leg]Segment{
	ohlc.LegSpot:    {Exchange: SegmentNSEEquity, Instrument: InstrumentEquity},
	ohlc.LegCurrent: {Exchange: SegmentNSEFNO, Instrument: InstrumentFutStk},
	ohlc.LegNext:    {Exchange: SegmentNSEFNO, Instrument: InstrumentFutStk},
}

// SegmentFor returns the fixed segment of a leg.
func SegmentFor(leg ohlc.Leg) (Segment, error) {
	seg, ok := legSegments[leg]
	if !ok {
		return Segment{}, fmt.Errorf("no segment for leg %s", leg)
	}
	return seg, nil
}

// IntervalMeta describes one intraday candle granularity.
type IntervalMeta struct {
	Label    string
	APIValue string
	Minutes  int
}

// DefaultInterval is used for unrecognized labels.
var DefaultInterval = IntervalMeta{Label: "60 min", APIValue: "60", Minutes: 60}

// Intervals lists the intraday granularities in display order.
var Intervals = []IntervalMeta{
	{Label: "1 min", APIValue: "1", Minutes: 1},
	{Label: "5 min", APIValue: "5", Minutes: 5},
	{Label: "15 min", APIValue: "15", Minutes: 15},
	{Label: "30 min", APIValue: "30", Minutes: 30},
	DefaultInterval,
}

// ParseInterval accepts a display label ("15 min") or a bare API code ("15").
func ParseInterval(s string) (IntervalMeta, error) {
	s = strings.TrimSpace(s)
	for _, iv := range Intervals {
		if strings.EqualFold(iv.Label, s) || iv.APIValue == s {
			return iv, nil
		}
	}
	return IntervalMeta{}, fmt.Errorf("invalid interval: %s", s)
}

// IntradayCode maps a label to its API code, falling back to 60 minutes.
func IntradayCode(label string) string {
	iv, err := ParseInterval(label)
	if err != nil {
		return DefaultInterval.APIValue
	}
	return iv.APIValue
}
