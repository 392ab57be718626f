package dhan

import (
	"fmt"
	"math"
	"time"

	"spreadboard/internal/ohlc"
)

// ParseChart zips the parallel arrays of a chart response into a table,
// stamping each row in loc. A null anywhere in a row is an error.
func ParseChart(resp ChartResponse, loc *time.Location) (*ohlc.Table, error) {
	n := len(resp.Timestamp)
	if len(resp.Open) != n || len(resp.High) != n || len(resp.Low) != n || len(resp.Close) != n {
		return nil, fmt.Errorf("array length mismatch: timestamp=%d open=%d high=%d low=%d close=%d",
			n, len(resp.Open), len(resp.High), len(resp.Low), len(resp.Close))
	}
	if loc == nil {
		loc = time.Local
	}

	bars := make([]ohlc.Bar, 0, n)
	for i := 0; i < n; i++ {
		cells := []struct {
			name string
			v    *float64
		}{
			{"timestamp", resp.Timestamp[i]},
			{ohlc.ColOpen, resp.Open[i]},
			{ohlc.ColHigh, resp.High[i]},
			{ohlc.ColLow, resp.Low[i]},
			{ohlc.ColClose, resp.Close[i]},
		}
		for _, c := range cells {
			if c.v == nil {
				return nil, fmt.Errorf("null %s at row %d", c.name, i)
			}
		}
		sec, frac := math.Modf(*resp.Timestamp[i])
		bars = append(bars, ohlc.Bar{
			Time:  time.Unix(int64(sec), int64(frac*1e9)).In(loc),
			Open:  *resp.Open[i],
			High:  *resp.High[i],
			Low:   *resp.Low[i],
			Close: *resp.Close[i],
		})
	}
	return ohlc.NewTable(bars)
}
