// Package diff computes difference series between two legs of a symbol.
package diff

import (
	"errors"
	"fmt"
	"time"

	"spreadboard/internal/ohlc"

	"github.com/shopspring/decimal"
)

var (
	ErrIncompleteLegs = errors.New("difference needs spot, current and next tables")
	ErrUnknownPair    = errors.New("unknown difference pair")

	hundred = decimal.NewFromInt(100)
)

// ZeroBaselineError is returned when a percentage would divide by zero.
type ZeroBaselineError struct {
	Time   time.Time
	Column string
	Leg    ohlc.Leg
}

func (e *ZeroBaselineError) Error() string {
	return fmt.Sprintf("zero %s baseline in %s at %s", e.Leg, e.Column, e.Time.Format("2006-01-02 15:04:05"))
}

// Legs holds the three fetched leg tables of one block.
type Legs struct {
	Spot    *ohlc.Table
	Current *ohlc.Table
	Next    *ohlc.Table
}

func (l Legs) complete() bool {
	return l.Spot != nil && l.Current != nil && l.Next != nil
}

func (l Legs) get(leg ohlc.Leg) *ohlc.Table {
	switch leg {
	case ohlc.LegSpot:
		return l.Spot
	case ohlc.LegCurrent:
		return l.Current
	case ohlc.LegNext:
		return l.Next
	}
	return nil
}

// Result carries both renderings of one difference. Percent is nil when the
// baseline leg has a zero value; PercentError then says where.
type Result struct {
	Pair         Pair        `json:"pair"`
	Mode         TradeMode   `json:"trade_mode"`
	Baseline     ohlc.Leg    `json:"baseline"`
	Raw          *ohlc.Table `json:"raw"`
	Percent      *ohlc.Table `json:"percent"`
	PercentError string      `json:"percent_error,omitempty"`
}

// operands returns (minuend, subtrahend) for the pair under the trade mode.
func operands(pair Pair, mode TradeMode) (ohlc.Leg, ohlc.Leg, error) {
	switch pair {
	case SpotCurrent:
		return ohlc.LegCurrent, ohlc.LegSpot, nil
	case SpotNext:
		return ohlc.LegNext, ohlc.LegSpot, nil
	case CurrentNext:
		if mode == BuyNextSellCurrent {
			return ohlc.LegCurrent, ohlc.LegNext, nil
		}
		return ohlc.LegNext, ohlc.LegCurrent, nil
	}
	return 0, 0, fmt.Errorf("%w: %d", ErrUnknownPair, int(pair))
}

// Compute returns the element-wise difference for pair, optionally as a
// percentage of the pair's baseline leg.
func Compute(legs Legs, pair Pair, mode TradeMode, asPercent bool) (*ohlc.Table, error) {
	if !legs.complete() {
		return nil, ErrIncompleteLegs
	}
	minLeg, subLeg, err := operands(pair, mode)
	if err != nil {
		return nil, err
	}
	minuend, subtrahend := legs.get(minLeg), legs.get(subLeg)
	baseline := legs.get(pair.Baseline())

	times, err := ohlc.Align(minuend, subtrahend)
	if err != nil {
		return nil, err
	}

	out := make([]ohlc.Bar, 0, len(times))
	for _, ts := range times {
		a, _ := minuend.At(ts)
		b, _ := subtrahend.At(ts)
		base, _ := baseline.At(ts)

		row := ohlc.Bar{Time: ts}
		for _, col := range ohlc.Columns {
			av, _ := a.Value(col)
			bv, _ := b.Value(col)
			raw := decimal.NewFromFloat(av).Sub(decimal.NewFromFloat(bv))
			if asPercent {
				bl, _ := base.Value(col)
				if bl == 0 {
					return nil, &ZeroBaselineError{Time: ts, Column: col, Leg: pair.Baseline()}
				}
				raw = raw.Mul(hundred).Div(decimal.NewFromFloat(bl))
			}
			setColumn(&row, col, raw.InexactFloat64())
		}
		out = append(out, row)
	}
	return ohlc.NewTable(out)
}

// ComputeBoth returns the raw and percent differences together. A zero
// baseline only drops the percent table; the raw one is always kept.
func ComputeBoth(legs Legs, pair Pair, mode TradeMode) (*Result, error) {
	raw, err := Compute(legs, pair, mode, false)
	if err != nil {
		return nil, err
	}
	res := &Result{Pair: pair, Mode: mode, Baseline: pair.Baseline(), Raw: raw}

	pct, err := Compute(legs, pair, mode, true)
	var zeroErr *ZeroBaselineError
	switch {
	case errors.As(err, &zeroErr):
		res.PercentError = zeroErr.Error()
	case err != nil:
		return nil, err
	default:
		res.Percent = pct
	}
	return res, nil
}

func setColumn(b *ohlc.Bar, col string, v float64) {
	switch col {
	case ohlc.ColOpen:
		b.Open = v
	case ohlc.ColHigh:
		b.High = v
	case ohlc.ColLow:
		b.Low = v
	case ohlc.ColClose:
		b.Close = v
	}
}
