package ohlc

import (
	"fmt"
	"time"
)

// AlignmentError reports two tables that do not share a timestamp sequence.
type AlignmentError struct {
	LeftLen  int
	RightLen int
	// Missing is the first timestamp present in one table but not the other.
	Missing time.Time
	// InLeft is true when Missing exists in the left table only.
	InLeft bool
}

func (e *AlignmentError) Error() string {
	side := "right"
	if !e.InLeft {
		side = "left"
	}
	return fmt.Sprintf("tables not aligned (%d vs %d rows): %s missing from %s",
		e.LeftLen, e.RightLen, e.Missing.Format("2006-01-02 15:04:05"), side)
}

// Align checks that a and b carry the identical timestamp set and returns it in order.
func Align(a, b *Table) ([]time.Time, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("align: nil table")
	}
	for _, bar := range a.bars {
		if _, ok := b.index[bar.Time.UnixNano()]; !ok {
			return nil, &AlignmentError{LeftLen: a.Len(), RightLen: b.Len(), Missing: bar.Time, InLeft: true}
		}
	}
	for _, bar := range b.bars {
		if _, ok := a.index[bar.Time.UnixNano()]; !ok {
			return nil, &AlignmentError{LeftLen: a.Len(), RightLen: b.Len(), Missing: bar.Time, InLeft: false}
		}
	}
	return a.Times(), nil
}
