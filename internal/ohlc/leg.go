package ohlc

import (
	"fmt"
	"strings"
)

// Leg is one instrument variant of a symbol.
type Leg int

const (
	LegSpot Leg = iota
	LegCurrent
	LegNext
)

// Legs lists every leg in fetch order.
var Legs = []Leg{LegSpot, LegCurrent, LegNext}

func (l Leg) String() string {
	switch l {
	case LegSpot:
		return "Spot"
	case LegCurrent:
		return "Current"
	case LegNext:
		return "Next"
	default:
		return fmt.Sprintf("Leg(%d)", int(l))
	}
}

// IsValid reports whether l is one of the three known legs.
func (l Leg) IsValid() bool {
	return l >= LegSpot && l <= LegNext
}

// ParseLeg accepts the display names ("Spot", "Current", "Next"), case-insensitively.
func ParseLeg(s string) (Leg, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spot":
		return LegSpot, nil
	case "current":
		return LegCurrent, nil
	case "next":
		return LegNext, nil
	}
	return 0, fmt.Errorf("invalid leg: %q", s)
}

func (l Leg) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("invalid leg: %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Leg) UnmarshalText(b []byte) error {
	parsed, err := ParseLeg(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
