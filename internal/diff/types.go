package diff

import (
	"fmt"
	"strings"

	"spreadboard/internal/ohlc"
)

// Pair selects which two legs are differenced.
type Pair int

const (
	SpotCurrent Pair = iota
	SpotNext
	CurrentNext
)

var pairLabels = map[Pair]string{
	SpotCurrent: "Spot & Current",
	SpotNext:    "Spot & Next",
	CurrentNext: "Current & Next",
}

// Pairs lists the selectors in display order.
var Pairs = []Pair{SpotCurrent, SpotNext, CurrentNext}

func (p Pair) String() string {
	if s, ok := pairLabels[p]; ok {
		return s
	}
	return fmt.Sprintf("Pair(%d)", int(p))
}

// Baseline is the first-named leg of the pair; percentages are relative to it.
func (p Pair) Baseline() ohlc.Leg {
	if p == CurrentNext {
		return ohlc.LegCurrent
	}
	return ohlc.LegSpot
}

func ParsePair(s string) (Pair, error) {
	norm := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	for p, label := range pairLabels {
		if strings.ToLower(label) == norm {
			return p, nil
		}
	}
	return 0, fmt.Errorf("invalid difference pair: %q", s)
}

func (p Pair) MarshalText() ([]byte, error) {
	s, ok := pairLabels[p]
	if !ok {
		return nil, fmt.Errorf("invalid difference pair: %d", int(p))
	}
	return []byte(s), nil
}

func (p *Pair) UnmarshalText(b []byte) error {
	parsed, err := ParsePair(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// TradeMode is the assumed position; it sets the sign of a Current/Next difference.
type TradeMode int

const (
	BuyCurrentSellNext TradeMode = iota
	BuyNextSellCurrent
)

var modeLabels = map[TradeMode]string{
	BuyCurrentSellNext: "B(Current)/Sell(Next)",
	BuyNextSellCurrent: "B(Next)/Sell(Current)",
}

// TradeModes lists the modes in display order.
var TradeModes = []TradeMode{BuyCurrentSellNext, BuyNextSellCurrent}

func (m TradeMode) String() string {
	if s, ok := modeLabels[m]; ok {
		return s
	}
	return fmt.Sprintf("TradeMode(%d)", int(m))
}

// modeAliases accepts the spelled-out form, compared with spaces removed.
var modeAliases = map[string]TradeMode{
	"buycurrent/sellnext": BuyCurrentSellNext,
	"buynext/sellcurrent": BuyNextSellCurrent,
}

func ParseTradeMode(s string) (TradeMode, error) {
	norm := strings.ReplaceAll(strings.ToLower(s), " ", "")
	for m, label := range modeLabels {
		if strings.ToLower(label) == norm {
			return m, nil
		}
	}
	if m, ok := modeAliases[norm]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("invalid trade mode: %q", s)
}

func (m TradeMode) MarshalText() ([]byte, error) {
	s, ok := modeLabels[m]
	if !ok {
		return nil, fmt.Errorf("invalid trade mode: %d", int(m))
	}
	return []byte(s), nil
}

func (m *TradeMode) UnmarshalText(b []byte) error {
	parsed, err := ParseTradeMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
