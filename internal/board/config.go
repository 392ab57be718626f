package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"spreadboard/internal/diff"
	"spreadboard/internal/ohlc"
	"spreadboard/pkg/dhan"
)

const DateLayout = "2006-01-02"

var ErrInvalidConfig = errors.New("invalid block config")

// BlockConfig is everything a user picks for one chart block.
type BlockConfig struct {
	Symbol    string
	Leg       ohlc.Leg
	Interval  string // interval label, e.g. "60 min"
	From      time.Time
	To        time.Time
	TradeMode diff.TradeMode
	Pair      diff.Pair
	ShowDiff  bool
}

type blockConfigJSON struct {
	Symbol    string         `json:"symbol"`
	Leg       ohlc.Leg       `json:"leg"`
	Interval  string         `json:"interval"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	TradeMode diff.TradeMode `json:"trade_mode"`
	Pair      diff.Pair      `json:"pair"`
	ShowDiff  bool           `json:"show_diff"`
}

func (c BlockConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockConfigJSON{
		Symbol:    c.Symbol,
		Leg:       c.Leg,
		Interval:  c.Interval,
		From:      c.From.Format(DateLayout),
		To:        c.To.Format(DateLayout),
		TradeMode: c.TradeMode,
		Pair:      c.Pair,
		ShowDiff:  c.ShowDiff,
	})
}

// DefaultConfig is what a freshly added block starts with: the first symbol,
// Spot leg, hourly bars over a single trading day.
func DefaultConfig(symbol string, day time.Time) BlockConfig {
	return BlockConfig{
		Symbol:    symbol,
		Leg:       ohlc.LegSpot,
		Interval:  dhan.DefaultInterval.Label,
		From:      day,
		To:        day,
		TradeMode: diff.BuyCurrentSellNext,
		Pair:      diff.SpotCurrent,
		ShowDiff:  false,
	}
}

func (c BlockConfig) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidConfig)
	}
	if !c.Leg.IsValid() {
		return fmt.Errorf("%w: unknown leg %d", ErrInvalidConfig, int(c.Leg))
	}
	if c.From.IsZero() || c.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidConfig)
	}
	if c.From.After(c.To) {
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidConfig,
			c.From.Format(DateLayout), c.To.Format(DateLayout))
	}
	if _, err := c.Pair.MarshalText(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.TradeMode.MarshalText(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ConfigPatch is a partial update; nil fields are left alone.
// Interval labels the broker doesn't know are kept and fall back to hourly at fetch time.
type ConfigPatch struct {
	Symbol    *string `json:"symbol,omitempty"`
	Leg       *string `json:"leg,omitempty"`
	Interval  *string `json:"interval,omitempty"`
	From      *string `json:"from,omitempty"`
	To        *string `json:"to,omitempty"`
	TradeMode *string `json:"trade_mode,omitempty"`
	Pair      *string `json:"pair,omitempty"`
	ShowDiff  *bool   `json:"show_diff,omitempty"`
}

// Apply returns c with the patch applied. Dates are read in loc.
func (p ConfigPatch) Apply(c BlockConfig, loc *time.Location) (BlockConfig, error) {
	if loc == nil {
		loc = time.Local
	}
	if p.Symbol != nil {
		c.Symbol = strings.TrimSpace(*p.Symbol)
	}
	if p.Leg != nil {
		leg, err := ohlc.ParseLeg(*p.Leg)
		if err != nil {
			return c, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.Leg = leg
	}
	if p.Interval != nil {
		c.Interval = *p.Interval
	}
	if p.From != nil {
		d, err := time.ParseInLocation(DateLayout, *p.From, loc)
		if err != nil {
			return c, fmt.Errorf("%w: from: %v", ErrInvalidConfig, err)
		}
		c.From = d
	}
	if p.To != nil {
		d, err := time.ParseInLocation(DateLayout, *p.To, loc)
		if err != nil {
			return c, fmt.Errorf("%w: to: %v", ErrInvalidConfig, err)
		}
		c.To = d
	}
	if p.TradeMode != nil {
		m, err := diff.ParseTradeMode(*p.TradeMode)
		if err != nil {
			return c, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.TradeMode = m
	}
	if p.Pair != nil {
		pair, err := diff.ParsePair(*p.Pair)
		if err != nil {
			return c, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.Pair = pair
	}
	if p.ShowDiff != nil {
		c.ShowDiff = *p.ShowDiff
	}
	return c, c.Validate()
}
