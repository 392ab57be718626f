package board

import (
	"testing"
	"time"

	"spreadboard/internal/diff"
	"spreadboard/internal/ohlc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2024, 9, 11, 0, 0, 0, 0, time.UTC)

// go test -v --run TestSessionOrderAndRemove
func TestSessionOrderAndRemove(t *testing.T) {
	s := NewSession("sess")
	a := s.Add(DefaultConfig("AAA", testDay))
	b := s.Add(DefaultConfig("BBB", testDay))
	c := s.Add(DefaultConfig("CCC", testDay))

	ids := func() []string {
		var out []string
		for _, blk := range s.List() {
			out = append(out, blk.ID)
		}
		return out
	}
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids())

	require.NoError(t, s.Remove(b.ID))
	assert.Equal(t, []string{a.ID, c.ID}, ids())
	assert.ErrorIs(t, s.Remove(b.ID), ErrBlockNotFound)

	_, err := s.Get(b.ID)
	assert.ErrorIs(t, err, ErrBlockNotFound)
	assert.Equal(t, 2, s.Len())
}

// go test -v --run TestSessionUpdateIsAtomic
func TestSessionUpdateIsAtomic(t *testing.T) {
	s := NewSession("sess")
	blk := s.Add(DefaultConfig("AAA", testDay))

	_, err := s.Update(blk.ID, func(b *Block) error {
		b.Config.Symbol = "ZZZ"
		return ErrInvalidConfig
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	got, err := s.Get(blk.ID)
	require.NoError(t, err)
	assert.Equal(t, "AAA", got.Config.Symbol, "failed update leaves the block alone")
}

// go test -v --run TestSessionsRegistry
func TestSessionsRegistry(t *testing.T) {
	r := NewSessions()
	_, ok := r.Lookup("x")
	assert.False(t, ok)

	s1 := r.Get("x")
	s2 := r.Get("x")
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, r.Len())

	r.Drop("x")
	assert.Equal(t, 0, r.Len())
}

// go test -v --run TestSessionsExpireIdle
func TestSessionsExpireIdle(t *testing.T) {
	now := time.Date(2024, 9, 11, 10, 0, 0, 0, time.UTC)
	r := NewSessions()
	r.now = func() time.Time { return now }

	r.Get("idle")
	r.Get("busy")

	now = now.Add(20 * time.Minute)
	_, ok := r.Lookup("busy")
	require.True(t, ok)

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, r.Expire(30*time.Minute))
	_, ok = r.Lookup("idle")
	assert.False(t, ok)
	_, ok = r.Lookup("busy")
	assert.True(t, ok)
	assert.Equal(t, 1, r.Len())

	now = now.Add(time.Hour)
	assert.Equal(t, 1, r.Expire(30*time.Minute))
	assert.Zero(t, r.Len())
}

// go test -v --run TestConfigPatchApply
func TestConfigPatchApply(t *testing.T) {
	str := func(s string) *string { return &s }
	yes := true

	cfg, err := ConfigPatch{
		Leg:       str("next"),
		Interval:  str("5 min"),
		From:      str("2024-09-02"),
		TradeMode: str("B(Next)/Sell(Current)"),
		Pair:      str("Current & Next"),
		ShowDiff:  &yes,
	}.Apply(DefaultConfig("AAA", testDay), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, ohlc.LegNext, cfg.Leg)
	assert.Equal(t, "5 min", cfg.Interval)
	assert.Equal(t, time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC), cfg.From)
	assert.Equal(t, testDay, cfg.To)
	assert.Equal(t, diff.BuyNextSellCurrent, cfg.TradeMode)
	assert.Equal(t, diff.CurrentNext, cfg.Pair)
	assert.True(t, cfg.ShowDiff)

	_, err = ConfigPatch{From: str("2024-09-12")}.Apply(DefaultConfig("AAA", testDay), time.UTC)
	assert.ErrorIs(t, err, ErrInvalidConfig, "from after to")

	_, err = ConfigPatch{Leg: str("Far")}.Apply(DefaultConfig("AAA", testDay), time.UTC)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ConfigPatch{Pair: str("Spot & Far")}.Apply(DefaultConfig("AAA", testDay), time.UTC)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// go test -v --run TestBlockConfigJSON
func TestBlockConfigJSON(t *testing.T) {
	raw, err := DefaultConfig("AAA", testDay).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"symbol": "AAA",
		"leg": "Spot",
		"interval": "60 min",
		"from": "2024-09-11",
		"to": "2024-09-11",
		"trade_mode": "B(Current)/Sell(Next)",
		"pair": "Spot & Current",
		"show_diff": false
	}`, string(raw))
}
