package scrip

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spreadboard/internal/ohlc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sample = `Symbols,Spot,Current,Next,Lot
 AAA ,100,101,102,50
BBB,200.0,201,,25
AAA,900,901,902,50
`

// go test -v --run TestParseAndResolve
func TestParseAndResolve(t *testing.T) {
	m, err := Parse(strings.NewReader(sample), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, m.Symbols())

	cases := []struct {
		leg     ohlc.Leg
		id      int64
		segment string
		inst    string
	}{
		{ohlc.LegSpot, 100, "NSE_EQ", "EQUITY"},
		{ohlc.LegCurrent, 101, "NSE_FNO", "FUTSTK"},
		{ohlc.LegNext, 102, "NSE_FNO", "FUTSTK"},
	}
	for _, tc := range cases {
		got, err := m.Resolve("AAA", tc.leg)
		require.NoError(t, err)
		assert.Equal(t, tc.id, got.SecurityID)
		assert.Equal(t, tc.segment, got.ExchangeSegment)
		assert.Equal(t, tc.inst, got.InstrumentType)

		again, err := m.Resolve("AAA", tc.leg)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}

	spot, err := m.Resolve("BBB", ohlc.LegSpot)
	require.NoError(t, err)
	assert.Equal(t, int64(200), spot.SecurityID)
}

// go test -v --run TestResolveErrors
func TestResolveErrors(t *testing.T) {
	m, err := Parse(strings.NewReader(sample), nil)
	require.NoError(t, err)

	_, err = m.Resolve("ZZZ", ohlc.LegSpot)
	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.ErrorIs(t, err, ErrSymbolNotFound)

	_, err = m.Resolve("BBB", ohlc.LegNext)
	assert.ErrorIs(t, err, ErrLegUnavailable)

	_, err = m.Resolve("AAA", ohlc.Leg(7))
	assert.ErrorIs(t, err, ErrInvalidLeg)
}

// go test -v --run TestParseMissingColumn
func TestParseMissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("Symbols,Spot,Current\nAAA,1,2\n"), nil)
	assert.Error(t, err)
}

// go test -v --run TestParseBadID
func TestParseBadID(t *testing.T) {
	_, err := Parse(strings.NewReader("Symbols,Spot,Current,Next\nAAA,1.5,2,3\n"), nil)
	assert.Error(t, err)
}

// go test -v --run TestLoadFile
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrip.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	m, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), zap.NewNop())
	assert.Error(t, err)
}
