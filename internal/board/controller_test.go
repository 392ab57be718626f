package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"spreadboard/internal/calendar"
	"spreadboard/internal/diff"
	"spreadboard/internal/ohlc"
	"spreadboard/internal/scrip"
	"spreadboard/pkg/dhan"
	"spreadboard/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const barTime = 1726026300 // 2024-09-11 03:45:00 UTC

// flatBroker answers each security id with a one-bar table of constant value.
// Ids missing from prices get an error body.
func flatBroker(t *testing.T, prices map[int64]float64) (*httptest.Server, *[]int64) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []int64
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req dhan.ChartRequest
		if !assert.NoError(t, json.Unmarshal(raw, &req)) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		mu.Lock()
		calls = append(calls, req.SecurityID)
		mu.Unlock()

		v, ok := prices[req.SecurityID]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorType":"Input_Exception","errorCode":"DH-905","errorMessage":"Missing required fields"}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"open":[%[1]g],"high":[%[1]g],"low":[%[1]g],"close":[%[1]g],"timestamp":[%d]}`, v, barTime)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestController(t *testing.T, brokerURL string, store storage.Store) *Controller {
	t.Helper()
	master := scrip.NewMaster([]scrip.Row{
		{Symbol: "AAA", Spot: 100, Current: 101, Next: 102},
		{Symbol: "BBB", Spot: 200, Current: 201},
	})
	client := dhan.NewRESTClient(brokerURL, 5*time.Second,
		dhan.StaticCredentials{AccessToken: "tok", ClientID: "1100"},
		dhan.WithLocation(time.UTC))
	c := NewController(master, client, store, calendar.Weekdays(time.UTC), zap.NewNop())
	c.now = func() time.Time { return time.Date(2024, 9, 14, 12, 0, 0, 0, time.UTC) } // Saturday
	return c
}

func strp(s string) *string { return &s }

// go test -v --run TestDoneEndToEndDifference
func TestDoneEndToEndDifference(t *testing.T) {
	srv, calls := flatBroker(t, map[int64]float64{100: 10, 101: 12, 102: 15})
	store := storage.NewMemoryStore()
	c := newTestController(t, srv.URL, store)

	var notified []string
	c.OnChange(func(_, blockID string) { notified = append(notified, blockID) })

	s := NewSession("sess")
	show := true
	blk, err := c.AddBlock(s, ConfigPatch{
		Symbol:    strp("AAA"),
		Pair:      strp("Current & Next"),
		TradeMode: strp("B(Next)/Sell(Current)"),
		ShowDiff:  &show,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 9, 13, 0, 0, 0, 0, time.UTC), blk.Config.From, "defaults to last trading day")

	got, err := c.Done(context.Background(), s, blk.ID)
	require.NoError(t, err)

	assert.Equal(t, []int64{100, 100, 101, 102}, *calls, "main leg then Spot, Current, Next")
	require.NotNil(t, got.Main)
	require.NotNil(t, got.Main.Table)
	assert.Empty(t, got.MainError)
	assert.Len(t, got.Legs, 3)

	require.NotNil(t, got.Difference, got.DiffError)
	assert.Equal(t, ohlc.LegCurrent, got.Difference.Baseline)

	raw := got.Difference.Raw.Bars()
	require.Len(t, raw, 1)
	assert.InDelta(t, -3.0, raw[0].Close, 1e-9)
	assert.InDelta(t, -3.0, raw[0].Open, 1e-9)

	pct := got.Difference.Percent.Bars()
	require.Len(t, pct, 1)
	assert.InDelta(t, -25.0, pct[0].Close, 1e-9)
	assert.InDelta(t, -25.0, pct[0].High, 1e-9)

	assert.Contains(t, notified, blk.ID)

	// every successful table is archived
	archived, err := c.History(context.Background(),
		storage.SeriesKey{Symbol: "AAA", Leg: ohlc.LegNext, Interval: "60"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, archived.Len())
}

// go test -v --run TestDoneZeroBaselineKeepsRaw
func TestDoneZeroBaselineKeepsRaw(t *testing.T) {
	srv, _ := flatBroker(t, map[int64]float64{100: 0, 101: 12, 102: 15})
	c := newTestController(t, srv.URL, nil)

	s := NewSession("sess")
	show := true
	blk, err := c.AddBlock(s, ConfigPatch{ShowDiff: &show})
	require.NoError(t, err)

	got, err := c.Done(context.Background(), s, blk.ID)
	require.NoError(t, err)
	assert.Empty(t, got.DiffError)
	require.NotNil(t, got.Difference)

	raw := got.Difference.Raw.Bars()
	require.Len(t, raw, 1)
	assert.InDelta(t, 12.0, raw[0].Close, 1e-9, "Current minus Spot")
	assert.Nil(t, got.Difference.Percent)
	assert.Contains(t, got.Difference.PercentError, "zero Spot baseline")
}

// patchingFetcher edits the block on its first call, as a concurrent PATCH would.
type patchingFetcher struct {
	Fetcher
	once  sync.Once
	patch func()
}

func (f *patchingFetcher) FetchOHLC(ctx context.Context, req dhan.FetchRequest) (*dhan.FetchResult, error) {
	f.once.Do(f.patch)
	return f.Fetcher.FetchOHLC(ctx, req)
}

// go test -v --run TestDoneKeepsConcurrentEdits
func TestDoneKeepsConcurrentEdits(t *testing.T) {
	srv, _ := flatBroker(t, map[int64]float64{100: 10, 101: 12, 102: 15})
	base := newTestController(t, srv.URL, nil)

	s := NewSession("sess")
	blk, err := base.AddBlock(s, ConfigPatch{})
	require.NoError(t, err)

	fetcher := &patchingFetcher{Fetcher: base.fetcher}
	c := NewController(base.resolver, fetcher, nil, base.calendar, zap.NewNop())
	c.now = base.now
	fetcher.patch = func() {
		_, err := c.UpdateBlock(s, blk.ID, ConfigPatch{Interval: strp("5 min")})
		assert.NoError(t, err)
	}

	got, err := c.Done(context.Background(), s, blk.ID)
	require.NoError(t, err)
	assert.Equal(t, "5 min", got.Config.Interval, "edit made during fetch survives")
	require.NotNil(t, got.FetchedWith)
	assert.Equal(t, "60 min", got.FetchedWith.Interval)

	stored, err := s.Get(blk.ID)
	require.NoError(t, err)
	assert.Equal(t, "5 min", stored.Config.Interval)
}

// go test -v --run TestPruneArchive
func TestPruneArchive(t *testing.T) {
	srv, _ := flatBroker(t, map[int64]float64{100: 10})
	store := storage.NewMemoryStore()
	c := newTestController(t, srv.URL, store)

	s := NewSession("sess")
	blk, err := c.AddBlock(s, ConfigPatch{})
	require.NoError(t, err)
	_, err = c.Done(context.Background(), s, blk.ID)
	require.NoError(t, err)
	assert.True(t, c.ArchiveHealthy(context.Background()))

	key := storage.SeriesKey{Symbol: "AAA", Leg: ohlc.LegSpot, Interval: "60"}
	n, err := c.PruneArchive(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n, "zero retention keeps everything")

	// the bar is 2024-09-11, now is 2024-09-14
	n, err = c.PruneArchive(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = c.PruneArchive(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := c.History(context.Background(), key, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, left.Len())
}

// go test -v --run TestDoneWithoutDiffFetchesOnce
func TestDoneWithoutDiffFetchesOnce(t *testing.T) {
	srv, calls := flatBroker(t, map[int64]float64{100: 10, 101: 12, 102: 15})
	c := newTestController(t, srv.URL, nil)

	s := NewSession("sess")
	blk, err := c.AddBlock(s, ConfigPatch{Leg: strp("Current")})
	require.NoError(t, err)

	got, err := c.Done(context.Background(), s, blk.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{101}, *calls)
	assert.Nil(t, got.Difference)
	assert.Empty(t, got.DiffError)
	assert.Nil(t, got.Legs)
}

// go test -v --run TestDoneKeepsFetchDiagnostics
func TestDoneKeepsFetchDiagnostics(t *testing.T) {
	srv, _ := flatBroker(t, map[int64]float64{100: 10, 101: 12})
	c := newTestController(t, srv.URL, nil)

	s := NewSession("sess")
	show := true
	blk, err := c.AddBlock(s, ConfigPatch{ShowDiff: &show})
	require.NoError(t, err)

	got, err := c.Done(context.Background(), s, blk.ID)
	require.NoError(t, err, "fetch failures are not fatal")

	require.Contains(t, got.LegErrors, ohlc.LegNext)
	assert.Contains(t, got.LegErrors[ohlc.LegNext], "DH-905")
	next := got.Legs[ohlc.LegNext]
	require.NotNil(t, next)
	assert.Nil(t, next.Table)
	assert.Equal(t, http.StatusBadRequest, next.Status)
	assert.Contains(t, string(next.Response), "DH-905")

	assert.Nil(t, got.Difference)
	assert.Contains(t, got.DiffError, diff.ErrIncompleteLegs.Error())

	diag := got.Diagnostics()
	require.NotNil(t, diag.Main)
	assert.Equal(t, srv.URL+dhan.IntradayPath, diag.Main.Endpoint)
	assert.Len(t, diag.Legs, 3)
}

// go test -v --run TestDoneResolutionErrors
func TestDoneResolutionErrors(t *testing.T) {
	srv, calls := flatBroker(t, map[int64]float64{200: 10, 201: 12})
	c := newTestController(t, srv.URL, nil)
	s := NewSession("sess")

	unknown, err := c.AddBlock(s, ConfigPatch{Symbol: strp("ZZZ")})
	require.NoError(t, err)
	_, err = c.Done(context.Background(), s, unknown.ID)
	assert.ErrorIs(t, err, scrip.ErrSymbolNotFound)

	show := true
	noNext, err := c.AddBlock(s, ConfigPatch{Symbol: strp("BBB"), ShowDiff: &show})
	require.NoError(t, err)
	_, err = c.Done(context.Background(), s, noNext.ID)
	assert.ErrorIs(t, err, scrip.ErrLegUnavailable)

	var re *scrip.ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ohlc.LegNext, re.Leg)

	assert.Empty(t, *calls, "nothing is fetched when resolution fails")

	_, err = c.Done(context.Background(), s, "missing")
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

// go test -v --run TestDoneReplacesPreviousResults
func TestDoneReplacesPreviousResults(t *testing.T) {
	srv, _ := flatBroker(t, map[int64]float64{100: 10, 101: 12, 102: 15})
	c := newTestController(t, srv.URL, nil)
	s := NewSession("sess")

	show := true
	blk, err := c.AddBlock(s, ConfigPatch{ShowDiff: &show})
	require.NoError(t, err)
	first, err := c.Done(context.Background(), s, blk.ID)
	require.NoError(t, err)
	require.NotNil(t, first.Difference)

	hide := false
	_, err = c.UpdateBlock(s, blk.ID, ConfigPatch{ShowDiff: &hide})
	require.NoError(t, err)
	second, err := c.Done(context.Background(), s, blk.ID)
	require.NoError(t, err)
	assert.Nil(t, second.Difference)
	assert.Nil(t, second.Legs)
	assert.Equal(t, blk.ID, second.ID)
}

// go test -v --run TestRemoveBlock
func TestRemoveBlock(t *testing.T) {
	srv, _ := flatBroker(t, nil)
	c := newTestController(t, srv.URL, nil)
	s := NewSession("sess")

	blk, err := c.AddBlock(s, ConfigPatch{})
	require.NoError(t, err)
	require.NoError(t, c.RemoveBlock(s, blk.ID))
	assert.ErrorIs(t, c.RemoveBlock(s, blk.ID), ErrBlockNotFound)
}
