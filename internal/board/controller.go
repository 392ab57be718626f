package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spreadboard/internal/diff"
	"spreadboard/internal/ohlc"
	"spreadboard/internal/scrip"
	"spreadboard/pkg/dhan"
	"spreadboard/pkg/storage"

	"go.uber.org/zap"
)

var ErrNoSymbols = errors.New("scrip master has no symbols")

// Resolver maps symbol and leg to a security id (*scrip.Master).
type Resolver interface {
	Resolve(symbol string, leg ohlc.Leg) (scrip.Instrument, error)
	Symbols() []string
}

// Fetcher downloads one leg series (*dhan.RESTClient).
type Fetcher interface {
	FetchOHLC(ctx context.Context, req dhan.FetchRequest) (*dhan.FetchResult, error)
}

// Calendar supplies the default date for new blocks.
type Calendar interface {
	LastTradingDay(now time.Time) time.Time
	Location() *time.Location
}

// Notifier is told when a block in a session changed.
type Notifier func(sessionID, blockID string)

const archiveTimeout = 5 * time.Second

type Controller struct {
	resolver Resolver
	fetcher  Fetcher
	store    storage.Store
	calendar Calendar
	logger   *zap.Logger
	notify   Notifier
	now      func() time.Time
}

// NewController wires the block pipeline. store and notify may be nil.
func NewController(resolver Resolver, fetcher Fetcher, store storage.Store, cal Calendar, logger *zap.Logger) *Controller {
	if store == nil {
		store = storage.Noop{}
	}
	return &Controller{
		resolver: resolver,
		fetcher:  fetcher,
		store:    store,
		calendar: cal,
		logger:   logger.Named("board"),
		notify:   func(string, string) {},
		now:      time.Now,
	}
}

// OnChange registers the block-changed callback.
func (c *Controller) OnChange(fn Notifier) {
	if fn != nil {
		c.notify = fn
	}
}

// Symbols lists what blocks can be configured with.
func (c *Controller) Symbols() []string {
	return c.resolver.Symbols()
}

func (c *Controller) Location() *time.Location {
	return c.calendar.Location()
}

// DefaultConfig returns the config a new block starts with.
func (c *Controller) DefaultConfig() (BlockConfig, error) {
	symbols := c.resolver.Symbols()
	if len(symbols) == 0 {
		return BlockConfig{}, ErrNoSymbols
	}
	return DefaultConfig(symbols[0], c.calendar.LastTradingDay(c.now())), nil
}

// AddBlock appends a block built from the defaults plus patch.
func (c *Controller) AddBlock(s *Session, patch ConfigPatch) (Block, error) {
	cfg, err := c.DefaultConfig()
	if err != nil {
		return Block{}, err
	}
	cfg, err = patch.Apply(cfg, c.Location())
	if err != nil {
		return Block{}, err
	}
	b := s.Add(cfg)
	c.logger.Info("block added", zap.String("session", s.ID), zap.String("block", b.ID), zap.String("symbol", cfg.Symbol))
	c.notify(s.ID, b.ID)
	return b, nil
}

// UpdateBlock applies patch to a block's config. Results stay until the next Done.
func (c *Controller) UpdateBlock(s *Session, id string, patch ConfigPatch) (Block, error) {
	b, err := s.Update(id, func(b *Block) error {
		cfg, err := patch.Apply(b.Config, c.Location())
		if err != nil {
			return err
		}
		b.Config = cfg
		return nil
	})
	if err != nil {
		return Block{}, err
	}
	c.notify(s.ID, id)
	return b, nil
}

func (c *Controller) RemoveBlock(s *Session, id string) error {
	if err := s.Remove(id); err != nil {
		return err
	}
	c.logger.Info("block removed", zap.String("session", s.ID), zap.String("block", id))
	c.notify(s.ID, id)
	return nil
}

type legFetch struct {
	leg   ohlc.Leg
	instr scrip.Instrument
}

// Done runs the block's fetch action: the main leg, then Spot, Current and Next
// when the difference is shown, one request at a time. Resolution failures abort
// before anything is fetched. Fetch failures are kept on the block with their
// diagnostics.
func (c *Controller) Done(ctx context.Context, s *Session, id string) (Block, error) {
	snap, err := s.Get(id)
	if err != nil {
		return Block{}, err
	}
	cfg := snap.Config
	if err := cfg.Validate(); err != nil {
		return Block{}, err
	}

	main, err := c.resolver.Resolve(cfg.Symbol, cfg.Leg)
	if err != nil {
		return Block{}, err
	}
	var legs []legFetch
	if cfg.ShowDiff {
		for _, leg := range ohlc.Legs {
			instr, err := c.resolver.Resolve(cfg.Symbol, leg)
			if err != nil {
				return Block{}, err
			}
			legs = append(legs, legFetch{leg: leg, instr: instr})
		}
	}

	log := c.logger.With(zap.String("block", id), zap.String("symbol", cfg.Symbol))
	var result Block

	res, err := c.fetch(ctx, log, cfg, main)
	if err != nil && !isFetchError(err) {
		return Block{}, err
	}
	result.Main = res
	if err != nil {
		result.MainError = err.Error()
	}

	if cfg.ShowDiff {
		result.Legs = make(map[ohlc.Leg]*dhan.FetchResult, len(legs))
		var tables diff.Legs
		for _, lf := range legs {
			res, err := c.fetch(ctx, log, cfg, lf.instr)
			if err != nil && !isFetchError(err) {
				return Block{}, err
			}
			result.Legs[lf.leg] = res
			if err != nil {
				if result.LegErrors == nil {
					result.LegErrors = make(map[ohlc.Leg]string)
				}
				result.LegErrors[lf.leg] = err.Error()
				continue
			}
			setLeg(&tables, lf.leg, res.Table)
		}

		d, err := diff.ComputeBoth(tables, cfg.Pair, cfg.TradeMode)
		if err != nil {
			log.Warn("difference not computed", zap.Error(err))
			result.DiffError = err.Error()
		} else {
			result.Difference = d
		}
	}

	// Previous results are replaced wholesale. Edits made while fetching are
	// kept in Config; FetchedWith records what the results came from.
	updated, err := s.Update(id, func(b *Block) error {
		result.ID = b.ID
		result.Config = b.Config
		result.FetchedWith = &cfg
		*b = result
		return nil
	})
	if err != nil {
		return Block{}, err
	}
	c.notify(s.ID, id)
	return updated, nil
}

// fetch downloads one instrument and archives the table on success.
func (c *Controller) fetch(ctx context.Context, log *zap.Logger, cfg BlockConfig, instr scrip.Instrument) (*dhan.FetchResult, error) {
	start := time.Now()
	res, err := c.fetcher.FetchOHLC(ctx, dhan.FetchRequest{
		SecurityID: instr.SecurityID,
		Leg:        instr.Leg,
		Interval:   cfg.Interval,
		From:       cfg.From,
		To:         cfg.To,
	})
	if err != nil {
		log.Warn("fetch failed",
			zap.Stringer("leg", instr.Leg),
			zap.Int64("security_id", instr.SecurityID),
			zap.Error(err),
		)
		return res, err
	}
	log.Info("fetched",
		zap.Stringer("leg", instr.Leg),
		zap.Int("bars", res.Table.Len()),
		zap.Duration("took", time.Since(start)),
	)
	c.archive(log, instr, cfg, res.Table)
	return res, nil
}

func (c *Controller) archive(log *zap.Logger, instr scrip.Instrument, cfg BlockConfig, table *ohlc.Table) {
	if table.Len() == 0 {
		return
	}
	key := storage.SeriesKey{Symbol: instr.Symbol, Leg: instr.Leg, Interval: archiveInterval(cfg)}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	n, err := c.store.SaveBars(ctx, key, table)
	if err != nil {
		log.Warn("failed to archive bars", zap.Stringer("leg", instr.Leg), zap.Error(err))
		return
	}
	log.Debug("archived bars", zap.Stringer("leg", instr.Leg), zap.Int("new", n))
}

// archiveInterval is the bar width the broker actually returned: the intraday
// code for single-day ranges, daily ("D") otherwise.
func archiveInterval(cfg BlockConfig) string {
	if dhan.SameDay(cfg.From, cfg.To) {
		return dhan.IntradayCode(cfg.Interval)
	}
	return "D"
}

func isFetchError(err error) bool {
	var fe *dhan.FetchError
	return errors.As(err, &fe)
}

func setLeg(l *diff.Legs, leg ohlc.Leg, t *ohlc.Table) {
	switch leg {
	case ohlc.LegSpot:
		l.Spot = t
	case ohlc.LegCurrent:
		l.Current = t
	case ohlc.LegNext:
		l.Next = t
	}
}

// ArchiveHealthy reports whether the bar archive answers.
func (c *Controller) ArchiveHealthy(ctx context.Context) bool {
	return storage.Healthy(ctx, c.store)
}

// PruneArchive drops archived bars older than retention.
func (c *Controller) PruneArchive(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-retention)
	n, err := storage.Prune(ctx, c.store, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune archive: %w", err)
	}
	if n > 0 {
		c.logger.Info("pruned archive", zap.Int64("bars", n), zap.Time("before", cutoff))
	}
	return n, nil
}

// History reads archived bars back.
func (c *Controller) History(ctx context.Context, key storage.SeriesKey, from, to time.Time) (*ohlc.Table, error) {
	table, err := c.store.LoadBars(ctx, key, from, to)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return table, nil
}
