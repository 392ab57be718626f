package storage

import (
	"context"
	"fmt"
	"time"

	"spreadboard/internal/ohlc"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// GormStore keeps bars in any gorm dialect (postgres in prod, sqlite locally).
type GormStore struct {
	DB  *gorm.DB
	loc *time.Location
}

// NewGormStore wraps db; loaded bars are converted to loc.
func NewGormStore(db *gorm.DB, loc *time.Location) *GormStore {
	if loc == nil {
		loc = time.UTC
	}
	return &GormStore{DB: db, loc: loc}
}

func (s *GormStore) AutoMigrate() error {
	if err := s.DB.AutoMigrate(&BarRecord{}); err != nil {
		return fmt.Errorf("auto-migrate bar table: %w", err)
	}
	return nil
}

func (s *GormStore) SaveBars(ctx context.Context, key SeriesKey, table *ohlc.Table) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	bars := table.Bars()
	if len(bars) == 0 {
		return 0, nil
	}
	records := make([]BarRecord, 0, len(bars))
	for _, b := range bars {
		records = append(records, ToBarRecord(key, b))
	}

	tx := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "leg"},
			{Name: "interval"},
			{Name: "bar_time"},
		},
		DoNothing: true,
	}).CreateInBatches(records, insertBatchSize)
	if tx.Error != nil {
		return 0, fmt.Errorf("insert bars %s/%s/%s: %w", key.Symbol, key.Leg, key.Interval, tx.Error)
	}
	return int(tx.RowsAffected), nil
}

func (s *GormStore) LoadBars(ctx context.Context, key SeriesKey, from, to time.Time) (*ohlc.Table, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).
		Where(&BarRecord{Symbol: key.Symbol, Leg: key.Leg.String(), Interval: key.Interval})
	if !from.IsZero() {
		q = q.Where("bar_time >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("bar_time < ?", to.UTC())
	}

	var records []BarRecord
	if err := q.Order("bar_time").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	bars := make([]ohlc.Bar, len(records))
	for i, r := range records {
		bars[i] = r.bar(s.loc)
	}
	return ohlc.NewTable(bars)
}

// DeleteBefore prunes bars of every series older than before.
func (s *GormStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tx := s.DB.WithContext(ctx).
		Where("bar_time < ?", before.UTC()).
		Delete(&BarRecord{})
	if tx.Error != nil {
		return 0, fmt.Errorf("delete bars before %s: %w", before.Format(time.RFC3339), tx.Error)
	}
	return tx.RowsAffected, nil
}

// Healthy pings the underlying connection pool.
func (s *GormStore) Healthy(ctx context.Context) bool {
	db, err := s.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func (s *GormStore) Close() error {
	db, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
