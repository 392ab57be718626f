package storage

import (
	"time"

	"spreadboard/internal/ohlc"
)

// BarRecord is one archived OHLC bar.
type BarRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol   string    `gorm:"type:varchar(64);not null;index:idx_bar_symbol;index:idx_symbol_leg_interval_time,unique"`
	Leg      string    `gorm:"type:varchar(16);not null;index:idx_symbol_leg_interval_time,unique"`
	Interval string    `gorm:"type:varchar(10);not null;index:idx_symbol_leg_interval_time,unique"`
	Time     time.Time `gorm:"column:bar_time;not null;index:idx_symbol_leg_interval_time,unique"`

	Open  float64 `gorm:"type:numeric;not null"`
	High  float64 `gorm:"type:numeric;not null"`
	Low   float64 `gorm:"type:numeric;not null"`
	Close float64 `gorm:"type:numeric;not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (BarRecord) TableName() string {
	return "bar_record"
}

// ToBarRecord converts a bar of the given series into a row for insertion.
func ToBarRecord(key SeriesKey, b ohlc.Bar) BarRecord {
	return BarRecord{
		Symbol:   key.Symbol,
		Leg:      key.Leg.String(),
		Interval: key.Interval,
		Time:     b.Time.UTC(),
		Open:     b.Open,
		High:     b.High,
		Low:      b.Low,
		Close:    b.Close,
	}
}

func (r BarRecord) bar(loc *time.Location) ohlc.Bar {
	return ohlc.Bar{
		Time:  r.Time.In(loc),
		Open:  r.Open,
		High:  r.High,
		Low:   r.Low,
		Close: r.Close,
	}
}
