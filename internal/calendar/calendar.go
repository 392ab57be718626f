// Package calendar answers which days the exchange trades on.
package calendar

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
	"go.uber.org/zap"
)

// maxLookback bounds the search for a previous session.
const maxLookback = 30

// TradingCalendar wraps scmhub/calendar, falling back to Mon-Fri when the
// MIC is not known to the library.
type TradingCalendar struct {
	cal      *calendar.Calendar
	fallback bool
	loc      *time.Location
}

// New builds a calendar for mic. loc is used only on the weekday fallback.
func New(mic string, loc *time.Location, logger *zap.Logger) *TradingCalendar {
	if loc == nil {
		loc = time.UTC
	}
	cal := calendar.GetCalendar(strings.ToLower(mic))
	if cal == nil {
		logger.Warn("no holiday calendar for exchange, using weekdays only", zap.String("mic", mic))
		return &TradingCalendar{fallback: true, loc: loc}
	}
	return &TradingCalendar{cal: cal, loc: cal.Loc}
}

// Weekdays returns a calendar that treats every Mon-Fri as a session.
func Weekdays(loc *time.Location) *TradingCalendar {
	if loc == nil {
		loc = time.UTC
	}
	return &TradingCalendar{fallback: true, loc: loc}
}

func (tc *TradingCalendar) Location() *time.Location { return tc.loc }

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	date = date.In(tc.loc)
	if tc.fallback {
		wd := date.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return tc.cal.IsBusinessDay(date)
}

// LastTradingDay returns midnight of the latest session on or before now.
func (tc *TradingCalendar) LastTradingDay(now time.Time) time.Time {
	now = now.In(tc.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, tc.loc)
	for i := 0; i < maxLookback; i++ {
		if tc.IsTradingDay(day) {
			return day
		}
		day = day.AddDate(0, 0, -1)
	}
	return day
}
