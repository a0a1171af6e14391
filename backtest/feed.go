package backtest

import (
	"sort"
	"time"

	"quantsim/market"
	"quantsim/strategy"
)

// DayFeed yields one trading day of bars at a time, strictly ascending.
// Implementations should be deterministic and return (ok=false, err=nil)
// at end of data.
type DayFeed interface {
	Next() (strategy.Day, bool, error)
	Close() error
}

// MemoryFeed groups a flat bar series by trading day. A missing bar for a
// symbol on a day simply leaves that symbol out of the day's map.
type MemoryFeed struct {
	days []strategy.Day
	idx  int
}

// NewMemoryFeed builds a feed from daily bars. Bars are bucketed by their
// UTC calendar date; within one day the last bar per symbol wins.
func NewMemoryFeed(bars []market.Bar) *MemoryFeed {
	byDay := make(map[time.Time]map[string]market.Bar)
	for _, b := range bars {
		day := b.Time.UTC().Truncate(24 * time.Hour)
		if byDay[day] == nil {
			byDay[day] = make(map[string]market.Bar)
		}
		byDay[day][b.Symbol] = b
	}

	days := make([]strategy.Day, 0, len(byDay))
	for day, m := range byDay {
		days = append(days, strategy.Day{Time: day, Bars: m})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Time.Before(days[j].Time) })

	return &MemoryFeed{days: days}
}

func (f *MemoryFeed) Next() (strategy.Day, bool, error) {
	if f.idx >= len(f.days) {
		return strategy.Day{}, false, nil
	}
	d := f.days[f.idx]
	f.idx++
	return d, true, nil
}

func (f *MemoryFeed) Close() error { return nil }
