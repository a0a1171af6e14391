// Package journal persists the trade ledger, daily equity snapshots, and
// finished runs. The simulation core works against the Journal interface;
// SQLite and CSV backends are provided.
package journal

import (
	"time"

	"quantsim/portfolio"
)

// EquitySnapshot is one end-of-day account state row.
type EquitySnapshot struct {
	Time            time.Time
	Cash            float64
	Equity          float64
	MarginUsed      float64
	MarginAvailable float64
}

// RunRecord summarizes one finished backtest run.
type RunRecord struct {
	RunID              string
	Strategy           string
	Start              time.Time
	End                time.Time
	InitialCapital     float64
	FinalCapital       float64
	TotalReturn        float64
	Trades             int
	ForcedLiquidations int
	Created            time.Time
}

type Journal interface {
	RecordTrade(portfolio.Trade) error
	RecordEquity(EquitySnapshot) error
	RecordRun(RunRecord) error
	Close() error
}

// Nop discards everything; used when persistence is not configured.
type Nop struct{}

func (Nop) RecordTrade(portfolio.Trade) error { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) RecordRun(RunRecord) error         { return nil }
func (Nop) Close() error                      { return nil }
