package backtest

import (
	"time"

	"quantsim/market"
	"quantsim/metrics"
	"quantsim/portfolio"
)

// EquityPoint is one equity-curve sample: total equity (cash plus
// mark-to-market of open positions) at end of one trading day.
type EquityPoint struct {
	Time   time.Time `json:"timestamp"`
	Equity float64   `json:"total_equity"`
}

// SkippedSignal records a signal the portfolio rejected or the runner could
// not execute. Skips are expected control flow, distinct from trades.
type SkippedSignal struct {
	Time   time.Time `json:"timestamp"`
	Symbol string    `json:"symbol"`
	Action string    `json:"action"`
	Reason string    `json:"reason"`
}

// MarginStats is the final margin state of a run.
type MarginStats struct {
	MarginUsed      float64 `json:"margin_used"`
	MarginAvailable float64 `json:"margin_available"`
}

// Result is the immutable aggregate of one finished (or cancelled) run.
// The field names form the stable contract consumed by reporting/export.
type Result struct {
	RunID        string `json:"run_id"`
	StrategyName string `json:"strategy_name"`

	Symbols    []string                    `json:"symbols"`
	AssetTypes map[string]market.AssetType `json:"asset_types"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalReturn    float64 `json:"total_return"`

	TotalTrades        int `json:"total_trades"`
	SignalsGenerated   int `json:"signals_generated"`
	ForcedLiquidations int `json:"forced_liquidations"`

	TradeLog       []portfolio.Trade `json:"trade_log"`
	EquityCurve    []EquityPoint     `json:"equity_curve"`
	SkippedSignals []SkippedSignal   `json:"skipped_signals"`

	MarginStats MarginStats `json:"margin_stats"`
}

// Equity returns the raw equity series.
func (r *Result) Equity() []float64 {
	out := make([]float64, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		out[i] = p.Equity
	}
	return out
}

// ClosingPnLs returns the realized P&L of every closing trade, forced
// liquidations included, in execution order.
func (r *Result) ClosingPnLs() []float64 {
	var out []float64
	for _, t := range r.TradeLog {
		if t.Closing {
			out = append(out, t.RealizedPL)
		}
	}
	return out
}

// Summary computes the performance statistics for this result. It is pure:
// calling it twice yields identical numbers.
func (r *Result) Summary(riskFreeAnnual float64) metrics.Summary {
	return metrics.Compute(r.Equity(), r.ClosingPnLs(), riskFreeAnnual)
}
