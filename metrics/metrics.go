// Package metrics computes risk/return statistics over a finished equity
// curve and trade log. Everything here is a pure function: re-running on a
// stored result yields identical numbers.
package metrics

import (
	"math"

	"github.com/montanaflynn/stats"
)

// TradingDaysPerYear is the annualization basis for daily bars.
const TradingDaysPerYear = 252

// Summary bundles the headline statistics of one run. Ratios that are
// mathematically undefined (zero variance, no losing trades, no closing
// trades) are nil and serialize as JSON null, never as zero.
type Summary struct {
	TotalReturn      float64  `json:"total_return"`
	AnnualizedReturn float64  `json:"annualized_return"`
	SharpeRatio      *float64 `json:"sharpe_ratio"`
	SortinoRatio     *float64 `json:"sortino_ratio"`
	MaxDrawdown      float64  `json:"max_drawdown"`
	WinRate          *float64 `json:"win_rate"`
	ProfitFactor     *float64 `json:"profit_factor"`
	Periods          int      `json:"periods"`
	ClosingTrades    int      `json:"closing_trades"`
}

// Compute derives a full Summary from the daily equity series, the realized
// P&L of closing trades, and the annual risk-free rate.
func Compute(equity []float64, closingPnLs []float64, riskFreeAnnual float64) Summary {
	returns := Returns(equity)
	rfDaily := riskFreeAnnual / TradingDaysPerYear

	s := Summary{
		AnnualizedReturn: AnnualizedReturn(returns),
		SharpeRatio:      Sharpe(returns, rfDaily),
		SortinoRatio:     Sortino(returns, rfDaily),
		MaxDrawdown:      MaxDrawdown(equity),
		WinRate:          WinRate(closingPnLs),
		ProfitFactor:     ProfitFactor(closingPnLs),
		Periods:          len(returns),
		ClosingTrades:    len(closingPnLs),
	}
	if len(equity) > 1 && equity[0] != 0 {
		s.TotalReturn = equity[len(equity)-1]/equity[0] - 1
	}
	return s
}

// Returns converts an equity series into simple period returns.
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

// AnnualizedReturn compounds the geometric mean period return to a
// 252-trading-day year.
func AnnualizedReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, TradingDaysPerYear/float64(len(returns))) - 1
}

// Sharpe is the annualized excess-return ratio; nil when the return series
// has no variance.
func Sharpe(returns []float64, riskFreeDaily float64) *float64 {
	if len(returns) == 0 {
		return nil
	}
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFreeDaily
	}
	sd, err := stats.StandardDeviation(returns)
	if err != nil || sd == 0 {
		return nil
	}
	mean, err := stats.Mean(excess)
	if err != nil {
		return nil
	}
	v := mean / sd * math.Sqrt(TradingDaysPerYear)
	return &v
}

// Sortino replaces the Sharpe denominator with downside deviation; nil when
// no negative periods exist.
func Sortino(returns []float64, riskFreeDaily float64) *float64 {
	if len(returns) == 0 {
		return nil
	}
	var downside []float64
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFreeDaily
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return nil
	}
	sd, err := stats.StandardDeviation(downside)
	if err != nil || sd == 0 {
		return nil
	}
	mean, err := stats.Mean(excess)
	if err != nil {
		return nil
	}
	v := mean / sd * math.Sqrt(TradingDaysPerYear)
	return &v
}

// MaxDrawdown is the largest peak-to-trough decline as a fraction of the
// running peak; zero for a monotonic curve.
func MaxDrawdown(equity []float64) float64 {
	var peak, maxDD float64
	for i, e := range equity {
		if i == 0 || e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := (peak - e) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// WinRate is the fraction of closing trades with positive realized P&L;
// nil when there are no closing trades.
func WinRate(pnls []float64) *float64 {
	if len(pnls) == 0 {
		return nil
	}
	wins := 0
	for _, pl := range pnls {
		if pl > 0 {
			wins++
		}
	}
	v := float64(wins) / float64(len(pnls))
	return &v
}

// ProfitFactor is gross profit over gross loss; nil when there are no
// losing trades.
func ProfitFactor(pnls []float64) *float64 {
	var profit, loss float64
	for _, pl := range pnls {
		if pl > 0 {
			profit += pl
		} else {
			loss += -pl
		}
	}
	if loss == 0 {
		return nil
	}
	v := profit / loss
	return &v
}
