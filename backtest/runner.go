// Package backtest drives a portfolio through a historical day series.
// Each trading day runs in a fixed order: mark-to-market, the
// forced-liquidation sweep, strategy signals, execution, equity snapshot.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"quantsim/internal/id"
	"quantsim/journal"
	"quantsim/market"
	"quantsim/portfolio"
	"quantsim/strategy"
)

// Runner executes one backtest run. Each run owns its Portfolio; nothing is
// shared across runs.
type Runner struct {
	Portfolio *portfolio.Portfolio
	Feed      DayFeed
	Strategy  strategy.Strategy

	// Assets resolves symbols to settlement parameters. Nil means
	// classifier defaults only.
	Assets *AssetTable

	// Journal persists trades and equity as the run progresses. Nil
	// disables persistence.
	Journal journal.Journal

	monitor Monitor
}

// Run executes the day loop until the feed is exhausted or ctx is
// cancelled. Cancellation between days yields a valid Result truncated at
// the last fully processed day. Per-signal rejections become skipped-signal
// records; only configuration and data-source failures abort the run.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Portfolio == nil {
		return Result{}, fmt.Errorf("backtest: Portfolio is required")
	}
	if r.Feed == nil {
		return Result{}, fmt.Errorf("backtest: Feed is required")
	}
	if r.Strategy == nil {
		return Result{}, fmt.Errorf("backtest: Strategy is required")
	}
	if r.Assets == nil {
		r.Assets = NewAssetTable()
	}
	defer r.Feed.Close()

	res := Result{
		RunID:          id.New(),
		StrategyName:   r.Strategy.Name(),
		AssetTypes:     make(map[string]market.AssetType),
		InitialCapital: r.Portfolio.Cash(),
	}

	for {
		if ctx.Err() != nil {
			break
		}

		day, ok, err := r.Feed.Next()
		if err != nil {
			return Result{}, fmt.Errorf("backtest: feed: %w", err)
		}
		if !ok {
			break
		}
		if err := r.step(ctx, day, &res); err != nil {
			return Result{}, err
		}

		if res.StartDate.IsZero() {
			res.StartDate = day.Time
		}
		res.EndDate = day.Time
	}

	res.FinalCapital = r.Portfolio.Equity()
	if res.InitialCapital != 0 {
		res.TotalReturn = res.FinalCapital/res.InitialCapital - 1
	}
	res.TradeLog = r.Portfolio.Trades()
	res.TotalTrades = len(res.TradeLog)
	res.MarginStats = MarginStats{
		MarginUsed:      r.Portfolio.MarginUsed(),
		MarginAvailable: r.Portfolio.MarginAvailable(),
	}
	sort.Strings(res.Symbols)

	if r.Journal != nil {
		err := r.Journal.RecordRun(journal.RunRecord{
			RunID:              res.RunID,
			Strategy:           res.StrategyName,
			Start:              res.StartDate,
			End:                res.EndDate,
			InitialCapital:     res.InitialCapital,
			FinalCapital:       res.FinalCapital,
			TotalReturn:        res.TotalReturn,
			Trades:             res.TotalTrades,
			ForcedLiquidations: res.ForcedLiquidations,
			Created:            time.Now().UTC(),
		})
		if err != nil {
			return Result{}, fmt.Errorf("backtest: record run: %w", err)
		}
	}
	return res, nil
}

// step processes one trading day. It is all-or-nothing from the runner's
// perspective: there is no cancellation mid-day.
func (r *Runner) step(ctx context.Context, day strategy.Day, res *Result) error {
	// 1. mark all open positions to the day's closes
	prices := make(map[string]float64, len(day.Bars))
	for sym, bar := range day.Bars {
		prices[sym] = bar.Close
		if _, seen := res.AssetTypes[sym]; !seen {
			info, err := r.Assets.Resolve(sym)
			if err != nil {
				return fmt.Errorf("backtest: %w", err)
			}
			res.AssetTypes[sym] = info.Type
			res.Symbols = append(res.Symbols, sym)
		}
	}
	r.Portfolio.MarkToMarket(prices)

	// 2. forced liquidations, before any strategy-originated trade
	forced, liquidated, err := r.monitor.Sweep(r.Portfolio, day.Bars, day.Time)
	if err != nil {
		return fmt.Errorf("backtest: liquidation sweep: %w", err)
	}
	res.ForcedLiquidations += len(forced)
	for _, t := range forced {
		if err := r.journalTrade(t); err != nil {
			return err
		}
	}

	// 3. query the strategy
	signals, err := r.Strategy.OnDay(ctx, r.Portfolio, day)
	if err != nil {
		return fmt.Errorf("backtest: strategy %s: %w", r.Strategy.Name(), err)
	}
	res.SignalsGenerated += len(signals)

	// 4. route signals; rejections skip, they never halt the run
	for _, sig := range signals {
		if sig.Action == strategy.Hold {
			continue
		}
		if liquidated[sig.Symbol] {
			res.skip(day.Time, sig, "symbol force-liquidated this day")
			continue
		}
		bar, ok := day.Bars[sig.Symbol]
		if !ok {
			res.skip(day.Time, sig, "no market data for day")
			continue
		}
		if err := r.execute(day.Time, sig, bar, res); err != nil {
			return err
		}
	}

	// 5. snapshot post-trade equity
	point := EquityPoint{Time: day.Time, Equity: r.Portfolio.Equity()}
	res.EquityCurve = append(res.EquityCurve, point)
	if r.Journal != nil {
		err := r.Journal.RecordEquity(journal.EquitySnapshot{
			Time:            day.Time,
			Cash:            r.Portfolio.Cash(),
			Equity:          point.Equity,
			MarginUsed:      r.Portfolio.MarginUsed(),
			MarginAvailable: r.Portfolio.MarginAvailable(),
		})
		if err != nil {
			return fmt.Errorf("backtest: record equity: %w", err)
		}
	}
	return nil
}

func (r *Runner) execute(t time.Time, sig strategy.Signal, bar market.Bar, res *Result) error {
	info, err := r.Assets.Resolve(sig.Symbol)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	price := bar.Close
	if sig.PriceHint > 0 {
		price = sig.PriceHint
	}

	qty, skipReason := r.orderQuantity(sig, info, price)
	if skipReason != "" {
		res.skip(t, sig, skipReason)
		return nil
	}

	order := portfolio.Order{
		Symbol:    sig.Symbol,
		AssetType: info.Type,
		Price:     price,
		Quantity:  qty,
		Time:      t,
		Params:    info.Params,
		Greeks:    sig.Greeks,
	}

	var trade portfolio.Trade
	switch sig.Action {
	case strategy.Buy:
		trade, err = r.Portfolio.Buy(order)
	case strategy.Sell:
		trade, err = r.Portfolio.Sell(order)
	default:
		res.skip(t, sig, fmt.Sprintf("unknown action %q", sig.Action))
		return nil
	}
	if err != nil {
		if isRejection(err) {
			res.skip(t, sig, err.Error())
			return nil
		}
		return fmt.Errorf("backtest: %s %s: %w", sig.Action, sig.Symbol, err)
	}
	return r.journalTrade(trade)
}

// orderQuantity sizes an order from the signal's explicit quantity or its
// position-size fraction of current equity.
func (r *Runner) orderQuantity(sig strategy.Signal, info AssetInfo, price float64) (float64, string) {
	if sig.Quantity > 0 {
		return sig.Quantity, ""
	}

	if sig.Action == strategy.Sell {
		// an unsized sell closes the full held quantity
		if pos, ok := r.Portfolio.Position(sig.Symbol); ok {
			return math.Abs(pos.Quantity), ""
		}
	}

	pct := sig.PositionSizePct
	if pct <= 0 {
		return 0, "signal carries no quantity or position size"
	}

	budget := r.Portfolio.Equity() * pct
	perUnit := price
	if info.Type == market.Futures {
		perUnit = price * info.Params.Multiplier * info.Params.MarginRate
	}
	if perUnit <= 0 {
		return 0, "cannot size order at zero price"
	}
	qty := math.Floor(budget / perUnit)
	if qty < 1 {
		return 0, fmt.Sprintf("budget %.2f too small for one unit at %.2f", budget, perUnit)
	}
	return qty, ""
}

func (r *Runner) journalTrade(t portfolio.Trade) error {
	if r.Journal == nil {
		return nil
	}
	if err := r.Journal.RecordTrade(t); err != nil {
		return fmt.Errorf("backtest: record trade: %w", err)
	}
	return nil
}

func (res *Result) skip(t time.Time, sig strategy.Signal, reason string) {
	res.SkippedSignals = append(res.SkippedSignals, SkippedSignal{
		Time:   t,
		Symbol: sig.Symbol,
		Action: string(sig.Action),
		Reason: reason,
	})
}

// isRejection reports whether err is an expected per-signal rejection
// rather than a run-level failure.
func isRejection(err error) bool {
	var capErr *portfolio.InsufficientCapitalError
	var sellErr *portfolio.OverSellError
	var limitErr *portfolio.PositionLimitExceededError
	return errors.As(err, &capErr) || errors.As(err, &sellErr) || errors.As(err, &limitErr)
}
