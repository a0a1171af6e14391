package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantsim/market"
	"quantsim/portfolio"
	"quantsim/strategy"
)

func day(d int) time.Time {
	return time.Date(2023, 6, d, 0, 0, 0, 0, time.UTC)
}

func bar(symbol string, d int, close float64) market.Bar {
	return market.Bar{
		Symbol: symbol,
		Time:   day(d),
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 1000,
	}
}

// scriptedStrategy returns canned signals keyed by day.
type scriptedStrategy struct {
	signals map[time.Time][]strategy.Signal
	days    []time.Time
}

func (s *scriptedStrategy) Name() string { return "scripted" }

func (s *scriptedStrategy) OnDay(ctx context.Context, p *portfolio.Portfolio, d strategy.Day) ([]strategy.Signal, error) {
	s.days = append(s.days, d.Time)
	return s.signals[d.Time], nil
}

func futuresTable() *AssetTable {
	t := NewAssetTable()
	t.Set("IF2406.CFE", AssetInfo{
		Type:   market.Futures,
		Params: market.AssetParams{Multiplier: 300, MarginRate: 0.15, TickSize: 0.2},
	})
	return t
}

func newRunner(bars []market.Bar, strat strategy.Strategy, cash float64) *Runner {
	return &Runner{
		Portfolio: portfolio.New(portfolio.Config{
			InitialCash:          cash,
			CommissionRate:       0.0003,
			SlippageRate:         0.001,
			ForceCloseMarginRate: 0.03,
		}),
		Feed:     NewMemoryFeed(bars),
		Strategy: strat,
		Assets:   futuresTable(),
	}
}

func TestRunnerValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("missing portfolio", func(t *testing.T) {
		r := &Runner{Feed: NewMemoryFeed(nil), Strategy: strategy.Noop{}}
		_, err := r.Run(ctx)
		require.Error(t, err)
		assert.Equal(t, "backtest: Portfolio is required", err.Error())
	})

	t.Run("missing feed", func(t *testing.T) {
		r := &Runner{Portfolio: portfolio.New(portfolio.Config{InitialCash: 1}), Strategy: strategy.Noop{}}
		_, err := r.Run(ctx)
		require.Error(t, err)
	})

	t.Run("missing strategy", func(t *testing.T) {
		r := &Runner{Portfolio: portfolio.New(portfolio.Config{InitialCash: 1}), Feed: NewMemoryFeed(nil)}
		_, err := r.Run(ctx)
		require.Error(t, err)
	})
}

func TestRunnerEquityCurveChronological(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		bar("600519.SH", 3, 102),
		bar("600519.SH", 1, 100), // out of order on purpose
		bar("600519.SH", 2, 101),
	}
	r := newRunner(bars, strategy.Noop{}, 100000)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.EquityCurve, 3)
	for i := 1; i < len(res.EquityCurve); i++ {
		assert.True(t, res.EquityCurve[i-1].Time.Before(res.EquityCurve[i].Time))
	}
	assert.Equal(t, day(1), res.StartDate)
	assert.Equal(t, day(3), res.EndDate)
	assert.Equal(t, []string{"600519.SH"}, res.Symbols)
	assert.Equal(t, market.Stock, res.AssetTypes["600519.SH"])
}

func TestRunnerExecutesSignals(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		bar("600519.SH", 1, 100),
		bar("600519.SH", 2, 110),
	}
	strat := &scriptedStrategy{signals: map[time.Time][]strategy.Signal{
		day(1): {{Symbol: "600519.SH", Action: strategy.Buy, Quantity: 100}},
		day(2): {{Symbol: "600519.SH", Action: strategy.Sell, Quantity: 100}},
	}}
	r := newRunner(bars, strat, 100000)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.TradeLog, 2)
	assert.Equal(t, portfolio.Buy, res.TradeLog[0].Action)
	assert.Equal(t, portfolio.Sell, res.TradeLog[1].Action)
	assert.Equal(t, 2, res.SignalsGenerated)
	assert.Empty(t, res.SkippedSignals)

	// bought 100 at 100, sold at 110; final equity reflects the gain
	assert.Greater(t, res.FinalCapital, res.InitialCapital)
	assert.InDelta(t, res.FinalCapital/res.InitialCapital-1, res.TotalReturn, 1e-9)
}

func TestRunnerSkipsRejectedSignals(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{bar("600519.SH", 1, 1680)}
	strat := &scriptedStrategy{signals: map[time.Time][]strategy.Signal{
		// scenario: 100 shares at 1680 against 100k of capital
		day(1): {{Symbol: "600519.SH", Action: strategy.Buy, Quantity: 100}},
	}}
	r := newRunner(bars, strat, 100000)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.TradeLog)
	require.Len(t, res.SkippedSignals, 1)
	assert.Equal(t, "600519.SH", res.SkippedSignals[0].Symbol)
	assert.Contains(t, res.SkippedSignals[0].Reason, "insufficient cash")
	assert.InDelta(t, 100000, res.FinalCapital, 1e-9)
}

func TestRunnerSkipsSignalWithoutData(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{bar("600519.SH", 1, 100)}
	strat := &scriptedStrategy{signals: map[time.Time][]strategy.Signal{
		day(1): {{Symbol: "000001.SZ", Action: strategy.Buy, Quantity: 100}},
	}}
	r := newRunner(bars, strat, 100000)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.SkippedSignals, 1)
	assert.Equal(t, "no market data for day", res.SkippedSignals[0].Reason)
}

func TestRunnerHoldSignalsIgnored(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{bar("600519.SH", 1, 100)}
	strat := &scriptedStrategy{signals: map[time.Time][]strategy.Signal{
		day(1): {{Symbol: "600519.SH", Action: strategy.Hold}},
	}}
	r := newRunner(bars, strat, 100000)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.TradeLog)
	assert.Empty(t, res.SkippedSignals)
	assert.Equal(t, 1, res.SignalsGenerated)
}

func TestRunnerForcedLiquidationBeforeSignals(t *testing.T) {
	t.Parallel()

	// day 1: open long futures at 4000 (liquidation at 3520)
	// day 2: price gaps to 3500 -> forced close, and the same-day buy
	//        signal for the symbol must be excluded
	bars := []market.Bar{
		bar("IF2406.CFE", 1, 4000),
		bar("IF2406.CFE", 2, 3500),
	}
	strat := &scriptedStrategy{signals: map[time.Time][]strategy.Signal{
		day(1): {{Symbol: "IF2406.CFE", Action: strategy.Buy, Quantity: 1}},
		day(2): {{Symbol: "IF2406.CFE", Action: strategy.Buy, Quantity: 1}},
	}}
	r := newRunner(bars, strat, 300000)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.ForcedLiquidations)
	require.Len(t, res.TradeLog, 2)

	forced := res.TradeLog[1]
	assert.True(t, forced.Forced)
	assert.Equal(t, day(2), forced.Time)
	assert.Contains(t, forced.ForcedReason, "3520")
	assert.Contains(t, forced.ForcedReason, "3500")

	// no strategy-originated trade for the symbol on the liquidation day
	require.Len(t, res.SkippedSignals, 1)
	assert.Equal(t, "symbol force-liquidated this day", res.SkippedSignals[0].Reason)

	// the position is gone
	_, ok := r.Portfolio.Position("IF2406.CFE")
	assert.False(t, ok)
}

func TestRunnerShortLiquidation(t *testing.T) {
	t.Parallel()

	// short at 4000 liquidates at 4480 when price rises through it
	bars := []market.Bar{
		bar("IF2406.CFE", 1, 4000),
		bar("IF2406.CFE", 2, 4500),
	}
	strat := &scriptedStrategy{signals: map[time.Time][]strategy.Signal{
		day(1): {{Symbol: "IF2406.CFE", Action: strategy.Sell, Quantity: 1}},
	}}
	r := newRunner(bars, strat, 300000)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.ForcedLiquidations)
	forced := res.TradeLog[len(res.TradeLog)-1]
	assert.True(t, forced.Forced)
	assert.Equal(t, portfolio.Buy, forced.Action)
}

func TestRunnerCancellationTruncates(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		bar("600519.SH", 1, 100),
		bar("600519.SH", 2, 101),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(bars, strategy.Noop{}, 100000)
	res, err := r.Run(ctx)
	require.NoError(t, err)

	// cancelled before the first day: a valid, empty result
	assert.Empty(t, res.EquityCurve)
	assert.InDelta(t, 100000, res.FinalCapital, 1e-9)
}

func TestRunnerEmptySeries(t *testing.T) {
	t.Parallel()

	// zero rows for the whole range: zero trades, no failure
	r := newRunner(nil, strategy.Noop{}, 100000)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.TradeLog)
	assert.Empty(t, res.EquityCurve)
	assert.InDelta(t, 0, res.TotalReturn, 1e-9)
}

func TestRunnerFeedError(t *testing.T) {
	t.Parallel()

	r := newRunner(nil, strategy.Noop{}, 100000)
	r.Feed = errorFeed{}

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed")
}

type errorFeed struct{}

func (errorFeed) Next() (strategy.Day, bool, error) {
	return strategy.Day{}, false, errors.New("boom")
}
func (errorFeed) Close() error { return nil }

func TestRunnerSizesFromPositionPct(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{bar("600519.SH", 1, 100)}
	strat := &scriptedStrategy{signals: map[time.Time][]strategy.Signal{
		day(1): {{Symbol: "600519.SH", Action: strategy.Buy, PositionSizePct: 0.5}},
	}}
	r := newRunner(bars, strat, 100000)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.TradeLog, 1)
	// half of 100k at price 100 -> 500 shares
	assert.InDelta(t, 500, res.TradeLog[0].Quantity, 1e-9)
}
