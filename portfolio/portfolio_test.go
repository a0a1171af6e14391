package portfolio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantsim/market"
)

var day0 = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

func newPortfolio(t *testing.T, cash float64) *Portfolio {
	t.Helper()
	return New(Config{
		InitialCash:          cash,
		CommissionRate:       0.0003,
		SlippageRate:         0.001,
		ForceCloseMarginRate: 0.03,
	})
}

func stockOrder(price, qty float64) Order {
	return Order{
		Symbol:    "600519.SH",
		AssetType: market.Stock,
		Price:     price,
		Quantity:  qty,
		Time:      day0,
		Params:    market.AssetParams{Multiplier: 1},
	}
}

func futuresOrder(price, qty float64) Order {
	return Order{
		Symbol:    "IF2406.CFE",
		AssetType: market.Futures,
		Price:     price,
		Quantity:  qty,
		Time:      day0,
		Params:    market.AssetParams{Multiplier: 300, MarginRate: 0.15},
	}
}

func TestBuyStockInsufficientCapital(t *testing.T) {
	t.Parallel()

	// 100 shares at 1680 cost more than 100k once commission and
	// slippage are added; the buy must leave no trace.
	p := newPortfolio(t, 100000)

	_, err := p.Buy(stockOrder(1680, 100))
	require.Error(t, err)

	var capErr *InsufficientCapitalError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "cash", capErr.Resource)
	assert.InDelta(t, 100000, capErr.Available, 1e-9)
	assert.Greater(t, capErr.Required, 168000.0)

	assert.InDelta(t, 100000, p.Cash(), 1e-9)
	assert.Empty(t, p.Positions())
	assert.Empty(t, p.Trades())
}

func TestBuyStockConservation(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 100000)

	trade, err := p.Buy(stockOrder(50, 100))
	require.NoError(t, err)

	notional := 50.0 * 100
	commission := notional * 0.0003
	slippage := notional * 0.001
	total := notional + commission + slippage

	assert.InDelta(t, 100000-total, p.Cash(), 1e-9)
	assert.InDelta(t, -total, trade.CashDelta, 1e-9)
	assert.InDelta(t, commission, trade.Commission, 1e-9)
	assert.InDelta(t, slippage, trade.Slippage, 1e-9)
	assert.Equal(t, Buy, trade.Action)
	assert.False(t, trade.Closing)

	pos, ok := p.Position("600519.SH")
	require.True(t, ok)
	assert.InDelta(t, 100, pos.Quantity, 1e-9)
	assert.InDelta(t, 50, pos.EntryPrice, 1e-9)
	assert.Zero(t, pos.MarginLocked)
}

func TestSellStockConservation(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 100000)
	_, err := p.Buy(stockOrder(50, 100))
	require.NoError(t, err)
	cashBefore := p.Cash()

	trade, err := p.Sell(stockOrder(60, 100))
	require.NoError(t, err)

	notional := 60.0 * 100
	costs := notional * 0.0013
	assert.InDelta(t, cashBefore+notional-costs, p.Cash(), 1e-9)
	assert.True(t, trade.Closing)
	assert.InDelta(t, (60-50)*100-costs, trade.RealizedPL, 1e-9)

	// full close removes the position from the ledger
	_, ok := p.Position("600519.SH")
	assert.False(t, ok)
}

func TestOverSell(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 100000)
	_, err := p.Buy(stockOrder(50, 100))
	require.NoError(t, err)
	cashBefore := p.Cash()

	_, err = p.Sell(stockOrder(60, 150))
	require.Error(t, err)

	var osErr *OverSellError
	require.True(t, errors.As(err, &osErr))
	assert.InDelta(t, 150, osErr.Requested, 1e-9)
	assert.InDelta(t, 100, osErr.Held, 1e-9)
	assert.InDelta(t, cashBefore, p.Cash(), 1e-9)

	// selling with no position at all is also an oversell
	_, err = p.Sell(Order{
		Symbol: "000001.SZ", AssetType: market.Stock,
		Price: 10, Quantity: 1, Time: day0,
	})
	require.True(t, errors.As(err, &osErr))
	assert.Zero(t, osErr.Held)
}

func TestWeightedAverageEntry(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 100000)
	_, err := p.Buy(stockOrder(10, 100))
	require.NoError(t, err)
	_, err = p.Buy(stockOrder(20, 100))
	require.NoError(t, err)

	pos, ok := p.Position("600519.SH")
	require.True(t, ok)
	assert.InDelta(t, 200, pos.Quantity, 1e-9)
	assert.InDelta(t, 15, pos.EntryPrice, 1e-9)
}

func TestBuyFuturesLocksMargin(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 300000)

	trade, err := p.Buy(futuresOrder(4000, 1))
	require.NoError(t, err)

	margin := 4000.0 * 1 * 300 * 0.15
	notional := 4000.0 * 1 * 300
	costs := notional * 0.0013

	assert.InDelta(t, 180000, margin, 1e-9)
	assert.InDelta(t, 300000-margin-costs, p.Cash(), 1e-9)
	assert.InDelta(t, margin, trade.MarginDelta, 1e-9)
	assert.InDelta(t, -(margin + costs), trade.CashDelta, 1e-9)
	assert.InDelta(t, margin, p.MarginUsed(), 1e-9)

	pos, ok := p.Position("IF2406.CFE")
	require.True(t, ok)
	assert.InDelta(t, margin, pos.MarginLocked, 1e-9)
	assert.InDelta(t, 3520, pos.LiquidationPrice, 1e-9)

	// margin at open matches the required-margin formula exactly
	assert.InDelta(t, RequiredMargin(pos.EntryPrice, pos.Quantity, pos.Multiplier, pos.MarginRate),
		pos.MarginLocked, 1e-9)
}

func TestBuyFuturesInsufficientMargin(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 100000)

	_, err := p.Buy(futuresOrder(4000, 1)) // needs 180k margin
	require.Error(t, err)

	var capErr *InsufficientCapitalError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "margin", capErr.Resource)
	assert.InDelta(t, 180000, capErr.Required, 1e-9)
	assert.InDelta(t, 100000, p.Cash(), 1e-9)
	assert.Empty(t, p.Positions())
}

func TestCloseFuturesReleasesMarginAndPnL(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 300000)
	_, err := p.Buy(futuresOrder(4000, 1))
	require.NoError(t, err)
	cashBefore := p.Cash()

	trade, err := p.Sell(futuresOrder(4100, 1))
	require.NoError(t, err)

	margin := 180000.0
	gross := (4100.0 - 4000.0) * 1 * 300
	costs := 4100.0 * 300 * 0.0013

	assert.InDelta(t, cashBefore+margin+gross-costs, p.Cash(), 1e-9)
	assert.InDelta(t, -margin, trade.MarginDelta, 1e-9)
	assert.InDelta(t, gross-costs, trade.RealizedPL, 1e-9)
	assert.Zero(t, p.MarginUsed())

	_, ok := p.Position("IF2406.CFE")
	assert.False(t, ok)
}

func TestShortFutures(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 300000)

	// selling with no position opens a short
	trade, err := p.Sell(futuresOrder(4000, 1))
	require.NoError(t, err)
	assert.Equal(t, Sell, trade.Action)
	assert.False(t, trade.Closing)

	pos, ok := p.Position("IF2406.CFE")
	require.True(t, ok)
	assert.InDelta(t, -1, pos.Quantity, 1e-9)
	assert.InDelta(t, 4480, pos.LiquidationPrice, 1e-9)

	// buying against the short covers it; price fell, short profits
	cashBefore := p.Cash()
	cover, err := p.Buy(futuresOrder(3900, 1))
	require.NoError(t, err)

	gross := (4000.0 - 3900.0) * 1 * 300
	costs := 3900.0 * 300 * 0.0013
	assert.True(t, cover.Closing)
	assert.Equal(t, Buy, cover.Action)
	assert.InDelta(t, gross-costs, cover.RealizedPL, 1e-9)
	assert.InDelta(t, cashBefore+180000+gross-costs, p.Cash(), 1e-9)
}

func TestPartialFuturesCloseReleasesProportionally(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 500000)
	_, err := p.Buy(futuresOrder(4000, 2))
	require.NoError(t, err)

	pos, _ := p.Position("IF2406.CFE")
	lockedBefore := pos.MarginLocked

	trade, err := p.Sell(futuresOrder(4000, 1))
	require.NoError(t, err)

	assert.InDelta(t, -lockedBefore/2, trade.MarginDelta, 1e-9)
	pos, ok := p.Position("IF2406.CFE")
	require.True(t, ok)
	assert.InDelta(t, 1, pos.Quantity, 1e-9)
	assert.InDelta(t, lockedBefore/2, pos.MarginLocked, 1e-9)
}

func TestOptionPremiumSettlement(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 100000)
	greeks := &Greeks{Delta: 0.5, Gamma: 0.02, Vega: 0.1, Theta: -0.05}

	trade, err := p.Buy(Order{
		Symbol:    "10004567",
		AssetType: market.Option,
		Price:     2.5,
		Quantity:  10,
		Time:      day0,
		Greeks:    greeks,
	})
	require.NoError(t, err)

	premium := 2.5 * 10
	costs := premium * 0.0013
	assert.InDelta(t, 100000-premium-costs, p.Cash(), 1e-9)
	assert.InDelta(t, -(premium + costs), trade.CashDelta, 1e-9)
	assert.Zero(t, p.MarginUsed())

	pos, ok := p.Position("10004567")
	require.True(t, ok)
	require.NotNil(t, pos.Greeks)
	assert.InDelta(t, 0.5, pos.Greeks.Delta, 1e-9)
}

func TestForceCloseTagsTrade(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 300000)
	_, err := p.Buy(futuresOrder(4000, 1))
	require.NoError(t, err)

	trade, err := p.ForceClose("IF2406.CFE", 3520, day0, "price 3520 breached threshold 3520")
	require.NoError(t, err)

	assert.True(t, trade.Forced)
	assert.True(t, trade.Closing)
	assert.Equal(t, "price 3520 breached threshold 3520", trade.ForcedReason)
	assert.Negative(t, trade.RealizedPL)

	_, ok := p.Position("IF2406.CFE")
	assert.False(t, ok)
	assert.GreaterOrEqual(t, p.Cash(), 0.0)
}

func TestForceCloseNeverDrivesCashNegative(t *testing.T) {
	t.Parallel()

	// a gap far through the liquidation level loses more than the
	// locked margin; the account bottoms out at zero
	p := New(Config{
		InitialCash:          200000,
		ForceCloseMarginRate: 0.03,
	})
	_, err := p.Buy(futuresOrder(4000, 1))
	require.NoError(t, err)

	_, err = p.ForceClose("IF2406.CFE", 3000, day0, "gap")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Cash(), 0.0)
}

func TestPositionLimit(t *testing.T) {
	t.Parallel()

	p := New(Config{
		InitialCash:   100000,
		MaxAllocation: 0.5,
	})

	_, err := p.Buy(stockOrder(60, 1000)) // 60k notional > 50k ceiling
	require.Error(t, err)

	var limErr *PositionLimitExceededError
	require.True(t, errors.As(err, &limErr))
	assert.InDelta(t, 60000, limErr.Allocated, 1e-9)
	assert.InDelta(t, 50000, limErr.Limit, 1e-9)
	assert.Empty(t, p.Positions())

	// under the ceiling the same order goes through
	_, err = p.Buy(stockOrder(40, 1000))
	require.NoError(t, err)
}

func TestEquityMarkToMarket(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 300000)
	_, err := p.Buy(futuresOrder(4000, 1))
	require.NoError(t, err)

	costs := 4000.0 * 300 * 0.0013
	// at entry, equity is initial cash minus transaction costs
	assert.InDelta(t, 300000-costs, p.Equity(), 1e-9)

	p.MarkToMarket(map[string]float64{"IF2406.CFE": 4100})
	assert.InDelta(t, 300000-costs+100*300, p.Equity(), 1e-9)

	p.MarkToMarket(map[string]float64{"IF2406.CFE": 3900})
	assert.InDelta(t, 300000-costs-100*300, p.Equity(), 1e-9)
}

func TestMarginAvailable(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 300000)
	_, err := p.Buy(futuresOrder(4000, 1))
	require.NoError(t, err)

	assert.InDelta(t, p.Equity()-p.MarginUsed(), p.MarginAvailable(), 1e-9)
	assert.LessOrEqual(t, p.MarginUsed(), p.Equity())
}

func TestBuyRejectsAssetTypeMismatch(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, 300000)
	_, err := p.Buy(stockOrder(50, 100))
	require.NoError(t, err)

	o := stockOrder(50, 100)
	o.AssetType = market.Futures
	o.Params = market.AssetParams{Multiplier: 300, MarginRate: 0.15}
	_, err = p.Buy(o)
	require.Error(t, err)
}
