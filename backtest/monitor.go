package backtest

import (
	"fmt"
	"time"

	"quantsim/market"
	"quantsim/portfolio"
)

// Monitor is the forced-liquidation sweep. It runs once per simulated day,
// strictly before the day's strategy signals: a strategy must never see or
// trade a position that should already have been closed on the current
// bar's price.
type Monitor struct{}

// Sweep compares each open futures position against its liquidation
// threshold at the day's reference (close) price. Long positions liquidate
// at or below the threshold, shorts at or above. It returns the forced
// trades and the set of symbols closed, which the runner excludes from the
// day's signal processing.
func (Monitor) Sweep(p *portfolio.Portfolio, bars map[string]market.Bar, t time.Time) ([]portfolio.Trade, map[string]bool, error) {
	var trades []portfolio.Trade
	liquidated := make(map[string]bool)

	for _, pos := range p.Positions() {
		if pos.AssetType != market.Futures {
			continue
		}
		bar, ok := bars[pos.Symbol]
		if !ok {
			// no reference price today, check again tomorrow
			continue
		}

		ref := bar.Close
		long := pos.Quantity > 0
		if long && ref > pos.LiquidationPrice {
			continue
		}
		if !long && ref < pos.LiquidationPrice {
			continue
		}

		reason := fmt.Sprintf("price %.4f breached liquidation threshold %.4f", ref, pos.LiquidationPrice)
		trade, err := p.ForceClose(pos.Symbol, ref, t, reason)
		if err != nil {
			return trades, liquidated, err
		}
		trades = append(trades, trade)
		liquidated[pos.Symbol] = true
	}
	return trades, liquidated, nil
}
