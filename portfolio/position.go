package portfolio

import (
	"time"

	"quantsim/market"
)

// Greeks are option price sensitivities carried as descriptive metadata.
// The engine never computes them; they arrive from the signal layer.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
}

// Position is one open exposure per symbol. Quantity is signed: negative
// means a short futures position (stocks and options are long-only).
// A position is removed from the ledger, never zeroed, on full close.
type Position struct {
	Symbol     string           `json:"symbol"`
	AssetType  market.AssetType `json:"asset_type"`
	Quantity   float64          `json:"quantity"`
	EntryPrice float64          `json:"entry_price"`
	Multiplier float64          `json:"multiplier"`
	MarginRate float64          `json:"margin_rate,omitempty"`

	MarginLocked     float64 `json:"margin_locked,omitempty"`
	LiquidationPrice float64 `json:"liquidation_price,omitempty"`

	Greeks *Greeks `json:"greeks,omitempty"`

	OpenTime time.Time `json:"open_time"`

	// last known market price, defaults to entry until marked
	mark float64
}

// Mark returns the last mark-to-market reference price.
func (p *Position) Mark() float64 {
	if p.mark == 0 {
		return p.EntryPrice
	}
	return p.mark
}

// MarketValue is the position's contribution to total equity.
// Futures carry their locked margin plus unrealized P&L; full-payment
// assets are simply quantity times mark.
func (p *Position) MarketValue() float64 {
	if p.AssetType == market.Futures {
		return p.MarginLocked + p.UnrealizedPL()
	}
	return p.Quantity * p.Mark() * p.Multiplier
}

// UnrealizedPL is the signed open P&L at the current mark.
// The signed quantity makes the formula hold for shorts.
func (p *Position) UnrealizedPL() float64 {
	return (p.Mark() - p.EntryPrice) * p.Quantity * p.Multiplier
}

// allocated is the capital this position counts against the allocation
// ceiling: locked margin for futures, entry notional otherwise.
func (p *Position) allocated() float64 {
	if p.AssetType == market.Futures {
		return p.MarginLocked
	}
	return abs(p.Quantity) * p.EntryPrice * p.Multiplier
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
