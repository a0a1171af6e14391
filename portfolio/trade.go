package portfolio

import (
	"time"

	"quantsim/market"
)

// Action is the direction of an executed trade.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Trade is one immutable ledger entry, appended on every executed buy,
// sell, or forced liquidation. Field names are part of the stable contract
// consumed by downstream reporting.
type Trade struct {
	ID        string           `json:"id"`
	Time      time.Time        `json:"timestamp"`
	Symbol    string           `json:"symbol"`
	AssetType market.AssetType `json:"asset_type"`
	Action    Action           `json:"action"`
	Price     float64          `json:"price"`
	Quantity  float64          `json:"quantity"`

	Commission float64 `json:"commission"`
	Slippage   float64 `json:"slippage"`

	// CashDelta is the signed change to cash; MarginDelta is the signed
	// change to locked margin (negative = released).
	CashDelta   float64 `json:"cash_delta"`
	MarginDelta float64 `json:"margin_delta"`

	// Closing trades carry the realized P&L of the portion closed,
	// net of commission and slippage.
	Closing    bool    `json:"closing"`
	RealizedPL float64 `json:"realized_pl"`

	Forced       bool   `json:"is_forced_liquidation"`
	ForcedReason string `json:"liquidation_reason,omitempty"`
}
