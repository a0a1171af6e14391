// Package strategy defines the seam between the simulation core and the
// signal-generation layer. The runner treats strategies as synchronous
// black boxes: one call per trading day, zero or more signals back.
package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quantsim/market"
	"quantsim/portfolio"
)

// Action is a strategy decision for one symbol on one day.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Signal is one per-symbol decision. Quantity and PriceHint are optional;
// when Quantity is zero the runner sizes the order from PositionSizePct.
// StopLoss/TakeProfit are advisory to the strategy layer only and are not
// enforced by the portfolio.
type Signal struct {
	Symbol          string            `json:"symbol"`
	Action          Action            `json:"action"`
	PriceHint       float64           `json:"price_hint,omitempty"`
	Quantity        float64           `json:"quantity_hint,omitempty"`
	PositionSizePct float64           `json:"position_size_pct,omitempty"`
	StopLoss        float64           `json:"stop_loss,omitempty"`
	TakeProfit      float64           `json:"take_profit,omitempty"`
	Greeks          *portfolio.Greeks `json:"greeks,omitempty"`
}

// Day is the market snapshot handed to a strategy: all bars available for
// the current trading day, keyed by symbol.
type Day struct {
	Time time.Time
	Bars map[string]market.Bar
}

// Strategy produces signals for one trading day given read access to the
// current portfolio state.
type Strategy interface {
	Name() string
	OnDay(ctx context.Context, p *portfolio.Portfolio, day Day) ([]Signal, error)
}

// ByName constructs a registered reference strategy.
func ByName(name string, fast, slow int, sizePct float64) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return Noop{}, nil
	case "sma-cross", "smacross":
		return NewSMACross(fast, slow, sizePct), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: noop, sma-cross)", name)
	}
}
