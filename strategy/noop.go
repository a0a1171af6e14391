package strategy

import (
	"context"

	"quantsim/portfolio"
)

// Noop emits no signals. Useful as a baseline: a run with it exercises only
// mark-to-market and the liquidation monitor.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnDay(ctx context.Context, p *portfolio.Portfolio, day Day) ([]Signal, error) {
	return nil, nil
}
