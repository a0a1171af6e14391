package strategy

import (
	"context"
	"sort"

	"quantsim/indicators"
	"quantsim/portfolio"
)

// SMACross trades each symbol on a fast/slow moving-average crossover:
// buy when the fast average crosses above the slow, close the position when
// it crosses back below. One indicator pair per symbol, fed streaming.
type SMACross struct {
	fastPeriod int
	slowPeriod int
	sizePct    float64

	state map[string]*crossState
}

type crossState struct {
	fast     *indicators.SimpleMA
	slow     *indicators.SimpleMA
	lastDiff float64
	haveDiff bool
}

func NewSMACross(fast, slow int, sizePct float64) *SMACross {
	if fast <= 0 {
		fast = 5
	}
	if slow <= fast {
		slow = fast * 4
	}
	if sizePct <= 0 || sizePct > 1 {
		sizePct = 0.2
	}
	return &SMACross{
		fastPeriod: fast,
		slowPeriod: slow,
		sizePct:    sizePct,
		state:      make(map[string]*crossState),
	}
}

func (s *SMACross) Name() string { return "sma-cross" }

func (s *SMACross) OnDay(ctx context.Context, p *portfolio.Portfolio, day Day) ([]Signal, error) {
	// iterate symbols in stable order so runs are reproducible
	symbols := make([]string, 0, len(day.Bars))
	for sym := range day.Bars {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var signals []Signal
	for _, sym := range symbols {
		bar := day.Bars[sym]

		st := s.state[sym]
		if st == nil {
			st = &crossState{
				fast: indicators.NewMA(s.fastPeriod),
				slow: indicators.NewMA(s.slowPeriod),
			}
			s.state[sym] = st
		}

		st.fast.Update(bar.Close)
		st.slow.Update(bar.Close)
		if !st.slow.Ready() {
			continue
		}

		diff := st.fast.Value() - st.slow.Value()
		if !st.haveDiff {
			st.lastDiff, st.haveDiff = diff, true
			continue
		}
		crossedUp := st.lastDiff <= 0 && diff > 0
		crossedDown := st.lastDiff >= 0 && diff < 0
		st.lastDiff = diff

		_, open := p.Position(sym)
		switch {
		case crossedUp && !open:
			signals = append(signals, Signal{
				Symbol:          sym,
				Action:          Buy,
				PositionSizePct: s.sizePct,
			})
		case crossedDown && open:
			pos, _ := p.Position(sym)
			signals = append(signals, Signal{
				Symbol:   sym,
				Action:   Sell,
				Quantity: pos.Quantity,
			})
		}
	}
	return signals, nil
}
