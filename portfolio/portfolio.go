// Package portfolio owns cash, the open-position ledger, and the per-trade
// cost model. It is the single mutation point of a simulation run: Buy,
// Sell and ForceClose are serialized and atomic with respect to the
// cash/margin invariants (an order either fully executes or leaves no
// trace). Cash can never go negative.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"quantsim/internal/id"
	"quantsim/market"
)

// Config holds the account-level simulation parameters.
type Config struct {
	InitialCash          float64
	CommissionRate       float64
	SlippageRate         float64
	ForceCloseMarginRate float64

	// MaxAllocation caps total allocated capital (locked margin plus
	// entry notionals) as a fraction of equity. Zero disables the check.
	MaxAllocation float64
}

// Portfolio tracks cash and open positions for one simulation run.
// Each run constructs its own instance; there are no shared singletons.
type Portfolio struct {
	mu        sync.Mutex
	cfg       Config
	cash      float64
	positions map[string]*Position
	trades    []Trade
}

func New(cfg Config) *Portfolio {
	return &Portfolio{
		cfg:       cfg,
		cash:      cfg.InitialCash,
		positions: make(map[string]*Position),
	}
}

// Order is a request to buy or sell one symbol at a given price.
// Params carry the symbol's settlement parameters, already resolved by the
// caller (classifier defaults plus configuration overrides).
type Order struct {
	Symbol    string
	AssetType market.AssetType
	Price     float64
	Quantity  float64
	Time      time.Time
	Params    market.AssetParams
	Greeks    *Greeks
}

func (o Order) validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("portfolio: order has no symbol")
	}
	if !o.AssetType.Valid() {
		return fmt.Errorf("portfolio: %s: unknown asset type %q", o.Symbol, o.AssetType)
	}
	if o.Price <= 0 {
		return fmt.Errorf("portfolio: %s: price must be positive, got %v", o.Symbol, o.Price)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("portfolio: %s: quantity must be positive, got %v", o.Symbol, o.Quantity)
	}
	return nil
}

// multiplier returns the contract multiplier for the order; full-payment
// assets always settle at 1.
func (o Order) multiplier() float64 {
	if o.AssetType == market.Futures && o.Params.Multiplier > 0 {
		return o.Params.Multiplier
	}
	return 1
}

// Buy opens or extends a long position. For a symbol with an open short
// futures position it covers the short instead. Stocks and options debit
// the full notional (premium) plus costs; futures lock margin only.
func (p *Portfolio) Buy(o Order) (Trade, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := o.validate(); err != nil {
		return Trade{}, err
	}

	if pos := p.positions[o.Symbol]; pos != nil {
		if pos.AssetType != o.AssetType {
			return Trade{}, fmt.Errorf("portfolio: %s: open position is %s, order is %s",
				o.Symbol, pos.AssetType, o.AssetType)
		}
		if pos.AssetType == market.Futures && pos.Quantity < 0 {
			return p.reduce(pos, o.Price, o.Quantity, o.Time, Buy, false, "")
		}
	}

	if o.AssetType == market.Futures {
		return p.openFutures(o, false)
	}
	return p.openFull(o)
}

// Sell closes or reduces an existing long position. For futures with no
// open long it opens or extends a short instead. Reducing below the held
// quantity fails with OverSellError.
func (p *Portfolio) Sell(o Order) (Trade, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := o.validate(); err != nil {
		return Trade{}, err
	}

	pos := p.positions[o.Symbol]

	if o.AssetType == market.Futures {
		if pos == nil || pos.Quantity < 0 {
			return p.openFutures(o, true)
		}
	}
	if pos == nil || pos.Quantity < o.Quantity {
		held := 0.0
		if pos != nil {
			held = pos.Quantity
		}
		return Trade{}, &OverSellError{Symbol: o.Symbol, Requested: o.Quantity, Held: held}
	}
	return p.reduce(pos, o.Price, o.Quantity, o.Time, Sell, false, "")
}

// ForceClose involuntarily closes the full held quantity. It is invoked
// only by the liquidation monitor, bypasses the allocation ceiling, and
// can never be rejected for capital reasons.
func (p *Portfolio) ForceClose(symbol string, price float64, t time.Time, reason string) (Trade, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.positions[symbol]
	if pos == nil {
		return Trade{}, fmt.Errorf("portfolio: %s: no open position to force-close", symbol)
	}

	action := Sell
	if pos.Quantity < 0 {
		action = Buy
	}
	return p.reduce(pos, price, abs(pos.Quantity), t, action, true, reason)
}

// openFull settles a stock purchase or an option premium: the notional is
// debited in full, no margin involved.
func (p *Portfolio) openFull(o Order) (Trade, error) {
	notional := o.Price * o.Quantity
	commission, slippage := p.costs(notional)
	total := notional + commission + slippage

	if p.cash < total {
		return Trade{}, &InsufficientCapitalError{
			Symbol:    o.Symbol,
			Resource:  "cash",
			Required:  total,
			Available: p.cash,
		}
	}
	if err := p.checkAllocation(o.Symbol, notional); err != nil {
		return Trade{}, err
	}

	pos := p.positions[o.Symbol]
	if pos == nil {
		pos = &Position{
			Symbol:     o.Symbol,
			AssetType:  o.AssetType,
			Multiplier: 1,
			OpenTime:   o.Time,
			Greeks:     o.Greeks,
		}
		p.positions[o.Symbol] = pos
	}
	pos.EntryPrice = weightedEntry(pos.EntryPrice, pos.Quantity, o.Price, o.Quantity)
	pos.Quantity += o.Quantity
	pos.mark = o.Price
	if o.Greeks != nil {
		pos.Greeks = o.Greeks
	}

	p.cash -= total

	return p.record(Trade{
		Time:       o.Time,
		Symbol:     o.Symbol,
		AssetType:  o.AssetType,
		Action:     Buy,
		Price:      o.Price,
		Quantity:   o.Quantity,
		Commission: commission,
		Slippage:   slippage,
		CashDelta:  -total,
	}), nil
}

// openFutures locks margin for a new or extended futures exposure on
// either side. The liquidation price is re-derived from the new
// weighted-average entry before any state is mutated.
func (p *Portfolio) openFutures(o Order, short bool) (Trade, error) {
	mult := o.multiplier()
	notional := o.Price * o.Quantity * mult
	margin := RequiredMargin(o.Price, o.Quantity, mult, o.Params.MarginRate)
	commission, slippage := p.costs(notional)

	pos := p.positions[o.Symbol]
	oldQty, oldEntry := 0.0, 0.0
	if pos != nil {
		oldQty, oldEntry = pos.Quantity, pos.EntryPrice
	}
	entry := weightedEntry(oldEntry, oldQty, o.Price, o.Quantity)
	liq, err := LiquidationPrice(entry, o.Params.MarginRate, p.cfg.ForceCloseMarginRate, short)
	if err != nil {
		return Trade{}, err
	}

	if avail := p.marginAvailable(); avail < margin {
		return Trade{}, &InsufficientCapitalError{
			Symbol:    o.Symbol,
			Resource:  "margin",
			Required:  margin,
			Available: avail,
		}
	}
	total := margin + commission + slippage
	if p.cash < total {
		return Trade{}, &InsufficientCapitalError{
			Symbol:    o.Symbol,
			Resource:  "cash",
			Required:  total,
			Available: p.cash,
		}
	}
	if err := p.checkAllocation(o.Symbol, margin); err != nil {
		return Trade{}, err
	}

	if pos == nil {
		pos = &Position{
			Symbol:     o.Symbol,
			AssetType:  market.Futures,
			Multiplier: mult,
			MarginRate: o.Params.MarginRate,
			OpenTime:   o.Time,
		}
		p.positions[o.Symbol] = pos
	}
	signed := o.Quantity
	if short {
		signed = -o.Quantity
	}
	pos.EntryPrice = entry
	pos.Quantity += signed
	pos.MarginLocked += margin
	pos.LiquidationPrice = liq
	pos.mark = o.Price

	p.cash -= total

	action := Buy
	if short {
		action = Sell
	}
	return p.record(Trade{
		Time:        o.Time,
		Symbol:      o.Symbol,
		AssetType:   market.Futures,
		Action:      action,
		Price:       o.Price,
		Quantity:    o.Quantity,
		Commission:  commission,
		Slippage:    slippage,
		CashDelta:   -total,
		MarginDelta: margin,
	}), nil
}

// reduce closes part or all of a position. Futures release margin
// proportionally and realize signed P&L; full-payment assets credit the
// sale notional. Forced closes can never be rejected: a loss beyond the
// locked margin is absorbed at zero cash.
func (p *Portfolio) reduce(pos *Position, price, qty float64, t time.Time, action Action, forced bool, reason string) (Trade, error) {
	held := abs(pos.Quantity)
	if qty > held {
		if !forced {
			return Trade{}, &OverSellError{Symbol: pos.Symbol, Requested: qty, Held: held}
		}
		qty = held
	}

	notional := price * qty * pos.Multiplier
	commission, slippage := p.costs(notional)

	var cashDelta, marginDelta, pnl float64
	if pos.AssetType == market.Futures {
		direction := 1.0
		if pos.Quantity < 0 {
			direction = -1
		}
		released := pos.MarginLocked * qty / held
		gross := (price - pos.EntryPrice) * qty * pos.Multiplier * direction
		pnl = gross - commission - slippage
		cashDelta = released + gross - commission - slippage
		marginDelta = -released
	} else {
		pnl = (price-pos.EntryPrice)*qty*pos.Multiplier - commission - slippage
		cashDelta = notional - commission - slippage
	}

	if p.cash+cashDelta < 0 {
		if !forced {
			return Trade{}, &InsufficientCapitalError{
				Symbol:    pos.Symbol,
				Resource:  "cash",
				Required:  -cashDelta,
				Available: p.cash,
			}
		}
		// the account cannot go below zero
		cashDelta = -p.cash
	}

	p.cash += cashDelta
	pos.MarginLocked += marginDelta
	if pos.Quantity < 0 {
		pos.Quantity += qty
	} else {
		pos.Quantity -= qty
	}
	pos.mark = price
	if math.Abs(pos.Quantity) < 1e-9 {
		delete(p.positions, pos.Symbol)
	}

	return p.record(Trade{
		Time:         t,
		Symbol:       pos.Symbol,
		AssetType:    pos.AssetType,
		Action:       action,
		Price:        price,
		Quantity:     qty,
		Commission:   commission,
		Slippage:     slippage,
		CashDelta:    cashDelta,
		MarginDelta:  marginDelta,
		Closing:      true,
		RealizedPL:   pnl,
		Forced:       forced,
		ForcedReason: reason,
	}), nil
}

func (p *Portfolio) record(t Trade) Trade {
	t.ID = id.New()
	p.trades = append(p.trades, t)
	return t
}

func (p *Portfolio) costs(notional float64) (commission, slippage float64) {
	return notional * p.cfg.CommissionRate, notional * p.cfg.SlippageRate
}

// checkAllocation enforces the position-size ceiling on opening orders.
func (p *Portfolio) checkAllocation(symbol string, add float64) error {
	if p.cfg.MaxAllocation <= 0 {
		return nil
	}
	allocated := add
	for _, pos := range p.positions {
		allocated += pos.allocated()
	}
	limit := p.cfg.MaxAllocation * p.equity()
	if allocated > limit {
		return &PositionLimitExceededError{Symbol: symbol, Allocated: allocated, Limit: limit}
	}
	return nil
}

// MarkToMarket updates the reference price of every open position present
// in prices. Symbols without a price keep their previous mark.
func (p *Portfolio) MarkToMarket(prices map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for sym, px := range prices {
		if pos, ok := p.positions[sym]; ok && px > 0 {
			pos.mark = px
		}
	}
}

func (p *Portfolio) equity() float64 {
	eq := p.cash
	for _, pos := range p.positions {
		eq += pos.MarketValue()
	}
	return eq
}

func (p *Portfolio) marginUsed() float64 {
	var used float64
	for _, pos := range p.positions {
		used += pos.MarginLocked
	}
	return used
}

func (p *Portfolio) marginAvailable() float64 {
	return p.equity() - p.marginUsed()
}

// Cash is the unencumbered capital; never negative.
func (p *Portfolio) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

// Equity is cash plus the mark-to-market value of all open positions.
func (p *Portfolio) Equity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equity()
}

// MarginUsed is the sum of locked margin across open futures positions.
func (p *Portfolio) MarginUsed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.marginUsed()
}

// MarginAvailable is equity minus locked margin.
func (p *Portfolio) MarginAvailable() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.marginAvailable()
}

// Position returns a copy of the open position for symbol, if any.
func (p *Portfolio) Position(symbol string) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions, ordered by symbol.
func (p *Portfolio) Positions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Trades returns a copy of the ledger in execution order.
func (p *Portfolio) Trades() []Trade {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

func weightedEntry(entry, qty, addPrice, addQty float64) float64 {
	total := abs(qty) + addQty
	if total == 0 {
		return addPrice
	}
	return (entry*abs(qty) + addPrice*addQty) / total
}
