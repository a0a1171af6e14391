package portfolio

import "fmt"

// InsufficientCapitalError rejects an order that the account cannot fund.
// Resource is "cash" for full-payment settlement and "margin" for futures.
type InsufficientCapitalError struct {
	Symbol    string
	Resource  string
	Required  float64
	Available float64
}

func (e *InsufficientCapitalError) Error() string {
	return fmt.Sprintf("portfolio: %s: insufficient %s: required %.2f, available %.2f",
		e.Symbol, e.Resource, e.Required, e.Available)
}

// OverSellError rejects a reduction below the held quantity.
type OverSellError struct {
	Symbol    string
	Requested float64
	Held      float64
}

func (e *OverSellError) Error() string {
	return fmt.Sprintf("portfolio: %s: cannot reduce by %.0f, only %.0f held",
		e.Symbol, e.Requested, e.Held)
}

// PositionLimitExceededError rejects an opening order that would push total
// allocated capital past the configured ceiling. Forced closes bypass it.
type PositionLimitExceededError struct {
	Symbol    string
	Allocated float64
	Limit     float64
}

func (e *PositionLimitExceededError) Error() string {
	return fmt.Sprintf("portfolio: %s: allocation %.2f exceeds limit %.2f",
		e.Symbol, e.Allocated, e.Limit)
}
