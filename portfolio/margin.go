package portfolio

import (
	"fmt"
	"math"
)

// InvalidMarginConfigError is returned when the opening margin rate does not
// exceed the force-close rate. With no buffer between the two, every futures
// position would be liquidatable the moment it opens.
type InvalidMarginConfigError struct {
	MarginRate           float64
	ForceCloseMarginRate float64
}

func (e *InvalidMarginConfigError) Error() string {
	return fmt.Sprintf("portfolio: margin rate %.4f must exceed force-close margin rate %.4f",
		e.MarginRate, e.ForceCloseMarginRate)
}

// RequiredMargin is the capital locked to carry a futures exposure.
func RequiredMargin(price, quantity, multiplier, marginRate float64) float64 {
	return price * math.Abs(quantity) * multiplier * marginRate
}

// LiquidationPrice converts the margin buffer into an absolute price level.
// The buffer marginRate-forceCloseMarginRate is the loss the position can
// absorb before the broker's forced-close threshold; expressing it as a
// price avoids re-deriving the trigger from floating P&L every day.
func LiquidationPrice(entryPrice, marginRate, forceCloseMarginRate float64, short bool) (float64, error) {
	if marginRate <= forceCloseMarginRate {
		return 0, &InvalidMarginConfigError{
			MarginRate:           marginRate,
			ForceCloseMarginRate: forceCloseMarginRate,
		}
	}

	buffer := marginRate - forceCloseMarginRate
	if short {
		return entryPrice * (1 + buffer), nil
	}
	return entryPrice * (1 - buffer), nil
}
