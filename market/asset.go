package market

// AssetType tags a symbol with its settlement model.
type AssetType string

const (
	Stock   AssetType = "stock"
	Futures AssetType = "futures"
	Option  AssetType = "option"
)

// Valid reports whether t is one of the known asset types.
func (t AssetType) Valid() bool {
	switch t {
	case Stock, Futures, Option:
		return true
	}
	return false
}

// AssetParams are the settlement parameters attached to a symbol.
// Multiplier converts a futures quote into notional exposure; it is 1 for
// stocks and options. MarginRate only matters for futures.
type AssetParams struct {
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
	MarginRate float64 `json:"margin_rate" yaml:"margin_rate"`
	TickSize   float64 `json:"tick_size" yaml:"tick_size"`
}

// DefaultParams returns conservative settlement defaults per asset type.
// Real contracts should override these through run configuration.
func DefaultParams(t AssetType) AssetParams {
	switch t {
	case Futures:
		return AssetParams{Multiplier: 10, MarginRate: 0.15, TickSize: 1}
	case Option:
		return AssetParams{Multiplier: 1, MarginRate: 0, TickSize: 0.0001}
	default:
		return AssetParams{Multiplier: 1, MarginRate: 0, TickSize: 0.01}
	}
}
