package backtest

import (
	"quantsim/market"
)

// AssetInfo is a symbol's resolved type and settlement parameters.
type AssetInfo struct {
	Type   market.AssetType
	Params market.AssetParams
}

// AssetTable resolves symbols to AssetInfo. Pattern classification provides
// the type; explicit entries override both type and parameters, and are the
// only way to trade a symbol the classifier cannot recognize.
type AssetTable struct {
	entries map[string]AssetInfo
}

func NewAssetTable() *AssetTable {
	return &AssetTable{entries: make(map[string]AssetInfo)}
}

// Set registers an explicit asset entry for symbol.
func (t *AssetTable) Set(symbol string, info AssetInfo) {
	t.entries[symbol] = info
}

// Resolve returns the asset info for symbol, classifying and caching it on
// first use. Unknown patterns surface market.UnclassifiableSymbolError.
func (t *AssetTable) Resolve(symbol string) (AssetInfo, error) {
	if info, ok := t.entries[symbol]; ok {
		return info, nil
	}
	at, err := market.Classify(symbol)
	if err != nil {
		return AssetInfo{}, err
	}
	info := AssetInfo{Type: at, Params: market.DefaultParams(at)}
	t.entries[symbol] = info
	return info, nil
}
