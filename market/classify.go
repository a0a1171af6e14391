package market

import (
	"fmt"
	"regexp"
	"strings"
)

// UnclassifiableSymbolError is returned when a symbol matches none of the
// known code patterns. Callers must then supply an explicit asset type.
type UnclassifiableSymbolError struct {
	Symbol string
}

func (e *UnclassifiableSymbolError) Error() string {
	return fmt.Sprintf("market: cannot classify symbol %q", e.Symbol)
}

var (
	// 6-digit code plus exchange suffix, e.g. 600519.SH, 000001.SZ.
	stockRe = regexp.MustCompile(`^\d{6}\.(SH|SZ|BJ)$`)

	// 1-2 letters, 4-digit expiry, futures-exchange suffix,
	// e.g. IF2406.CFE, cu2412.SHF.
	futuresRe = regexp.MustCompile(`^[A-Za-z]{1,2}\d{4}\.(CFE|SHF|DCE|CZC|INE|GFE)$`)

	// 8-digit option code with a reserved prefix (10 = SSE, 90 = SZSE).
	optionRe = regexp.MustCompile(`^(10|90)\d{6}$`)
)

// Classify maps a symbol string to its asset type by code pattern.
// It is deterministic and has no side effects.
func Classify(symbol string) (AssetType, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	switch {
	case stockRe.MatchString(s):
		return Stock, nil
	case futuresRe.MatchString(s):
		return Futures, nil
	case optionRe.MatchString(s):
		return Option, nil
	}
	return "", &UnclassifiableSymbolError{Symbol: symbol}
}
