package market

import "time"

// Bar is one daily OHLCV row for a symbol. Bars arrive pre-validated from
// the data layer; the engine never repairs or interpolates them.
type Bar struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}
