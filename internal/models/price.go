package models

import "time"

// PricePoint is a single provider observation. Timestamp is epoch milliseconds.
type PricePoint struct {
	Timestamp int64   `json:"t"`
	Price     float64 `json:"p"`
}

func (p PricePoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

// PriceSeries is sorted ascending by timestamp; spacing may be irregular.
type PriceSeries []PricePoint

func (s PriceSeries) First() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[0], true
}

func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

// PriceHistory is what the market-data provider returns for one token.
// Volumes reuse PricePoint with the traded volume in Price.
type PriceHistory struct {
	TokenID    string      `json:"tokenId"`
	VsCurrency string      `json:"vsCurrency"`
	Prices     PriceSeries `json:"prices"`
	Volumes    PriceSeries `json:"volumes"`
}

type SimplePriceQuote struct {
	USD          float64  `json:"usd"`
	Change24hPct *float64 `json:"usd24hChange,omitempty"`
	Volume24h    *float64 `json:"usd24hVol,omitempty"`
}
