package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries holds the raw bars of one instrument for one (period, interval) window.
// EMA is a derived column aligned 1:1 with Bars.
type PriceSeries struct {
	Symbol    string    `json:"symbol"`
	Period    string    `json:"period"`
	Interval  string    `json:"interval"`
	Bars      []OHLCV   `json:"bars"`
	EMA       []float64 `json:"ema"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Empty reports whether the series carries no bars.
func (s *PriceSeries) Empty() bool { return len(s.Bars) == 0 }

// Closes returns the close column.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}
