package calculator

import (
	"math"

	"TrendScreener/internal/model"
)

// TrueRange returns the per-bar true range. The first bar has no previous close and uses high-low.
func TrueRange(bars []model.OHLCV) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		hl := b.High - b.Low
		if i == 0 {
			tr[i] = hl
			continue
		}
		prevClose := bars[i-1].Close
		tr[i] = math.Max(hl, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}
	return tr
}

// CalculateATR returns the true range smoothed with an EMA of the given span.
func CalculateATR(bars []model.OHLCV, span int) ([]float64, error) {
	return CalculateEMA(TrueRange(bars), span)
}
