package calculator

import "errors"

// ErrInvalidSpan is returned when a smoothing span is not positive.
var ErrInvalidSpan = errors.New("span must be positive")

// CalculateEMA returns the exponential moving average of values with the given span,
// seeded with the first value: ema[0] = v[0], ema[i] = α·v[i] + (1-α)·ema[i-1], α = 2/(span+1).
func CalculateEMA(values []float64, span int) ([]float64, error) {
	if span <= 0 {
		return nil, ErrInvalidSpan
	}
	if len(values) == 0 {
		return nil, nil
	}
	alpha := 2.0 / float64(span+1)
	ema := make([]float64, len(values))
	ema[0] = values[0]
	for i := 1; i < len(values); i++ {
		ema[i] = alpha*values[i] + (1-alpha)*ema[i-1]
	}
	return ema, nil
}
