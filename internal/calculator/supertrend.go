package calculator

import (
	"errors"
	"fmt"

	"TrendScreener/internal/model"
)

var (
	// ErrInsufficientData is returned when a series is too short for the indicator.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidParams is returned for a non-positive length or multiplier.
	ErrInvalidParams = errors.New("invalid parameter set")
)

// bandState is carried from one row to the next.
type bandState struct {
	upper float64
	lower float64
	up    bool
}

// SuperTrend computes the band-ratcheting trend indicator over bars.
// Requires at least 2 bars. Row 0 takes the raw bands and is down by convention.
func SuperTrend(bars []model.OHLCV, params model.ParameterSet) (*model.IndicatorResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if len(bars) < 2 {
		return nil, fmt.Errorf("%w: supertrend needs 2 bars, got %d", ErrInsufficientData, len(bars))
	}

	atr, err := CalculateATR(bars, params.Length)
	if err != nil {
		return nil, err
	}

	rows := make([]model.TrendRow, len(bars))
	var prev bandState
	for i, b := range bars {
		mid := (b.High + b.Low) / 2
		rawUpper := mid + params.Multiplier*atr[i]
		rawLower := mid - params.Multiplier*atr[i]

		var cur bandState
		if i == 0 {
			cur = bandState{upper: rawUpper, lower: rawLower}
		} else {
			cur = step(prev, b.Close, rawUpper, rawLower)
		}

		value := cur.upper
		if cur.up {
			value = cur.lower
		}
		rows[i] = model.TrendRow{Time: b.Time, Upper: cur.upper, Lower: cur.lower, Up: cur.up, Value: value}
		prev = cur
	}

	return &model.IndicatorResult{Params: params, Rows: rows}, nil
}

// step advances the band state by one bar. Comparisons are strict, so a close
// sitting exactly on a band (including zero-ATR collapse) keeps the prior direction.
func step(prev bandState, price, rawUpper, rawLower float64) bandState {
	cur := bandState{upper: rawUpper, lower: rawLower}
	if price > prev.upper && prev.upper > cur.upper {
		cur.upper = prev.upper
	}
	if price < prev.lower && prev.lower < cur.lower {
		cur.lower = prev.lower
	}

	switch {
	case price > prev.upper:
		cur.up = true
	case price < prev.lower:
		cur.up = false
	default:
		cur.up = prev.up
	}

	// While the trend persists the active band only moves toward price.
	if cur.up == prev.up {
		if cur.up && cur.lower < prev.lower {
			cur.lower = prev.lower
		}
		if !cur.up && cur.upper > prev.upper {
			cur.upper = prev.upper
		}
	}
	return cur
}

// SuperTrendAll computes one result per parameter set, in the given order.
func SuperTrendAll(bars []model.OHLCV, sets []model.ParameterSet) ([]model.IndicatorResult, error) {
	out := make([]model.IndicatorResult, 0, len(sets))
	for _, p := range sets {
		res, err := SuperTrend(bars, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, *res)
	}
	return out, nil
}
