package model

import (
	"fmt"
	"strconv"
	"time"
)

// ParameterSet identifies one SuperTrend configuration.
type ParameterSet struct {
	Length     int     `json:"length" yaml:"length"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// ID returns the "{length}_{multiplier}" column suffix.
func (p ParameterSet) ID() string {
	return fmt.Sprintf("%d_%s", p.Length, strconv.FormatFloat(p.Multiplier, 'f', -1, 64))
}

// Validate checks that the parameters can drive the indicator.
func (p ParameterSet) Validate() error {
	if p.Length <= 0 {
		return fmt.Errorf("length must be positive, got %d", p.Length)
	}
	if p.Multiplier <= 0 {
		return fmt.Errorf("multiplier must be positive, got %v", p.Multiplier)
	}
	return nil
}

func (p ParameterSet) String() string { return "SuperTrend_" + p.ID() }

// TrendRow is one bar of SuperTrend output.
type TrendRow struct {
	Time  time.Time `json:"time"`
	Upper float64   `json:"upper"`
	Lower float64   `json:"lower"`
	Up    bool      `json:"up"`
	Value float64   `json:"value"`
}

// IndicatorResult is the SuperTrend output over a whole series, aligned 1:1 with its bars.
type IndicatorResult struct {
	Params ParameterSet `json:"params"`
	Rows   []TrendRow   `json:"rows"`
}

// Last returns the most recent row.
func (r *IndicatorResult) Last() (TrendRow, bool) {
	if len(r.Rows) == 0 {
		return TrendRow{}, false
	}
	return r.Rows[len(r.Rows)-1], true
}
