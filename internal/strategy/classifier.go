package strategy

import (
	"TrendScreener/internal/model"
)

// IsUptrend reports whether every attached SuperTrend agrees the last bar is up.
// An instrument without bars or without indicators never qualifies.
func IsUptrend(ds *model.InstrumentDataset) bool {
	if ds == nil || ds.Series.Empty() || len(ds.Indicators) == 0 {
		return false
	}
	for i := range ds.Indicators {
		last, ok := ds.Indicators[i].Last()
		if !ok || !last.Up {
			return false
		}
	}
	return true
}

// Classify returns the uptrending instruments in universe order.
func Classify(agg *model.AggregateDataset) []string {
	if agg == nil {
		return nil
	}
	var out []string
	for _, sym := range agg.Symbols {
		if ds, ok := agg.Get(sym); ok && IsUptrend(ds) {
			out = append(out, sym)
		}
	}
	return out
}

// Summary counts the classification of one aggregate.
type Summary struct {
	Total    int
	Uptrend  int
	Errors   int
	Uptrends []string
}

// Summarize classifies agg and counts the outcome.
func Summarize(agg *model.AggregateDataset) Summary {
	up := Classify(agg)
	return Summary{
		Total:    len(agg.Symbols),
		Uptrend:  len(up),
		Errors:   len(agg.Errors),
		Uptrends: up,
	}
}
