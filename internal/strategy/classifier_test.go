package strategy

import (
	"testing"

	"TrendScreener/internal/model"

	"github.com/stretchr/testify/assert"
)

func dataset(symbol string, lastUp ...bool) *model.InstrumentDataset {
	ds := &model.InstrumentDataset{
		Symbol: symbol,
		Series: model.PriceSeries{Symbol: symbol, Bars: []model.OHLCV{{Close: 1}, {Close: 2}}},
	}
	for i, up := range lastUp {
		ds.Indicators = append(ds.Indicators, model.IndicatorResult{
			Params: model.ParameterSet{Length: 10 + i, Multiplier: float64(i + 1)},
			Rows:   []model.TrendRow{{Up: !up}, {Up: up}},
		})
	}
	return ds
}

func TestIsUptrend(t *testing.T) {
	tests := []struct {
		name string
		ds   *model.InstrumentDataset
		want bool
	}{
		{"all up", dataset("A", true, true, true), true},
		{"one down", dataset("B", true, false, true), false},
		{"all down", dataset("C", false, false, false), false},
		{"no indicators", dataset("D"), false},
		{"empty series", &model.InstrumentDataset{Symbol: "E"}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsUptrend(tt.ds), tt.name)
	}
}

func TestIsUptrend_OnlyLastRowCounts(t *testing.T) {
	ds := dataset("A", true)
	ds.Indicators[0].Rows = []model.TrendRow{{Up: true}, {Up: false}, {Up: true}}
	assert.True(t, IsUptrend(ds))
	ds.Indicators[0].Rows = append(ds.Indicators[0].Rows, model.TrendRow{Up: false})
	assert.False(t, IsUptrend(ds))
}

func TestClassify_KeepsUniverseOrder(t *testing.T) {
	agg := model.NewAggregateDataset("2024-03-05", "1y_1d_2024-03-05")
	agg.Add(dataset("ZEE.NS", true, true, true))
	agg.Add(dataset("ABB.NS", true, false, true))
	agg.Add(&model.InstrumentDataset{Symbol: "GONE.NS"})
	agg.Add(dataset("MRF.NS", true, true, true))
	agg.Errors = []string{"GONE.NS"}

	assert.Equal(t, []string{"ZEE.NS", "MRF.NS"}, Classify(agg))

	sum := Summarize(agg)
	assert.Equal(t, Summary{Total: 4, Uptrend: 2, Errors: 1, Uptrends: []string{"ZEE.NS", "MRF.NS"}}, sum)
}

func TestClassify_Empty(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Empty(t, Classify(model.NewAggregateDataset("d", "s")))
}
