package model

// InstrumentDataset is the per-instrument cache unit.
type InstrumentDataset struct {
	Symbol     string            `json:"symbol"`
	Series     PriceSeries       `json:"series"`
	Indicators []IndicatorResult `json:"indicators"`
}

// Indicator returns the attached result for p, if any.
func (d *InstrumentDataset) Indicator(p ParameterSet) (*IndicatorResult, bool) {
	for i := range d.Indicators {
		if d.Indicators[i].Params == p {
			return &d.Indicators[i], true
		}
	}
	return nil, false
}

// AggregateDataset covers the whole universe for one as-of date.
// Symbols keeps the universe order; Datasets is keyed by symbol.
type AggregateDataset struct {
	AsOf      string                        `json:"as_of"`
	Signature string                        `json:"signature"`
	Symbols   []string                      `json:"symbols"`
	Datasets  map[string]*InstrumentDataset `json:"datasets"`
	Errors    []string                      `json:"errors"`
}

// NewAggregateDataset creates an empty aggregate for the given run.
func NewAggregateDataset(asOf, signature string) *AggregateDataset {
	return &AggregateDataset{
		AsOf:      asOf,
		Signature: signature,
		Datasets:  make(map[string]*InstrumentDataset),
	}
}

// Add appends a dataset, keeping the first one stored for a symbol.
func (a *AggregateDataset) Add(ds *InstrumentDataset) {
	if _, ok := a.Datasets[ds.Symbol]; ok {
		return
	}
	a.Symbols = append(a.Symbols, ds.Symbol)
	a.Datasets[ds.Symbol] = ds
}

// Get returns the dataset for symbol.
func (a *AggregateDataset) Get(symbol string) (*InstrumentDataset, bool) {
	ds, ok := a.Datasets[symbol]
	return ds, ok
}
