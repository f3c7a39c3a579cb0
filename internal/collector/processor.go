package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TrendScreener/internal/cache"
	"TrendScreener/internal/calculator"
	"TrendScreener/internal/logger"
	"TrendScreener/internal/metrics"
	"TrendScreener/internal/model"

	"github.com/sirupsen/logrus"
)

// DefaultEMASpan is the smoothing span of the EMA column attached to every series.
const DefaultEMASpan = 5

// DefaultParams are the SuperTrend configurations evaluated per instrument.
var DefaultParams = []model.ParameterSet{
	{Length: 10, Multiplier: 1},
	{Length: 11, Multiplier: 2},
	{Length: 12, Multiplier: 3},
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Request Request
	Params  []model.ParameterSet
	EMASpan int
	SaveCSV bool
}

// Processor loads or fetches one instrument and attaches its indicators.
type Processor struct {
	Fetcher Fetcher
	Store   cache.Store
	Metrics *metrics.Metrics
	Log     *logrus.Entry
	Now     func() time.Time

	request Request
	params  []model.ParameterSet
	emaSpan int
	saveCSV bool
}

// NewProcessor validates cfg and creates a Processor.
func NewProcessor(fetcher Fetcher, store cache.Store, cfg ProcessorConfig, log *logrus.Entry) (*Processor, error) {
	if err := cfg.Request.Validate(); err != nil {
		return nil, err
	}
	params := cfg.Params
	if len(params) == 0 {
		params = DefaultParams
	}
	seen := make(map[model.ParameterSet]bool, len(params))
	for _, p := range params {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", calculator.ErrInvalidParams, p.ID(), err)
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: duplicate %s", calculator.ErrInvalidParams, p.ID())
		}
		seen[p] = true
	}
	if log == nil {
		log = logger.WithComponent("processor")
	}
	span := cfg.EMASpan
	if span <= 0 {
		span = DefaultEMASpan
	}
	return &Processor{
		Fetcher: fetcher,
		Store:   store,
		Log:     log,
		Now:     time.Now,
		request: cfg.Request,
		params:  append([]model.ParameterSet(nil), params...),
		emaSpan: span,
		saveCSV: cfg.SaveCSV,
	}, nil
}

// Request returns the fetch window of the processor.
func (p *Processor) Request() Request { return p.request }

// Params returns the configured parameter sets.
func (p *Processor) Params() []model.ParameterSet {
	return append([]model.ParameterSet(nil), p.params...)
}

// Process returns the dataset of symbol for the as-of date.
// On ErrDataUnavailable or ErrInsufficientData it returns a placeholder dataset
// without indicators together with the error, so the caller can record it and go on.
func (p *Processor) Process(ctx context.Context, asOf, symbol string, force bool) (*model.InstrumentDataset, error) {
	signature := p.request.Signature(asOf)
	log := p.Log.WithField("symbol", symbol)

	h, err := p.Store.Open(cache.InstrumentKey(asOf, signature, symbol))
	if err != nil {
		log.WithError(err).Warn("open instrument cache failed, continuing uncached")
		h = nil
	}

	var ds *model.InstrumentDataset
	if h != nil && !force {
		ds = p.load(h, symbol, log)
	}
	fromCache := ds != nil

	if ds == nil {
		series, err := p.fetch(ctx, symbol)
		if err != nil {
			p.Metrics.ObserveInstrument("error")
			return &model.InstrumentDataset{Symbol: symbol}, err
		}
		ds = &model.InstrumentDataset{Symbol: symbol, Series: *series}
		if p.saveCSV {
			p.writeSnapshot(asOf, signature, &ds.Series, log)
		}
	}

	changed, err := p.attach(ds)
	if err != nil {
		p.Metrics.ObserveInstrument("error")
		ds.Indicators = nil
		return ds, err
	}

	if h != nil && (!fromCache || changed) {
		if err := cache.Save(h, ds); err != nil {
			log.WithError(err).Warn("write instrument cache failed")
		}
	}
	if fromCache {
		p.Metrics.ObserveInstrument("cache")
	} else {
		p.Metrics.ObserveInstrument("fetch")
	}
	return ds, nil
}

// load decodes a cached dataset. A miss, a corrupt entry or a mismatched symbol all return nil.
func (p *Processor) load(h cache.Handle, symbol string, log *logrus.Entry) *model.InstrumentDataset {
	var ds model.InstrumentDataset
	ok, err := cache.Load(h, &ds)
	switch {
	case errors.Is(err, cache.ErrCorrupt):
		log.WithError(err).Warn("instrument cache corrupt, refetching")
		return nil
	case err != nil:
		log.WithError(err).Warn("read instrument cache failed, refetching")
		return nil
	case !ok:
		return nil
	case ds.Symbol != symbol || ds.Series.Empty():
		log.Warn("instrument cache holds unexpected content, refetching")
		return nil
	}
	return &ds
}

func (p *Processor) fetch(ctx context.Context, symbol string) (*model.PriceSeries, error) {
	start := time.Now()
	bars, err := p.Fetcher.Fetch(ctx, symbol, p.request)
	p.Metrics.ObserveFetch(time.Since(start))
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s: empty series", ErrDataUnavailable, symbol)
	}
	return &model.PriceSeries{
		Symbol:    symbol,
		Period:    p.request.Window(),
		Interval:  p.request.Interval,
		Bars:      bars,
		FetchedAt: p.Now().UTC(),
	}, nil
}

// attach fills the EMA column and one IndicatorResult per configured parameter set,
// reusing cached results that still line up with the bars. It reports whether anything was recomputed.
func (p *Processor) attach(ds *model.InstrumentDataset) (bool, error) {
	changed := false
	bars := ds.Series.Bars

	if len(ds.Series.EMA) != len(bars) {
		ema, err := calculator.CalculateEMA(ds.Series.Closes(), p.emaSpan)
		if err != nil {
			return false, err
		}
		ds.Series.EMA = ema
		changed = true
	}

	results := make([]model.IndicatorResult, 0, len(p.params))
	for _, params := range p.params {
		if cached, ok := ds.Indicator(params); ok && len(cached.Rows) == len(bars) {
			results = append(results, *cached)
			continue
		}
		res, err := calculator.SuperTrend(bars, params)
		if err != nil {
			return false, fmt.Errorf("%s %s: %w", ds.Symbol, params, err)
		}
		results = append(results, *res)
		changed = true
	}
	if len(ds.Indicators) != len(results) {
		changed = true
	}
	ds.Indicators = results
	return changed, nil
}

func (p *Processor) writeSnapshot(asOf, signature string, series *model.PriceSeries, log *logrus.Entry) {
	h, err := p.Store.Open(cache.SnapshotKey(asOf, signature, series.Symbol))
	if err != nil {
		log.WithError(err).Warn("open snapshot failed")
		return
	}
	data, err := EncodeSnapshot(series)
	if err != nil {
		log.WithError(err).Warn("encode snapshot failed")
		return
	}
	if err := h.Write(data); err != nil {
		log.WithError(err).Warn("write snapshot failed")
	}
}
