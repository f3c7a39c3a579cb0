package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"TrendScreener/internal/cache"
	"TrendScreener/internal/collector"
	"TrendScreener/internal/logger"
	"TrendScreener/internal/metrics"
	"TrendScreener/internal/model"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyUniverse is returned when a scan is started without instruments.
var ErrEmptyUniverse = errors.New("empty universe")

// InstrumentProcessor produces the dataset of one instrument.
type InstrumentProcessor interface {
	Process(ctx context.Context, asOf, symbol string, force bool) (*model.InstrumentDataset, error)
	Request() collector.Request
	Params() []model.ParameterSet
}

// Options configures a Scanner.
type Options struct {
	Workers           int
	InstrumentTimeout time.Duration
}

// Scanner runs the processor across a universe and caches the aggregate.
type Scanner struct {
	Processor InstrumentProcessor
	Store     cache.Store
	Metrics   *metrics.Metrics
	Log       *logrus.Entry
	Now       func() time.Time

	workers int
	timeout time.Duration
}

// Result is the outcome of one scan.
type Result struct {
	Aggregate *model.AggregateDataset
	FromCache bool
	Processed int
	Duration  time.Duration
}

// Errors returns the instruments that failed during the scan.
func (r *Result) Errors() []string { return r.Aggregate.Errors }

// New creates a Scanner. Workers defaults to the number of CPUs.
func New(proc InstrumentProcessor, store cache.Store, opts Options) *Scanner {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scanner{
		Processor: proc,
		Store:     store,
		Log:       logger.WithComponent("scanner"),
		Now:       time.Now,
		workers:   workers,
		timeout:   opts.InstrumentTimeout,
	}
}

// outcome is what one worker hands back for its slot.
type outcome struct {
	ds  *model.InstrumentDataset
	err error
}

// Run scans universe for the current date. A decodable aggregate entry for today
// short-circuits the scan unless force is set.
func (s *Scanner) Run(ctx context.Context, universe []string, force bool) (*Result, error) {
	start := time.Now()
	symbols := dedupe(universe)
	if len(symbols) == 0 {
		return nil, ErrEmptyUniverse
	}
	req := s.Processor.Request()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	asOf := cache.AsOfDate(s.Now())
	signature := req.Signature(asOf)
	log := s.Log.WithFields(logrus.Fields{"as_of": asOf, "signature": signature})

	h, err := s.Store.Open(cache.AggregateKey(asOf, signature))
	if err != nil {
		return nil, fmt.Errorf("open aggregate cache: %w", err)
	}

	populated := false
	if agg, ok := s.loadAggregate(h, s.Processor.Params(), log); ok {
		populated = true
		if !force {
			log.WithField("instruments", len(agg.Symbols)).Info("aggregate loaded from cache")
			s.Metrics.ObserveAggregateHit()
			return &Result{Aggregate: agg, FromCache: true, Duration: time.Since(start)}, nil
		}
	}

	log.WithFields(logrus.Fields{"instruments": len(symbols), "workers": s.workers}).Info("scanning universe")
	outcomes, err := s.dispatch(ctx, asOf, symbols, force)
	if err != nil {
		return nil, err
	}

	agg := model.NewAggregateDataset(asOf, signature)
	processed := 0
	for i, sym := range symbols {
		o := outcomes[i]
		if o.ds == nil {
			o.ds = &model.InstrumentDataset{Symbol: sym}
		}
		if o.err != nil {
			agg.Errors = append(agg.Errors, sym)
			log.WithField("symbol", sym).WithError(o.err).Warn("instrument failed")
		} else {
			processed++
		}
		agg.Add(o.ds)
	}

	if !populated {
		if err := cache.Save(h, agg); err != nil {
			log.WithError(err).Error("write aggregate cache failed")
		} else {
			log.Info("aggregate cache written")
		}
	}

	return &Result{Aggregate: agg, Processed: processed, Duration: time.Since(start)}, nil
}

// dispatch processes symbols on a bounded pool. Slot i of the result belongs to symbols[i].
func (s *Scanner) dispatch(ctx context.Context, asOf string, symbols []string, force bool) ([]outcome, error) {
	outcomes := make([]outcome, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, sym := range symbols {
		if gctx.Err() != nil {
			break
		}
		i, sym := i, sym
		g.Go(func() error {
			ictx := gctx
			if s.timeout > 0 {
				var cancel context.CancelFunc
				ictx, cancel = context.WithTimeout(gctx, s.timeout)
				defer cancel()
			}
			ds, err := s.Processor.Process(ictx, asOf, sym, force)
			if errors.Is(err, collector.ErrInvalidRequest) {
				return err
			}
			outcomes[i] = outcome{ds: ds, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}
	return outcomes, nil
}

// loadAggregate reports whether h holds a valid aggregate. Corrupt entries count as absent,
// and so do entries computed with other parameter sets than params.
func (s *Scanner) loadAggregate(h cache.Handle, params []model.ParameterSet, log *logrus.Entry) (*model.AggregateDataset, bool) {
	var agg model.AggregateDataset
	ok, err := cache.Load(h, &agg)
	if err != nil {
		log.WithError(err).Warn("aggregate cache unreadable, rescanning")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if agg.Datasets == nil {
		agg.Datasets = make(map[string]*model.InstrumentDataset)
	}
	if sym, ok := matchesParams(&agg, params); !ok {
		log.WithField("symbol", sym).Warn("aggregate cache built with other parameter sets, rescanning")
		return nil, false
	}
	return &agg, true
}

// matchesParams reports whether every dataset carrying indicators carries exactly params.
// Placeholders of failed instruments have none and always match.
// It returns the first mismatching symbol.
func matchesParams(agg *model.AggregateDataset, params []model.ParameterSet) (string, bool) {
	for _, sym := range agg.Symbols {
		ds, ok := agg.Get(sym)
		if !ok || len(ds.Indicators) == 0 {
			continue
		}
		if len(ds.Indicators) != len(params) {
			return sym, false
		}
		for _, p := range params {
			if _, ok := ds.Indicator(p); !ok {
				return sym, false
			}
		}
	}
	return "", true
}

// dedupe drops empty and repeated symbols, keeping first occurrences in order.
func dedupe(universe []string) []string {
	seen := make(map[string]bool, len(universe))
	out := make([]string, 0, len(universe))
	for _, sym := range universe {
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
