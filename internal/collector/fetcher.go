package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"TrendScreener/internal/model"

	"golang.org/x/time/rate"
)

var (
	// ErrInvalidRequest is returned when a request names both or neither of a period and a date range.
	ErrInvalidRequest = errors.New("invalid fetch request")
	// ErrDataUnavailable is returned when a fetch yields no bars.
	ErrDataUnavailable = errors.New("data unavailable")
)

// dateLayout is the layout of Request.Start and Request.End.
const dateLayout = "2006-01-02"

// Request selects the window of bars to fetch: either Period (e.g. "1y")
// or an explicit Start/End date range, never both.
type Request struct {
	Period   string
	Start    string
	End      string
	Interval string
}

// Validate checks that exactly one of Period and (Start, End) is set.
func (r Request) Validate() error {
	hasPeriod := r.Period != ""
	hasRange := r.Start != "" || r.End != ""
	switch {
	case hasPeriod && hasRange:
		return fmt.Errorf("%w: give either a period or a start/end range, not both", ErrInvalidRequest)
	case !hasPeriod && !hasRange:
		return fmt.Errorf("%w: a period or a start/end range is required", ErrInvalidRequest)
	case hasRange && (r.Start == "" || r.End == ""):
		return fmt.Errorf("%w: both start and end are required", ErrInvalidRequest)
	}
	if hasRange {
		start, err := time.Parse(dateLayout, r.Start)
		if err != nil {
			return fmt.Errorf("%w: start: %v", ErrInvalidRequest, err)
		}
		end, err := time.Parse(dateLayout, r.End)
		if err != nil {
			return fmt.Errorf("%w: end: %v", ErrInvalidRequest, err)
		}
		if !end.After(start) {
			return fmt.Errorf("%w: end must be after start", ErrInvalidRequest)
		}
	}
	if r.Interval == "" {
		return fmt.Errorf("%w: interval is required", ErrInvalidRequest)
	}
	return nil
}

// Window returns the period, or "start~end" for a date range.
func (r Request) Window() string {
	if r.Period != "" {
		return r.Period
	}
	return r.Start + "~" + r.End
}

// Signature identifies a run: changing the window, interval or date misses every prior entry.
func (r Request) Signature(asOf string) string {
	return fmt.Sprintf("%s_%s_%s", r.Window(), r.Interval, asOf)
}

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, req Request) ([]model.OHLCV, error)
	Name() string
}

// RateLimitedFetcher throttles calls to the wrapped Fetcher.
type RateLimitedFetcher struct {
	Fetcher Fetcher
	Limiter *rate.Limiter
}

// NewRateLimitedFetcher wraps f with a limiter of rps requests per second. rps <= 0 disables throttling.
func NewRateLimitedFetcher(f Fetcher, rps float64, burst int) *RateLimitedFetcher {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedFetcher{Fetcher: f, Limiter: rate.NewLimiter(limit, burst)}
}

func (f *RateLimitedFetcher) Name() string { return f.Fetcher.Name() }

func (f *RateLimitedFetcher) Fetch(ctx context.Context, symbol string, req Request) ([]model.OHLCV, error) {
	if err := f.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return f.Fetcher.Fetch(ctx, symbol, req)
}

// normalizeBars sorts bars chronologically and drops repeated timestamps, keeping the last one.
func normalizeBars(bars []model.OHLCV) []model.OHLCV {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
