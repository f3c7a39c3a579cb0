package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"TrendScreener/internal/cache"
	"TrendScreener/internal/exporter"
	"TrendScreener/internal/logger"
	"TrendScreener/internal/metrics"
	"TrendScreener/internal/model"
	"TrendScreener/internal/recorder"
	"TrendScreener/internal/scanner"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 5, 16, 30, 0, 0, time.UTC)

type fakeRunner struct {
	res    *scanner.Result
	err    error
	block  chan struct{}
	calls  int
	forced []bool
	mu     sync.Mutex
}

func (f *fakeRunner) Run(_ context.Context, _ []string, force bool) (*scanner.Result, error) {
	f.mu.Lock()
	f.calls++
	f.forced = append(f.forced, force)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.res, f.err
}

type fakeRecorder struct{ runs []*recorder.RunRecord }

func (r *fakeRecorder) RecordRun(run *recorder.RunRecord) error {
	r.runs = append(r.runs, run)
	return nil
}
func (r *fakeRecorder) Close() error { return nil }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return nil
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

func dataset(symbol string, up bool) *model.InstrumentDataset {
	return &model.InstrumentDataset{
		Symbol: symbol,
		Series: model.PriceSeries{Symbol: symbol, Bars: []model.OHLCV{{Time: testNow, Close: 1}}},
		Indicators: []model.IndicatorResult{
			{Params: model.ParameterSet{Length: 10, Multiplier: 1}, Rows: []model.TrendRow{{Up: up}}},
		},
	}
}

func sampleResult() *scanner.Result {
	agg := model.NewAggregateDataset("2024-03-05", "1y_1d_2024-03-05")
	agg.Add(dataset("TCS.NS", true))
	agg.Add(dataset("WIPRO.NS", false))
	agg.Add(&model.InstrumentDataset{Symbol: "GONE.NS"})
	agg.Errors = []string{"GONE.NS"}
	return &scanner.Result{Aggregate: agg, Processed: 2, Duration: time.Second}
}

type fixture struct {
	sched  *Scheduler
	runner *fakeRunner
	rec    *fakeRecorder
	note   *fakeNotifier
	store  *cache.MemoryStore
	met    *metrics.Metrics
	logs   string
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		runner: &fakeRunner{res: sampleResult()},
		rec:    &fakeRecorder{},
		note:   &fakeNotifier{},
		store:  cache.NewMemoryStore(),
		met:    metrics.New(),
		logs:   t.TempDir(),
	}
	f.sched = NewScheduler(context.Background(), Deps{
		Scanner:  f.runner,
		Universe: func() ([]string, error) { return []string{"TCS.NS", "WIPRO.NS", "GONE.NS"}, nil },
		Store:    f.store,
		Exporter: exporter.New(f.logs, ".NS"),
		Recorder: f.rec,
		Notifier: f.note,
		Metrics:  f.met,
	})
	f.sched.Log = logger.Discard()
	f.sched.Now = func() time.Time { return testNow }
	return f
}

func TestRunNow(t *testing.T) {
	f := newFixture(t)
	f.store.Put(cache.AggregateKey("2024-02-01", "old"), []byte("{}"))

	report, err := f.sched.RunNow(false)
	require.NoError(t, err)

	assert.Equal(t, []string{"TCS.NS"}, report.Uptrends)
	assert.Equal(t, []string{"GONE.NS"}, report.Errors)
	assert.Equal(t, 3, report.Total)
	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)

	data, err := os.ReadFile(report.Paths.Uptrend)
	require.NoError(t, err)
	assert.Equal(t, "TCS\n", string(data))

	require.Len(t, f.rec.runs, 1)
	assert.Equal(t, report.RunID, f.rec.runs[0].ID)
	assert.Equal(t, "1y_1d_2024-03-05", f.rec.runs[0].Signature)

	msgs := f.note.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "TCS.NS")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.met.UptrendCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.met.ErrorCount))
	_, stale := f.store.Get(cache.AggregateKey("2024-02-01", "old"))
	assert.False(t, stale)
	assert.Same(t, report, f.sched.Last())
}

func TestRunNow_ScanError(t *testing.T) {
	f := newFixture(t)
	f.runner.res, f.runner.err = nil, scanner.ErrEmptyUniverse

	_, err := f.sched.RunNow(false)
	assert.ErrorIs(t, err, scanner.ErrEmptyUniverse)
	assert.Empty(t, f.rec.runs)
	msgs := f.note.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "scan failed")
	assert.Nil(t, f.sched.Last())
}

func TestRunNow_UniverseError(t *testing.T) {
	f := newFixture(t)
	f.sched.Universe = func() ([]string, error) { return nil, errors.New("no file") }
	_, err := f.sched.RunNow(false)
	assert.Error(t, err)
	assert.Zero(t, f.runner.calls)
}

func TestRunNow_Busy(t *testing.T) {
	f := newFixture(t)
	f.runner.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := f.sched.RunNow(false)
		done <- err
	}()

	require.Eventually(t, func() bool {
		f.runner.mu.Lock()
		defer f.runner.mu.Unlock()
		return f.runner.calls == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, err := f.sched.RunNow(false)
	assert.ErrorIs(t, err, ErrBusy)

	close(f.runner.block)
	assert.NoError(t, <-done)
}

func TestHandleCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Contains(t, f.sched.HandleCommand(ctx, "/uptrend"), "No scan for 2024-03-05")
	assert.Contains(t, f.sched.HandleCommand(ctx, "hello"), "/uptrend")

	_, err := f.sched.RunNow(false)
	require.NoError(t, err)
	assert.Contains(t, f.sched.HandleCommand(ctx, "/uptrend"), "TCS.NS")
}

func TestHandleCommand_UptrendFromLog(t *testing.T) {
	f := newFixture(t)
	_, err := f.sched.Exporter.Export("2024-03-05", []string{"INFY.NS"}, nil)
	require.NoError(t, err)
	assert.Contains(t, f.sched.HandleCommand(context.Background(), "/uptrend"), "INFY.NS")
}

func TestHandleCommand_ScanForce(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.sched.HandleCommand(context.Background(), "/scan force"), "scan started")

	require.Eventually(t, func() bool { return f.sched.Last() != nil }, 2*time.Second, 5*time.Millisecond)
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	assert.Equal(t, []bool{true}, f.runner.forced)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.sched.Register("0 30 16 * * 1-5"))
	assert.Error(t, f.sched.Register("not a cron"))
}
