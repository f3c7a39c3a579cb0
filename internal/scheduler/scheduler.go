package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"TrendScreener/internal/cache"
	"TrendScreener/internal/exporter"
	"TrendScreener/internal/logger"
	"TrendScreener/internal/metrics"
	"TrendScreener/internal/notifier"
	"TrendScreener/internal/recorder"
	"TrendScreener/internal/scanner"
	"TrendScreener/internal/strategy"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrBusy is returned when a scan is requested while another one runs.
var ErrBusy = errors.New("scan already running")

// Runner scans a universe.
type Runner interface {
	Run(ctx context.Context, universe []string, force bool) (*scanner.Result, error)
}

// UniverseLoader returns the instruments of the next scan.
type UniverseLoader func() ([]string, error)

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Scanner  Runner
	Universe UniverseLoader
	Store    cache.Store
	Exporter *exporter.Exporter
	Recorder recorder.Recorder
	Notifier notifier.Notifier
	Metrics  *metrics.Metrics
	// Force makes every scheduled run bypass the caches.
	Force bool
}

// Report is the outcome of one run, kept for chat commands.
type Report struct {
	notifier.RunReport
	Signature string
	Paths     exporter.Paths
}

// Scheduler runs the daily scan and owns the post-scan pipeline.
type Scheduler struct {
	Cron *cron.Cron
	Deps
	Log *logrus.Entry
	Now func() time.Time
	Ctx context.Context

	running sync.Mutex
	mu      sync.Mutex
	last    *Report
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, deps Deps) *Scheduler {
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		Deps: deps,
		Log:  logger.WithComponent("scheduler"),
		Now:  time.Now,
		Ctx:  ctx,
	}
}

// Register registers the daily scan.
func (s *Scheduler) Register(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info("scheduler stopped")
}

func (s *Scheduler) dailyTask() {
	if _, err := s.RunNow(s.Force); err != nil && !errors.Is(err, ErrBusy) {
		s.Log.WithError(err).Error("daily scan failed")
	}
}

// Last returns the report of the most recent successful run.
func (s *Scheduler) Last() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunNow runs one scan: housekeeping, scan, classification, export, record, notify.
// Only one run executes at a time; a concurrent request gets ErrBusy.
func (s *Scheduler) RunNow(force bool) (*Report, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	runID := uuid.NewString()
	log := s.Log.WithField("run_id", runID)
	started := s.Now()

	removed, err := s.Store.Housekeep(started)
	if err != nil {
		log.WithError(err).Warn("cache housekeeping failed")
	} else if len(removed) > 0 {
		log.WithField("removed", removed).Info("stale cache generations removed")
	}

	universe, err := s.Universe()
	if err != nil {
		s.trySend(fmt.Sprintf("❌ universe load failed: %v", err))
		return nil, fmt.Errorf("load universe: %w", err)
	}

	log.WithFields(logrus.Fields{"instruments": len(universe), "force": force}).Info("running scan")
	res, err := s.Scanner.Run(s.Ctx, universe, force)
	if err != nil {
		s.trySend(fmt.Sprintf("❌ scan failed: %v", err))
		return nil, fmt.Errorf("scan: %w", err)
	}

	agg := res.Aggregate
	summary := strategy.Summarize(agg)
	report := &Report{
		RunReport: notifier.RunReport{
			RunID:     runID,
			AsOf:      agg.AsOf,
			Total:     summary.Total,
			Uptrends:  summary.Uptrends,
			Errors:    agg.Errors,
			FromCache: res.FromCache,
			Duration:  res.Duration,
		},
		Signature: agg.Signature,
	}

	if s.Exporter != nil {
		paths, err := s.Exporter.Export(agg.AsOf, summary.Uptrends, agg.Errors)
		if err != nil {
			log.WithError(err).Error("export run logs")
		}
		report.Paths = paths
	}

	if err := s.Recorder.RecordRun(&recorder.RunRecord{
		ID:        runID,
		AsOf:      agg.AsOf,
		Signature: agg.Signature,
		StartedAt: started,
		Duration:  res.Duration,
		Total:     summary.Total,
		FromCache: res.FromCache,
		Uptrends:  summary.Uptrends,
		Errors:    agg.Errors,
	}); err != nil {
		log.WithError(err).Error("record run")
	}

	s.Metrics.ObserveScan(res.Duration, summary.Uptrend, summary.Errors, s.Now())
	s.trySend(notifier.FormatRunReport(report.RunReport))

	log.WithFields(logrus.Fields{
		"as_of":      agg.AsOf,
		"total":      summary.Total,
		"uptrend":    summary.Uptrend,
		"errors":     summary.Errors,
		"from_cache": res.FromCache,
	}).Info("scan finished")

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	return report, nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(_ context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	switch fields[0] {
	case "/uptrend":
		asOf := cache.AsOfDate(s.Now())
		if last := s.Last(); last != nil && last.AsOf == asOf {
			return notifier.FormatUptrendList(asOf, last.Uptrends)
		}
		if s.Exporter != nil {
			if up, err := s.Exporter.ReadUptrends(asOf); err == nil {
				return notifier.FormatUptrendList(asOf, up)
			}
		}
		return fmt.Sprintf("No scan for %s yet. Send /scan to run one.", asOf)
	case "/scan":
		force := len(fields) > 1 && fields[1] == "force"
		go func() {
			if _, err := s.RunNow(force); err != nil {
				if errors.Is(err, ErrBusy) {
					s.trySend("⏳ a scan is already running")
					return
				}
				s.Log.WithError(err).Error("scan on command failed")
			}
		}()
		return "🔎 scan started"
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.Log.WithError(err).Error("send notification")
	}
}
