package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"TrendScreener/internal/cache"
	"TrendScreener/internal/collector"
	"TrendScreener/internal/config"
	"TrendScreener/internal/exporter"
	"TrendScreener/internal/logger"
	"TrendScreener/internal/metrics"
	"TrendScreener/internal/notifier"
	"TrendScreener/internal/recorder"
	"TrendScreener/internal/scanner"
	"TrendScreener/internal/scheduler"
	"TrendScreener/internal/universe"

	"github.com/sirupsen/logrus"
)

func main() {
	once := flag.Bool("once", false, "run one scan and exit")
	force := flag.Bool("force", false, "bypass every cache for this process")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		logrus.Fatalf("load env: %v", err)
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("config validation: %v", err)
	}

	if _, err := logger.Init(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		logrus.Fatalf("init logger: %v", err)
	}
	log := logger.WithComponent("main")
	log.WithField("config", cfgPath).Info("TrendScreener starting")

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	met := metrics.New()
	if cfg.Metrics.Addr != "" {
		go met.Serve(ctx, cfg.Metrics.Addr, logger.WithComponent("metrics"))
	}

	// Init fetcher
	var base collector.Fetcher
	if cfg.DataSource.BaseURL != "" {
		base = collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, cfg.DataSource.Timeout)
	} else {
		base = collector.NewYahooFetcher(cfg.Proxy, cfg.DataSource.Timeout)
	}
	fetcher := collector.NewRateLimitedFetcher(base, cfg.DataSource.RatePerSec, cfg.DataSource.Burst)
	log.WithField("source", fetcher.Name()).Info("data source selected")

	store := cache.NewDiskStore(cfg.Cache.Root)

	proc, err := collector.NewProcessor(fetcher, store, collector.ProcessorConfig{
		Request: cfg.Request(),
		Params:  cfg.Indicators.Params,
		EMASpan: cfg.Indicators.EMASpan,
		SaveCSV: cfg.Cache.SaveCSV,
	}, nil)
	if err != nil {
		log.WithError(err).Fatal("init processor")
	}
	proc.Metrics = met

	scan := scanner.New(proc, store, scanner.Options{
		Workers:           cfg.Scan.Workers,
		InstrumentTimeout: cfg.Scan.InstrumentTimeout,
	})
	scan.Metrics = met

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	sched := scheduler.NewScheduler(ctx, scheduler.Deps{
		Scanner: scan,
		Universe: func() ([]string, error) {
			return universe.Load(cfg.Universe.File, cfg.Universe.Suffix)
		},
		Store:    store,
		Exporter: exporter.New(cfg.Logs.Dir, cfg.Universe.Suffix),
		Recorder: rec,
		Notifier: tn,
		Metrics:  met,
		Force:    cfg.Scan.ForceRefresh || *force,
	})

	if *once {
		report, err := sched.RunNow(sched.Force)
		if err != nil {
			log.WithError(err).Fatal("scan failed")
		}
		log.WithFields(logrus.Fields{
			"uptrend": len(report.Uptrends),
			"errors":  len(report.Errors),
			"log":     report.Paths.Uptrend,
		}).Info("scan complete")
		return
	}

	if err := sched.Register(cfg.Schedule.DailyCron); err != nil {
		log.WithError(err).Fatal("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if tn.Enabled() {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	// Optional: run immediately on start
	if cfg.Schedule.RunOnStart {
		log.Info("run_on_start enabled, scanning now")
		go func() {
			if _, err := sched.RunNow(sched.Force); err != nil {
				log.WithError(err).Error("startup scan failed")
			}
		}()
	}

	log.WithField("cron", cfg.Schedule.DailyCron).Info("TrendScreener is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info("shutdown signal received, stopping")
}
