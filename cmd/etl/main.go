package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/lake-telemetry-etl/internal/adapter/archive"
	"github.com/couchcryptid/lake-telemetry-etl/internal/adapter/fetch"
	"github.com/couchcryptid/lake-telemetry-etl/internal/adapter/gcs"
	httpadapter "github.com/couchcryptid/lake-telemetry-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/lake-telemetry-etl/internal/adapter/kafka"
	"github.com/couchcryptid/lake-telemetry-etl/internal/adapter/nws"
	"github.com/couchcryptid/lake-telemetry-etl/internal/adapter/tahoe"
	"github.com/couchcryptid/lake-telemetry-etl/internal/config"
	"github.com/couchcryptid/lake-telemetry-etl/internal/domain"
	"github.com/couchcryptid/lake-telemetry-etl/internal/observability"
	"github.com/couchcryptid/lake-telemetry-etl/internal/pipeline"
	"github.com/couchcryptid/lake-telemetry-etl/internal/scheduler"
)

func main() {
	once := flag.Bool("once", false, "run one workflow cycle and exit")
	lookback := flag.Duration("lookback", 0, "override the hindcast fetch window (e.g. 720h)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *lookback > 0 {
		cfg.Lookback = *lookback
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	stations := tahoe.NewClient(cfg.StationBaseURL, cfg.BuoyID, cfg.ShoreID,
		fetch.New("stations", cfg.HTTPTimeout, fetch.DefaultBackoff), logger)
	forecast := nws.NewClient(cfg.NWSBaseURL, cfg.NWSOffice, cfg.NWSGridX, cfg.NWSGridY,
		cfg.NWSUserAgent, fetch.New("gridpoint", cfg.HTTPTimeout, fetch.DefaultBackoff), logger)

	deps := pipeline.Deps{
		Stations: stations,
		Forecast: forecast,
		Lookback: cfg.Lookback,
		Logger:   logger,
		Metrics:  metrics,
	}

	closers := make([]func() error, 0, 4)
	switch cfg.ArchiveDriver {
	case config.DriverSQLite:
		db, err := archive.OpenSQLite(filepath.Join(cfg.ArchiveDir, "telemetry.db"))
		if err != nil {
			logger.Error("failed to open archive database", "error", err)
			os.Exit(1)
		}
		closers = append(closers, db.Close)
		if deps.HindcastArchive, err = db.Flow(domain.FlowHindcast); err != nil {
			logger.Error("failed to open hindcast archive", "error", err)
			os.Exit(1)
		}
		if deps.ForecastArchive, err = db.Flow(domain.FlowForecast); err != nil {
			logger.Error("failed to open forecast archive", "error", err)
			os.Exit(1)
		}
	default:
		deps.HindcastArchive = archive.NewCSV(filepath.Join(cfg.ArchiveDir, "hindcast.csv"))
		deps.ForecastArchive = archive.NewCSV(filepath.Join(cfg.ArchiveDir, "forecast.csv"))
	}
	logger.Info("archive ready", "driver", cfg.ArchiveDriver, "dir", cfg.ArchiveDir)

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		closers = append(closers, writer.Close)
		deps.Publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.UploadEnabled {
		bucket, err := gcs.NewBucket(ctx, cfg.GCSBucket)
		if err != nil {
			logger.Error("failed to open output bucket", "error", err)
			os.Exit(1)
		}
		closers = append(closers, bucket.Close)
		deps.Uploader = gcs.NewUploader(bucket, cfg.OutputDirs, cfg.UploadRetention,
			clockwork.NewRealClock(), logger)
		logger.Info("model output upload enabled", "bucket", cfg.GCSBucket, "dirs", cfg.OutputDirs)
	}

	p := pipeline.New(deps)

	if *once {
		if err := p.Run(ctx); err != nil {
			logger.Error("workflow failed", "error", err)
			closeAll(closers, logger)
			os.Exit(1)
		}
		closeAll(closers, logger)
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// First cycle right away; the scheduler takes over from there.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("initial workflow run failed", "error", err)
		}
	}()

	sched := scheduler.New(p, cfg.FetchInterval, runTimeout(cfg.FetchInterval), logger)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("service started", "interval", cfg.FetchInterval, "addr", cfg.HTTPAddr)

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closeAll(closers, logger)

	logger.Info("shutdown complete")
}

// runTimeout caps a workflow run at its cadence: a cycle still going when the
// next tick is due is hung, not slow.
func runTimeout(interval time.Duration) time.Duration {
	if interval < time.Minute {
		return time.Minute
	}
	return interval
}

func closeAll(closers []func() error, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Error("close error", "error", err)
		}
	}
}
