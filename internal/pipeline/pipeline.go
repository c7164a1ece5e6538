// Package pipeline orchestrates the two telemetry flows: fetch from the
// public feeds, fuse onto a common time axis, clean, archive, publish, then
// ship model outputs. The domain core stays free of I/O; everything crossing
// a process boundary sits behind a port defined here.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/lake-telemetry-etl/internal/domain"
	"github.com/couchcryptid/lake-telemetry-etl/internal/observability"
)

// StationSource fetches raw buoy and shore reports for a report window.
type StationSource interface {
	FetchBuoy(ctx context.Context, start, end time.Time) ([]domain.BuoyRecord, error)
	FetchShore(ctx context.Context, start, end time.Time) ([]domain.ShoreRecord, error)
}

// ForecastSource fetches the gridded forecast series.
type ForecastSource interface {
	FetchForecast(ctx context.Context) ([]domain.ForecastSeries, error)
}

// Archiver persists one flow's fused table with replace-overlap semantics.
type Archiver interface {
	Store(ctx context.Context, t *domain.Table) error
}

// Publisher ships encoded rows to the streaming topic.
type Publisher interface {
	PublishBatch(ctx context.Context, msgs []domain.Message) error
}

// Uploader ships model output files to object storage, returning how many.
type Uploader interface {
	Upload(ctx context.Context) (int, error)
}

// Deps bundles the pipeline's collaborators. Publisher and Uploader are
// optional; leaving one nil disables that leg.
type Deps struct {
	Stations        StationSource
	Forecast        ForecastSource
	HindcastArchive Archiver
	ForecastArchive Archiver
	Publisher       Publisher
	Uploader        Uploader
	Lookback        time.Duration
	Clock           clockwork.Clock
	Logger          *slog.Logger
	Metrics         *observability.Metrics
}

// Pipeline runs the telemetry workflow.
type Pipeline struct {
	stations        StationSource
	forecast        ForecastSource
	hindcastArchive Archiver
	forecastArchive Archiver
	publisher       Publisher
	uploader        Uploader
	lookback        time.Duration
	clock           clockwork.Clock
	logger          *slog.Logger
	metrics         *observability.Metrics
	ready           atomic.Bool
}

// New creates a Pipeline. A nil Clock falls back to the real one.
func New(deps Deps) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		stations:        deps.Stations,
		forecast:        deps.Forecast,
		hindcastArchive: deps.HindcastArchive,
		forecastArchive: deps.ForecastArchive,
		publisher:       deps.Publisher,
		uploader:        deps.Uploader,
		lookback:        deps.Lookback,
		clock:           deps.Clock,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
	}
}

// CheckReadiness returns nil once a workflow run has fully succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no successful workflow run yet")
	}
	return nil
}

// Run executes both flows and then the model-output upload. Later legs still
// run when an earlier one fails; the joined error reports every failure so a
// broken station feed cannot silence the forecast. The first fully clean run
// flips readiness.
func (p *Pipeline) Run(ctx context.Context) error {
	p.metrics.WorkflowRunning.Set(1)
	defer p.metrics.WorkflowRunning.Set(0)
	start := p.clock.Now()

	var errs []error
	if err := p.RunHindcast(ctx); err != nil {
		p.logger.Error("hindcast flow failed", "error", err)
		errs = append(errs, fmt.Errorf("hindcast: %w", err))
	}
	if err := p.RunForecast(ctx); err != nil {
		p.logger.Error("forecast flow failed", "error", err)
		errs = append(errs, fmt.Errorf("forecast: %w", err))
	}
	if p.uploader != nil {
		n, err := p.uploader.Upload(ctx)
		p.metrics.UploadedFiles.Add(float64(n))
		if err != nil {
			p.logger.Error("model output upload failed", "error", err)
			errs = append(errs, fmt.Errorf("upload: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	p.ready.Store(true)
	p.logger.Info("workflow complete", "duration", p.clock.Since(start))
	return nil
}

// RunHindcast executes one station batch: fetch, fuse, trim, clean,
// decompose, store, publish.
func (p *Pipeline) RunHindcast(ctx context.Context) error {
	return p.runFlow(ctx, domain.FlowHindcast, p.hindcastFlow)
}

// RunForecast executes one gridpoint batch: fetch, expand, fuse, trim,
// store, publish.
func (p *Pipeline) RunForecast(ctx context.Context) error {
	return p.runFlow(ctx, domain.FlowForecast, p.forecastFlow)
}

// runFlow wraps one flow execution with duration and outcome metrics.
func (p *Pipeline) runFlow(ctx context.Context, flow string, fn func(context.Context, *slog.Logger) error) error {
	logger := p.logger.With("flow", flow)
	start := p.clock.Now()

	err := fn(ctx, logger)
	p.metrics.FlowDuration.WithLabelValues(flow).Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.FlowRuns.WithLabelValues(flow, "error").Inc()
		return err
	}
	p.metrics.FlowRuns.WithLabelValues(flow, "success").Inc()
	logger.Info("flow complete", "duration", p.clock.Since(start))
	return nil
}

func (p *Pipeline) hindcastFlow(ctx context.Context, logger *slog.Logger) error {
	end := p.clock.Now().UTC()
	windowStart := end.Add(-p.lookback)

	fetchStart := p.clock.Now()
	buoy, err := p.stations.FetchBuoy(ctx, windowStart, end)
	if err != nil {
		return fmt.Errorf("fetching buoy reports: %w", err)
	}
	p.metrics.FetchDuration.WithLabelValues("buoy").Observe(p.clock.Since(fetchStart).Seconds())
	p.metrics.RecordsFetched.WithLabelValues("buoy").Add(float64(len(buoy)))

	fetchStart = p.clock.Now()
	shore, err := p.stations.FetchShore(ctx, windowStart, end)
	if err != nil {
		return fmt.Errorf("fetching shore reports: %w", err)
	}
	p.metrics.FetchDuration.WithLabelValues("shore").Observe(p.clock.Since(fetchStart).Seconds())
	p.metrics.RecordsFetched.WithLabelValues("shore").Add(float64(len(shore)))

	fused, err := domain.FuseStationRecords(buoy, shore)
	if err != nil {
		return fmt.Errorf("fusing station reports: %w", err)
	}
	dense := fused.TrimGaps()
	p.metrics.RowsTrimmed.WithLabelValues(domain.FlowHindcast).Add(float64(fused.Len() - dense.Len()))
	if dense.Len() == 0 {
		logger.Warn("no dense rows in window, skipping batch",
			"buoy_records", len(buoy), "shore_records", len(shore), "fused_rows", fused.Len())
		return nil
	}

	stats := domain.CleanTable(dense, domain.DefaultBounds)
	p.metrics.ValuesRepaired.WithLabelValues("clip").Add(float64(stats.Clipped))
	p.metrics.ValuesRepaired.WithLabelValues("sigma").Add(float64(stats.SigmaRepaired))
	p.metrics.ValuesRepaired.WithLabelValues("stuck").Add(float64(stats.StuckRepaired))

	decomposed, err := domain.DecomposeWind(dense)
	if err != nil {
		return fmt.Errorf("decomposing wind: %w", err)
	}
	// Decomposition can only drop rows, never blank single cells, so this
	// trim is a no-op unless something upstream broke its invariant.
	final := decomposed.TrimGaps()
	if final.Len() == 0 {
		logger.Warn("every row dropped during decomposition, skipping batch", "cleaned_rows", dense.Len())
		return nil
	}

	logger.Debug("hindcast batch cleaned",
		"rows", final.Len(), "clipped", stats.Clipped,
		"sigma_repaired", stats.SigmaRepaired, "stuck_repaired", stats.StuckRepaired)
	return p.land(ctx, logger, domain.FlowHindcast, p.hindcastArchive, final)
}

func (p *Pipeline) forecastFlow(ctx context.Context, logger *slog.Logger) error {
	fetchStart := p.clock.Now()
	series, err := p.forecast.FetchForecast(ctx)
	if err != nil {
		return fmt.Errorf("fetching gridpoint forecast: %w", err)
	}
	p.metrics.FetchDuration.WithLabelValues("gridpoint").Observe(p.clock.Since(fetchStart).Seconds())
	samples := 0
	for _, s := range series {
		samples += len(s.Values)
	}
	p.metrics.RecordsFetched.WithLabelValues("gridpoint").Add(float64(samples))

	fused, err := domain.FuseForecastSeries(series)
	if err != nil {
		return fmt.Errorf("fusing forecast series: %w", err)
	}
	dense := fused.TrimGaps()
	p.metrics.RowsTrimmed.WithLabelValues(domain.FlowForecast).Add(float64(fused.Len() - dense.Len()))
	if dense.Len() == 0 {
		logger.Warn("no dense rows in forecast, skipping batch",
			"series", len(series), "fused_rows", fused.Len())
		return nil
	}

	return p.land(ctx, logger, domain.FlowForecast, p.forecastArchive, dense)
}

// land stores the finished batch and, when publishing is enabled, ships its
// rows to the topic.
func (p *Pipeline) land(ctx context.Context, logger *slog.Logger, flow string, archive Archiver, t *domain.Table) error {
	if err := archive.Store(ctx, t); err != nil {
		return fmt.Errorf("storing %s batch: %w", flow, err)
	}
	p.metrics.RowsStored.WithLabelValues(flow).Add(float64(t.Len()))

	if p.publisher != nil {
		msgs, err := EncodeRows(t, flow, p.clock.Now())
		if err != nil {
			return fmt.Errorf("encoding %s rows: %w", flow, err)
		}
		if err := p.publisher.PublishBatch(ctx, msgs); err != nil {
			return fmt.Errorf("publishing %s batch: %w", flow, err)
		}
		p.metrics.MessagesPublished.Add(float64(len(msgs)))
	}

	rows := t.Rows()
	logger.Info("batch landed", "rows", t.Len(),
		"first", rows[0].Time, "last", rows[len(rows)-1].Time)
	return nil
}
