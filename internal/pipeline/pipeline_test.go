package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/lake-telemetry-etl/internal/domain"
	"github.com/couchcryptid/lake-telemetry-etl/internal/observability"
	"github.com/couchcryptid/lake-telemetry-etl/internal/pipeline"
)

var runNow = time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)

// --- mocks ---

type mockStations struct {
	buoy     []domain.BuoyRecord
	shore    []domain.ShoreRecord
	buoyErr  error
	shoreErr error
	gotStart time.Time
	gotEnd   time.Time
}

func (m *mockStations) FetchBuoy(_ context.Context, start, end time.Time) ([]domain.BuoyRecord, error) {
	m.gotStart, m.gotEnd = start, end
	return m.buoy, m.buoyErr
}

func (m *mockStations) FetchShore(_ context.Context, _, _ time.Time) ([]domain.ShoreRecord, error) {
	return m.shore, m.shoreErr
}

type mockForecast struct {
	series []domain.ForecastSeries
	err    error
	calls  int
}

func (m *mockForecast) FetchForecast(_ context.Context) ([]domain.ForecastSeries, error) {
	m.calls++
	return m.series, m.err
}

type mockArchive struct {
	stored []*domain.Table
	err    error
}

func (m *mockArchive) Store(_ context.Context, t *domain.Table) error {
	if m.err != nil {
		return m.err
	}
	m.stored = append(m.stored, t)
	return nil
}

type mockPublisher struct {
	batches [][]domain.Message
	err     error
}

func (m *mockPublisher) PublishBatch(_ context.Context, msgs []domain.Message) error {
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, msgs)
	return nil
}

type mockUploader struct {
	n     int
	err   error
	calls int
}

func (m *mockUploader) Upload(_ context.Context) (int, error) {
	m.calls++
	return m.n, m.err
}

// --- helpers ---

func newTestPipeline(deps pipeline.Deps) *pipeline.Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetricsForTesting()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewFakeClockAt(runNow)
	}
	if deps.Lookback == 0 {
		deps.Lookback = 7 * 24 * time.Hour
	}
	return pipeline.New(deps)
}

func fstr(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// buoyRecord reports the same value on both paired instruments, so the fused
// mean equals the value itself.
func buoyRecord(at time.Time, airTemp, windDir, windSpeed float64) domain.BuoyRecord {
	return domain.BuoyRecord{
		TmStamp:    at.Format("2006-01-02 15:04:05"),
		AirTemp1:   fstr(airTemp),
		AirTemp2:   fstr(airTemp),
		WindDir1:   fstr(windDir),
		WindDir2:   fstr(windDir),
		WindSpeed1: fstr(windSpeed),
		WindSpeed2: fstr(windSpeed),
	}
}

// shoreRecord reports zero outgoing shortwave, so the fused net shortwave
// equals swIn.
func shoreRecord(at time.Time, swIn, bpMbar, rhPct, lw float64) domain.ShoreRecord {
	return domain.ShoreRecord{
		TmStamp:      at.Format("2006-01-02 15:04:05"),
		ShortWaveIn:  fstr(swIn),
		ShortWaveOut: "0",
		BP:           fstr(bpMbar),
		RH:           fstr(rhPct),
		LongWaveIn:   fstr(lw),
	}
}

func sample(validTime string, v float64) domain.ForecastSample {
	return domain.ForecastSample{ValidTime: validTime, Value: &v}
}

func nullSample(validTime string) domain.ForecastSample {
	return domain.ForecastSample{ValidTime: validTime}
}

// forecastSeries covers every gridpoint property with one four-hour sample,
// valued 10 times its column position plus ten.
func forecastSeries() []domain.ForecastSeries {
	series := make([]domain.ForecastSeries, len(domain.ForecastLabels))
	for i, label := range domain.ForecastLabels {
		series[i] = domain.ForecastSeries{
			Feature: label.Feature,
			Values:  []domain.ForecastSample{sample("2024-02-12T06:00:00+00:00/PT4H", float64(10*(i+1)))},
		}
	}
	return series
}

// --- tests ---

func TestPipeline_HindcastHappyPath(t *testing.T) {
	base := time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC)
	stations := &mockStations{}
	for i := 0; i < 6; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		stations.buoy = append(stations.buoy, buoyRecord(at, 10, 90, 5))
		stations.shore = append(stations.shore, shoreRecord(at, 250, 820, 45, 310))
	}
	archive := &mockArchive{}
	publisher := &mockPublisher{}
	p := newTestPipeline(pipeline.Deps{
		Stations:        stations,
		HindcastArchive: archive,
		Publisher:       publisher,
	})

	require.NoError(t, p.RunHindcast(context.Background()))

	assert.True(t, stations.gotStart.Equal(runNow.Add(-7*24*time.Hour)), "fetch window start")
	assert.True(t, stations.gotEnd.Equal(runNow), "fetch window end")

	require.Len(t, archive.stored, 1)
	stored := archive.stored[0]
	assert.Equal(t, domain.DecomposedFeatures, stored.Features())
	require.Equal(t, 6, stored.Len())

	for i := 0; i < stored.Len(); i++ {
		airTemp, ok := stored.Value(i, domain.FeatureAirTemp)
		require.True(t, ok)
		assert.Equal(t, 10.0, airTemp, "row %d", i)
		pressure, _ := stored.Value(i, domain.FeatureAtmosphericPressure)
		assert.Equal(t, 82000.0, pressure, "row %d", i)
		rh, _ := stored.Value(i, domain.FeatureRelativeHumidity)
		assert.Equal(t, 0.45, rh, "row %d", i)
		u, _ := stored.Value(i, domain.FeatureWindU)
		assert.InDelta(t, -5.0, u, 1e-9, "row %d", i)
		v, _ := stored.Value(i, domain.FeatureWindV)
		assert.InDelta(t, 0.0, v, 1e-9, "row %d", i)
	}

	require.Len(t, publisher.batches, 1)
	require.Len(t, publisher.batches[0], 6)
	first := publisher.batches[0][0]
	assert.Equal(t, []byte("2024-02-11T00:00:00Z"), first.Key)
	assert.Equal(t, domain.FlowHindcast, first.Headers["flow"])
	assert.Equal(t, runNow.Format(time.RFC3339), first.Headers["produced_at"])
}

func TestPipeline_HindcastSkipsEmptyWindow(t *testing.T) {
	archive := &mockArchive{}
	publisher := &mockPublisher{}
	p := newTestPipeline(pipeline.Deps{
		Stations:        &mockStations{},
		HindcastArchive: archive,
		Publisher:       publisher,
	})

	require.NoError(t, p.RunHindcast(context.Background()))
	assert.Empty(t, archive.stored)
	assert.Empty(t, publisher.batches)
}

func TestPipeline_HindcastSparseRowsTrimmed(t *testing.T) {
	base := time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC)
	stations := &mockStations{}
	for i := 0; i < 6; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		stations.buoy = append(stations.buoy, buoyRecord(at, 10, 90, 5))
		// The shore station missed two report intervals.
		if i != 2 && i != 4 {
			stations.shore = append(stations.shore, shoreRecord(at, 250, 820, 45, 310))
		}
	}
	archive := &mockArchive{}
	p := newTestPipeline(pipeline.Deps{
		Stations:        stations,
		HindcastArchive: archive,
	})

	require.NoError(t, p.RunHindcast(context.Background()))

	require.Len(t, archive.stored, 1)
	stored := archive.stored[0]
	require.Equal(t, 4, stored.Len())
	for _, row := range stored.Rows() {
		assert.NotEqual(t, base.Add(2*time.Hour), row.Time)
		assert.NotEqual(t, base.Add(4*time.Hour), row.Time)
	}
}

func TestPipeline_HindcastRepairsOutliers(t *testing.T) {
	base := time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC)
	stations := &mockStations{}
	for i := 0; i < 10; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		airTemp := 10.0
		if i == 5 {
			airTemp = 1000 // single-sample sensor glitch
		}
		stations.buoy = append(stations.buoy, buoyRecord(at, airTemp, 90, 5))
		stations.shore = append(stations.shore, shoreRecord(at, 250, 820, 45, 310))
	}
	archive := &mockArchive{}
	p := newTestPipeline(pipeline.Deps{
		Stations:        stations,
		HindcastArchive: archive,
	})

	require.NoError(t, p.RunHindcast(context.Background()))

	require.Len(t, archive.stored, 1)
	stored := archive.stored[0]
	for i := 0; i < stored.Len(); i++ {
		airTemp, ok := stored.Value(i, domain.FeatureAirTemp)
		require.True(t, ok)
		assert.Equal(t, 10.0, airTemp, "row %d", i)
	}
}

func TestPipeline_HindcastFetchFailure(t *testing.T) {
	archive := &mockArchive{}
	p := newTestPipeline(pipeline.Deps{
		Stations:        &mockStations{buoyErr: errors.New("station down")},
		HindcastArchive: archive,
	})

	err := p.RunHindcast(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "fetching buoy reports")
	assert.Empty(t, archive.stored)
}

func TestPipeline_ForecastHappyPath(t *testing.T) {
	archive := &mockArchive{}
	publisher := &mockPublisher{}
	p := newTestPipeline(pipeline.Deps{
		Forecast:        &mockForecast{series: forecastSeries()},
		ForecastArchive: archive,
		Publisher:       publisher,
	})

	require.NoError(t, p.RunForecast(context.Background()))

	require.Len(t, archive.stored, 1)
	stored := archive.stored[0]
	assert.Equal(t, domain.ForecastFeatures, stored.Features())
	require.Equal(t, 4, stored.Len())
	assert.True(t, stored.Rows()[0].Time.Equal(time.Date(2024, 2, 12, 6, 0, 0, 0, time.UTC)))
	for i := 0; i < stored.Len(); i++ {
		dir, ok := stored.Value(i, domain.FeatureWindDirection)
		require.True(t, ok)
		assert.Equal(t, 10.0, dir, "row %d", i)
		sky, _ := stored.Value(i, domain.FeatureSkyCover)
		assert.Equal(t, 40.0, sky, "row %d", i)
	}

	require.Len(t, publisher.batches, 1)
	assert.Len(t, publisher.batches[0], 4)
	assert.Equal(t, domain.FlowForecast, publisher.batches[0][0].Headers["flow"])
}

func TestPipeline_ForecastNullHoursTrimmed(t *testing.T) {
	series := forecastSeries()
	// Replace sky cover with a series whose middle hour is null.
	series[3].Values = []domain.ForecastSample{
		sample("2024-02-12T06:00:00+00:00/PT1H", 40),
		nullSample("2024-02-12T07:00:00+00:00/PT1H"),
		sample("2024-02-12T08:00:00+00:00/PT2H", 41),
	}
	archive := &mockArchive{}
	p := newTestPipeline(pipeline.Deps{
		Forecast:        &mockForecast{series: series},
		ForecastArchive: archive,
	})

	require.NoError(t, p.RunForecast(context.Background()))

	require.Len(t, archive.stored, 1)
	stored := archive.stored[0]
	require.Equal(t, 3, stored.Len())
	times := make([]time.Time, 0, 3)
	for _, row := range stored.Rows() {
		times = append(times, row.Time)
	}
	assert.Equal(t, []time.Time{
		time.Date(2024, 2, 12, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 12, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 12, 9, 0, 0, 0, time.UTC),
	}, times)
}

func TestPipeline_ForecastFetchFailure(t *testing.T) {
	archive := &mockArchive{}
	p := newTestPipeline(pipeline.Deps{
		Forecast:        &mockForecast{err: errors.New("gridpoint unavailable")},
		ForecastArchive: archive,
	})

	err := p.RunForecast(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "fetching gridpoint forecast")
	assert.Empty(t, archive.stored)
}

func TestPipeline_RunExecutesAllLegs(t *testing.T) {
	base := time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC)
	stations := &mockStations{}
	for i := 0; i < 6; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		stations.buoy = append(stations.buoy, buoyRecord(at, 10, 90, 5))
		stations.shore = append(stations.shore, shoreRecord(at, 250, 820, 45, 310))
	}
	hindcast := &mockArchive{}
	forecast := &mockArchive{}
	publisher := &mockPublisher{}
	uploader := &mockUploader{n: 3}
	p := newTestPipeline(pipeline.Deps{
		Stations:        stations,
		Forecast:        &mockForecast{series: forecastSeries()},
		HindcastArchive: hindcast,
		ForecastArchive: forecast,
		Publisher:       publisher,
		Uploader:        uploader,
	})

	require.Error(t, p.CheckReadiness(context.Background()), "not ready before the first run")
	require.NoError(t, p.Run(context.Background()))

	assert.Len(t, hindcast.stored, 1)
	assert.Len(t, forecast.stored, 1)
	assert.Len(t, publisher.batches, 2)
	assert.Equal(t, 1, uploader.calls)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_RunCollectsFailures(t *testing.T) {
	forecastArchive := &mockArchive{}
	forecastSource := &mockForecast{series: forecastSeries()}
	uploader := &mockUploader{err: errors.New("bucket gone")}
	p := newTestPipeline(pipeline.Deps{
		Stations:        &mockStations{buoyErr: errors.New("station down")},
		Forecast:        forecastSource,
		HindcastArchive: &mockArchive{},
		ForecastArchive: forecastArchive,
		Uploader:        uploader,
	})

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "hindcast")
	assert.ErrorContains(t, err, "station down")
	assert.ErrorContains(t, err, "upload")

	// A dead station feed must not silence the forecast leg.
	assert.Equal(t, 1, forecastSource.calls)
	assert.Len(t, forecastArchive.stored, 1)
	assert.Equal(t, 1, uploader.calls)
	assert.Error(t, p.CheckReadiness(context.Background()), "a failed run never flips readiness")
}

func TestPipeline_OptionalLegsDisabled(t *testing.T) {
	base := time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC)
	stations := &mockStations{
		buoy:  []domain.BuoyRecord{buoyRecord(base, 10, 90, 5)},
		shore: []domain.ShoreRecord{shoreRecord(base, 250, 820, 45, 310)},
	}
	hindcast := &mockArchive{}
	forecast := &mockArchive{}
	p := newTestPipeline(pipeline.Deps{
		Stations:        stations,
		Forecast:        &mockForecast{series: forecastSeries()},
		HindcastArchive: hindcast,
		ForecastArchive: forecast,
	})

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, hindcast.stored, 1)
	assert.Len(t, forecast.stored, 1)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_ArchiveFailureSurfaces(t *testing.T) {
	base := time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC)
	stations := &mockStations{
		buoy:  []domain.BuoyRecord{buoyRecord(base, 10, 90, 5)},
		shore: []domain.ShoreRecord{shoreRecord(base, 250, 820, 45, 310)},
	}
	publisher := &mockPublisher{}
	p := newTestPipeline(pipeline.Deps{
		Stations:        stations,
		HindcastArchive: &mockArchive{err: errors.New("disk full")},
		Publisher:       publisher,
	})

	err := p.RunHindcast(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "storing hindcast batch")
	assert.Empty(t, publisher.batches, "nothing published when the archive write fails")
}

func TestEncodeRows(t *testing.T) {
	t0 := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	b := domain.NewBuilder([]domain.Feature{domain.FeatureAirTemp, domain.FeatureLongwave})
	b.Set(t0, domain.FeatureAirTemp, 12.5)
	b.Set(t0, domain.FeatureLongwave, 310)
	b.Set(t0.Add(time.Hour), domain.FeatureAirTemp, 13)
	tb := b.Build()

	producedAt := time.Date(2024, 2, 12, 9, 30, 0, 0, time.UTC)
	msgs, err := pipeline.EncodeRows(tb, domain.FlowHindcast, producedAt)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, []byte("2024-02-05T00:00:00Z"), msgs[0].Key)
	assert.Equal(t, `{"air_temp":12.5,"longwave":310,"time":"2024-02-05T00:00:00Z"}`, string(msgs[0].Value))
	assert.Equal(t, map[string]string{
		"flow":        "hindcast",
		"produced_at": "2024-02-12T09:30:00Z",
	}, msgs[0].Headers)

	// The second row never saw a longwave reading; the gap is omitted, not
	// serialized as null.
	assert.Equal(t, `{"air_temp":13,"time":"2024-02-05T01:00:00Z"}`, string(msgs[1].Value))
}

func TestEncodeRows_EmptyTable(t *testing.T) {
	msgs, err := pipeline.EncodeRows(domain.NewTable(nil), domain.FlowForecast, runNow)
	require.NoError(t, err)
	assert.Nil(t, msgs)
}
