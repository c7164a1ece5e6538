// Command genmock writes the mock feed fixtures under data/mock: one buoy
// report batch, one shore report batch with two missed intervals, and one NWS
// gridpoint document with a null sky-cover sample. Values follow simple
// monotone formulas rather than captured noise; the fixture-driven pipeline
// tests recompute their expectations from the file contents and rely on the
// columns staying monotone, so change the formulas, not the shape.
//
// With -clean-out it also runs the station fixtures through the actual
// fuse-trim-clean-decompose flow and writes the resulting hindcast CSV, so
// the expected cleaned output can be inspected or handed to cmd/validate.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
//	go run ./cmd/genmock -out data/mock -clean-out /tmp/hindcast_clean.csv
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/lake-telemetry-etl/internal/adapter/archive"
	"github.com/couchcryptid/lake-telemetry-etl/internal/domain"
)

var (
	stationStart  = time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC)
	forecastStart = stationStart.Add(6 * time.Hour)
)

const (
	stationRecords = 12
	reportStep     = 20 * time.Minute
	forecastStep   = 6 * time.Hour
)

type gridpointFixture struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Properties gridpointProperties `json:"properties"`
}

type gridpointProperties struct {
	AtID             string        `json:"@id"`
	GridID           string        `json:"gridId"`
	GridX            string        `json:"gridX"`
	GridY            string        `json:"gridY"`
	UpdateTime       string        `json:"updateTime"`
	WindDirection    fixtureSeries `json:"windDirection"`
	WindSpeed        fixtureSeries `json:"windSpeed"`
	Temperature      fixtureSeries `json:"temperature"`
	SkyCover         fixtureSeries `json:"skyCover"`
	RelativeHumidity fixtureSeries `json:"relativeHumidity"`
}

type fixtureSeries struct {
	UOM    string                  `json:"uom"`
	Values []domain.ForecastSample `json:"values"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/mock", "output directory for the fixtures")
	cleanOut := flag.String("clean-out", "", "optional path for the cleaned hindcast CSV derived from the fixtures")
	flag.Parse()

	buoy := buildBuoyRecords()
	shore := buildShoreRecords()
	gridpoint := buildGridpoint()

	files := []struct {
		name string
		v    any
	}{
		{"buoy_records.json", buoy},
		{"shore_records.json", shore},
		{"nws_gridpoint.json", gridpoint},
	}
	for _, f := range files {
		path := filepath.Join(*out, f.name)
		if err := writeJSON(path, f.v); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
		log.Printf("wrote %s", path)
	}

	if *cleanOut != "" {
		if err := writeCleanCSV(*cleanOut, buoy, shore); err != nil {
			return fmt.Errorf("writing cleaned hindcast: %w", err)
		}
	}

	return printStats(buoy, shore, gridpoint)
}

// writeCleanCSV runs the station fixtures through the same
// fuse-trim-clean-decompose sequence the workflow applies, then stores the
// result with the CSV archiver, so the file matches what a real run would
// archive for this input.
func writeCleanCSV(path string, buoy []domain.BuoyRecord, shore []domain.ShoreRecord) error {
	fused, err := domain.FuseStationRecords(buoy, shore)
	if err != nil {
		return fmt.Errorf("fusing station fixtures: %w", err)
	}
	dense := fused.TrimGaps()
	stats := domain.CleanTable(dense, domain.DefaultBounds)
	decomposed, err := domain.DecomposeWind(dense)
	if err != nil {
		return fmt.Errorf("decomposing wind: %w", err)
	}
	final := decomposed.TrimGaps()
	if err := archive.NewCSV(path).Store(context.Background(), final); err != nil {
		return err
	}
	log.Printf("wrote %s (%d rows, %d clipped, %d sigma, %d stuck)",
		path, final.Len(), stats.Clipped, stats.SigmaRepaired, stats.StuckRepaired)
	return nil
}

func buildBuoyRecords() []domain.BuoyRecord {
	records := make([]domain.BuoyRecord, 0, stationRecords)
	for i := 0; i < stationRecords; i++ {
		at := stationStart.Add(time.Duration(i) * reportStep)
		records = append(records, domain.BuoyRecord{
			TmStamp:    at.Format("2006-01-02 15:04:05"),
			AirTemp1:   fixtureValue(2 + float64(i)/10),
			AirTemp2:   fixtureValue(2.2 + float64(i)/10),
			WindDir1:   strconv.Itoa(200 + 4*i),
			WindDir2:   strconv.Itoa(202 + 4*i),
			WindSpeed1: fixtureValue(3 + float64(i)/5),
			WindSpeed2: fixtureValue(3.4 + float64(i)/5),
		})
	}
	return records
}

func buildShoreRecords() []domain.ShoreRecord {
	records := make([]domain.ShoreRecord, 0, stationRecords)
	for i := 0; i < stationRecords; i++ {
		// Two missed report intervals, so fusion has sparse rows to trim.
		if i%5 == 2 {
			continue
		}
		at := stationStart.Add(time.Duration(i) * reportStep)
		records = append(records, domain.ShoreRecord{
			TmStamp:      at.Format("2006-01-02 15:04:05"),
			ShortWaveIn:  strconv.Itoa(260 - 20*i),
			ShortWaveOut: strconv.Itoa(20 - i),
			BP:           fixtureValue(818 + float64(i)/5),
			RH:           strconv.Itoa(48 + i),
			LongWaveIn:   strconv.Itoa(290 + 2*i),
		})
	}
	return records
}

func buildGridpoint() gridpointFixture {
	id := "https://api.weather.gov/gridpoints/TOP/32,86"
	return gridpointFixture{
		ID:   id,
		Type: "Feature",
		Properties: gridpointProperties{
			AtID:       id,
			GridID:     "TOP",
			GridX:      "32",
			GridY:      "86",
			UpdateTime: "2024-02-05T05:42:11+00:00",
			WindDirection: fixtureSeries{
				UOM:    "wmoUnit:degree_(angle)",
				Values: forecastSamples(f64(190), f64(210), f64(230), f64(250)),
			},
			WindSpeed: fixtureSeries{
				UOM:    "wmoUnit:km_h-1",
				Values: forecastSamples(f64(3.5), f64(4.5), f64(6), f64(5)),
			},
			Temperature: fixtureSeries{
				UOM:    "wmoUnit:degC",
				Values: forecastSamples(f64(-1), f64(2), f64(4), f64(1)),
			},
			SkyCover: fixtureSeries{
				UOM:    "wmoUnit:percent",
				Values: forecastSamples(f64(25), nil, f64(75), f64(90)),
			},
			RelativeHumidity: fixtureSeries{
				UOM:    "wmoUnit:percent",
				Values: forecastSamples(f64(55), f64(60), f64(70), f64(65)),
			},
		},
	}
}

// forecastSamples tags one value per six-hour interval, nil marking the
// service's null.
func forecastSamples(values ...*float64) []domain.ForecastSample {
	samples := make([]domain.ForecastSample, 0, len(values))
	for k, v := range values {
		at := forecastStart.Add(time.Duration(k) * forecastStep)
		samples = append(samples, domain.ForecastSample{
			ValidTime: at.Format("2006-01-02T15:04:05") + "+00:00/PT6H",
			Value:     v,
		})
	}
	return samples
}

func f64(v float64) *float64 { return &v }

// fixtureValue renders a reading the way the station API does: shortest
// decimal form, no trailing zeros.
func fixtureValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// printStats runs the fixtures through the actual fusion code and reports the
// dense row counts the fixture-driven tests should see.
func printStats(buoy []domain.BuoyRecord, shore []domain.ShoreRecord, gridpoint gridpointFixture) error {
	fused, err := domain.FuseStationRecords(buoy, shore)
	if err != nil {
		return fmt.Errorf("fusing station fixtures: %w", err)
	}
	series := []domain.ForecastSeries{
		{Feature: domain.FeatureWindDirection, Values: gridpoint.Properties.WindDirection.Values},
		{Feature: domain.FeatureWindSpeed, Values: gridpoint.Properties.WindSpeed.Values},
		{Feature: domain.FeatureTemperature, Values: gridpoint.Properties.Temperature.Values},
		{Feature: domain.FeatureSkyCover, Values: gridpoint.Properties.SkyCover.Values},
		{Feature: domain.FeatureRelativeHumidity, Values: gridpoint.Properties.RelativeHumidity.Values},
	}
	ffused, err := domain.FuseForecastSeries(series)
	if err != nil {
		return fmt.Errorf("fusing forecast fixture: %w", err)
	}

	fmt.Println("\n=== Fixture shape ===")
	fmt.Printf("buoy records: %d, shore records: %d\n", len(buoy), len(shore))
	fmt.Printf("hindcast: %d fused stamps, %d dense rows\n", fused.Len(), fused.TrimGaps().Len())
	fmt.Printf("forecast: %d fused hours, %d dense rows\n", ffused.Len(), ffused.TrimGaps().Len())
	return nil
}
