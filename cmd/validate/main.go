// Command validate performs integrity checks over a telemetry archive
// produced by the ETL service. It verifies that stored rows sit on a
// strictly ascending UTC time axis, that every cell is present and finite,
// that values stay inside their instruments' physical ranges, and that
// timestamps keep to one reporting grid.
//
// Usage:
//
//	go run ./cmd/validate -driver csv -flow hindcast -path data/archive/hindcast.csv
//	go run ./cmd/validate -driver sqlite -flow forecast -path data/archive/telemetry.db
package main

import (
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/lake-telemetry-etl/internal/config"
	"github.com/couchcryptid/lake-telemetry-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	driver := flag.String("driver", config.DriverCSV, "archive driver: csv or sqlite")
	path := flag.String("path", "", "archive file (default data/archive/<flow>.csv or data/archive/telemetry.db)")
	flow := flag.String("flow", domain.FlowHindcast, "flow to validate: hindcast or forecast")
	flag.Parse()

	if *driver != config.DriverCSV && *driver != config.DriverSQLite {
		fmt.Fprintf(os.Stderr, "unknown driver %q\n", *driver)
		flag.Usage()
		os.Exit(1)
	}
	if *flow != domain.FlowHindcast && *flow != domain.FlowForecast {
		fmt.Fprintf(os.Stderr, "unknown flow %q\n", *flow)
		flag.Usage()
		os.Exit(1)
	}
	if *path == "" {
		*path = defaultPath(*driver, *flow)
	}

	if code := run(*driver, *path, *flow); code != 0 {
		os.Exit(code)
	}
}

// defaultPath mirrors the service's archive layout.
func defaultPath(driver, flow string) string {
	if driver == config.DriverSQLite {
		return filepath.Join("data", "archive", "telemetry.db")
	}
	return filepath.Join("data", "archive", flow+".csv")
}

func run(driver, path, flow string) int {
	// ── Load the archive ──
	fmt.Println("=== Lake Telemetry Archive Validation ===")
	fmt.Println()
	fmt.Printf("Archive: %s (%s, %s flow)\n", path, driver, flow)

	features, rows, err := loadRows(driver, path, flow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load archive: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateOrdering(rows),
		validateDensity(features, rows),
		validateBounds(flow, features, rows),
		validateCadence(rows),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d across %d features\n", len(rows), len(features))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// archiveRow is one stored sample in archive order, with its timestamp and
// cells kept as the raw text the archive carries so the phases can report
// exactly what is on disk.
type archiveRow struct {
	line  int
	stamp string
	cells []string
}

func (r archiveRow) time() (time.Time, error) {
	return time.Parse(time.RFC3339, r.stamp)
}

func loadRows(driver, path, flow string) ([]domain.Feature, []archiveRow, error) {
	if driver == config.DriverSQLite {
		return loadSQLiteRows(path, flow)
	}
	return loadCSVRows(path)
}

func loadCSVRows(path string) ([]domain.Feature, []archiveRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // a ragged row is a density finding, not a load failure
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}

	header := records[0]
	if len(header) < 2 || header[0] != "time" {
		return nil, nil, fmt.Errorf("%s: malformed header %v", path, header)
	}
	features := make([]domain.Feature, 0, len(header)-1)
	for _, name := range header[1:] {
		features = append(features, domain.Feature(name))
	}

	rows := make([]archiveRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		rows = append(rows, archiveRow{line: i + 2, stamp: rec[0], cells: rec[1:]})
	}
	return features, rows, nil
}

func loadSQLiteRows(path, flow string) ([]domain.Feature, []archiveRow, error) {
	// The service's OpenSQLite creates a missing database file; a checker
	// must not.
	if _, err := os.Stat(path); err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	features := flowFeatures(flow)
	cols := make([]string, 0, len(features)+1)
	cols = append(cols, "time")
	for _, feat := range features {
		cols = append(cols, string(feat))
	}

	// ORDER BY time leans on the schema's claim that RFC 3339 UTC text sorts
	// chronologically; the ordering phase catches any stamp that breaks it.
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY time", strings.Join(cols, ", "), flow)
	dbRows, err := db.Query(query)
	if err != nil {
		return nil, nil, err
	}
	defer dbRows.Close()

	var stamp string
	cells := make([]string, len(features))
	dest := make([]any, 0, len(features)+1)
	dest = append(dest, &stamp)
	for j := range cells {
		dest = append(dest, &cells[j])
	}

	var rows []archiveRow
	for dbRows.Next() {
		if err := dbRows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		rows = append(rows, archiveRow{line: len(rows) + 1, stamp: stamp, cells: append([]string(nil), cells...)})
	}
	if err := dbRows.Err(); err != nil {
		return nil, nil, err
	}
	return features, rows, nil
}

// ── Phase 1: Ordering ──
// Validates that timestamps are canonical UTC, unique, and strictly
// ascending in archive order.

func validateOrdering(rows []archiveRow) *phase {
	p := &phase{name: "Phase 1: Ordering (time axis)"}

	if len(rows) == 0 {
		p.errorf("archive has no rows")
		return p
	}

	var prev time.Time
	var prevStamp string
	hasPrev := false
	for _, r := range rows {
		at, err := r.time()
		if err != nil {
			p.errorf("row %d: timestamp %q: %v", r.line, r.stamp, err)
			continue
		}
		if canonical := at.UTC().Format(time.RFC3339); canonical != r.stamp {
			p.errorf("row %d: timestamp %q is not canonical UTC (want %q)", r.line, r.stamp, canonical)
		}
		if hasPrev {
			if at.Equal(prev) {
				p.errorf("row %d: duplicate timestamp %s", r.line, r.stamp)
			} else if at.Before(prev) {
				p.errorf("row %d: timestamp %s before preceding %s", r.line, r.stamp, prevStamp)
			}
		}
		prev, prevStamp, hasPrev = at, r.stamp, true
	}
	return p
}

// ── Phase 2: Density ──
// Validates that every row carries a finite value for every feature. The
// pipeline trims sparse rows before landing, so an absent cell can only
// mean the archive was written by something else.

func validateDensity(features []domain.Feature, rows []archiveRow) *phase {
	p := &phase{name: "Phase 2: Density (absent cells)"}

	for _, r := range rows {
		if len(r.cells) != len(features) {
			p.errorf("row %d: %d cells for %d features", r.line, len(r.cells), len(features))
			continue
		}
		for j, cell := range r.cells {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				p.errorf("row %d: %s: unparseable value %q", r.line, features[j], cell)
				continue
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				p.errorf("row %d: %s: non-finite value %q", r.line, features[j], cell)
			}
		}
	}
	return p
}

// ── Phase 3: Physical Bounds ──
// Validates cells against each instrument's physical range. Hindcast
// batches were clipped to these ranges before landing; forecast values
// arrive unconverted from the gridpoint endpoint and carry its units.

func validateBounds(flow string, features []domain.Feature, rows []archiveRow) *phase {
	p := &phase{name: "Phase 3: Physical Bounds"}

	want := flowFeatures(flow)
	if !featureListEqual(features, want) {
		p.errorf("feature columns: expected %v, got %v", want, features)
		return p
	}

	ranges := flowRanges(flow)
	for _, r := range rows {
		if len(r.cells) != len(features) {
			continue // density already reported it
		}
		for j, cell := range r.cells {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) {
				continue
			}
			b, ok := ranges[features[j]]
			if !ok {
				continue
			}
			if v < b.Lo || v > b.Hi {
				p.errorf("row %d: %s=%g outside [%g, %g]", r.line, features[j], v, b.Lo, b.Hi)
			}
		}
	}
	return p
}

func flowFeatures(flow string) []domain.Feature {
	if flow == domain.FlowForecast {
		return domain.ForecastFeatures
	}
	return domain.DecomposedFeatures
}

// forecastRanges bounds the raw gridpoint units: degrees, km/h, °C, percent.
var forecastRanges = domain.FeatureBounds{
	domain.FeatureWindDirection:    {Lo: 0, Hi: 360},
	domain.FeatureWindSpeed:        {Lo: 0, Hi: 150},
	domain.FeatureTemperature:      {Lo: -40, Hi: 60},
	domain.FeatureSkyCover:         {Lo: 0, Hi: 100},
	domain.FeatureRelativeHumidity: {Lo: 0, Hi: 100},
}

func flowRanges(flow string) domain.FeatureBounds {
	if flow == domain.FlowForecast {
		return forecastRanges
	}
	ranges := domain.FeatureBounds{}
	for _, f := range domain.DecomposedFeatures {
		if b, ok := domain.DefaultBounds[f]; ok {
			ranges[f] = b
		}
	}
	// A wind component's magnitude cannot exceed the speed ceiling.
	ws := domain.DefaultBounds[domain.FeatureWindSpeed]
	ranges[domain.FeatureWindU] = domain.Bounds{Lo: -ws.Hi, Hi: ws.Hi}
	ranges[domain.FeatureWindV] = domain.Bounds{Lo: -ws.Hi, Hi: ws.Hi}
	return ranges
}

func featureListEqual(a, b []domain.Feature) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ── Phase 4: Cadence ──
// Validates that rows sit on one fixed reporting grid. Gaps are legitimate
// (sparse rows are trimmed before landing) and only noted; a timestamp off
// the grid is corruption.

func validateCadence(rows []archiveRow) *phase {
	p := &phase{name: "Phase 4: Cadence (reporting grid)"}

	times := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		at, err := r.time()
		if err != nil {
			continue // ordering already reported it
		}
		times = append(times, at)
	}
	if len(times) < 2 {
		return p
	}

	step := modalStep(times)
	if step <= 0 {
		return p // nothing but duplicates; ordering already reported them
	}

	gaps := 0
	for i := 1; i < len(times); i++ {
		d := times[i].Sub(times[i-1])
		if d <= 0 {
			continue // ordering already reported it
		}
		if d%step != 0 {
			p.errorf("row at %s: %s after its predecessor, off the %s grid",
				times[i].Format(time.RFC3339), d, step)
			continue
		}
		if d > step {
			gaps++
		}
	}
	if gaps > 0 {
		fmt.Printf("  Note: %d gap(s) in the %s cadence\n", gaps, step)
	}
	return p
}

// modalStep returns the most common positive delta between consecutive rows,
// preferring the smaller delta on a tie.
func modalStep(times []time.Time) time.Duration {
	counts := map[time.Duration]int{}
	for i := 1; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]); d > 0 {
			counts[d]++
		}
	}
	var step time.Duration
	best := 0
	for d, n := range counts {
		if n > best || (n == best && d < step) {
			step, best = d, n
		}
	}
	return step
}
