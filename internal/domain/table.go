package domain

import (
	"math"
	"sort"
	"time"
)

// Feature is the canonical name of one telemetry column.
type Feature string

// Hindcast features, in table column order. The station flow carries all
// seven; DecomposeWind later replaces the scalar wind pair with wind_u/wind_v.
const (
	FeatureShortwave           Feature = "shortwave"
	FeatureAirTemp             Feature = "air_temp"
	FeatureAtmosphericPressure Feature = "atmospheric_pressure"
	FeatureRelativeHumidity    Feature = "relative_humidity"
	FeatureLongwave            Feature = "longwave"
	FeatureWindSpeed           Feature = "wind_speed"
	FeatureWindDirection       Feature = "wind_direction"
	FeatureWindU               Feature = "wind_u"
	FeatureWindV               Feature = "wind_v"
)

// Forecast-only features reported by the NWS gridpoint endpoint.
const (
	FeatureTemperature Feature = "temperature"
	FeatureSkyCover    Feature = "sky_cover"
)

// Reading is one instrument's value for one feature at one instant (UTC).
type Reading struct {
	Time    time.Time
	Feature Feature
	Value   float64
}

// Row holds one timestamp's values across all table features. Values is
// parallel to the table's feature list; NaN marks an absent cell.
type Row struct {
	Time   time.Time
	Values []float64
}

// Table is an ordered sequence of rows sorted ascending by timestamp, with a
// fixed feature list defining column order. At most one row exists per
// distinct timestamp.
type Table struct {
	features []Feature
	rows     []Row
}

// NewTable creates an empty table with the given column order.
func NewTable(features []Feature) *Table {
	return &Table{features: append([]Feature(nil), features...)}
}

// Features returns the column order. Callers must not modify the slice.
func (t *Table) Features() []Feature { return t.features }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the underlying rows. The table retains ownership; callers
// that need an independent copy should build one.
func (t *Table) Rows() []Row { return t.rows }

// FeatureIndex returns the column position of f, or -1 when the table does
// not carry that feature.
func (t *Table) FeatureIndex(f Feature) int {
	for i, name := range t.features {
		if name == f {
			return i
		}
	}
	return -1
}

// Value returns the cell for feature f in row i. The second return is false
// when the table has no such feature or the cell is absent (NaN).
func (t *Table) Value(i int, f Feature) (float64, bool) {
	j := t.FeatureIndex(f)
	if j < 0 || i < 0 || i >= len(t.rows) {
		return 0, false
	}
	v := t.rows[i].Values[j]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// TrimGaps returns a new table containing only the rows with no absent cell,
// preserving order. Partial rows are not salvageable: the cleaner's rolling
// statistics need dense series, so a single missing cell discards the whole
// timestamp. Zero surviving rows yields an empty table, not an error.
func (t *Table) TrimGaps() *Table {
	out := NewTable(t.features)
	for _, r := range t.rows {
		if rowHasGap(r) {
			continue
		}
		out.rows = append(out.rows, Row{Time: r.Time, Values: append([]float64(nil), r.Values...)})
	}
	return out
}

func rowHasGap(r Row) bool {
	for _, v := range r.Values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// column copies column j into a fresh slice.
func (t *Table) column(j int) []float64 {
	col := make([]float64, len(t.rows))
	for i := range t.rows {
		col[i] = t.rows[i].Values[j]
	}
	return col
}

// setColumn writes col back into column j.
func (t *Table) setColumn(j int, col []float64) {
	for i := range t.rows {
		t.rows[i].Values[j] = col[i]
	}
}

// Builder assembles a sparse table from readings that arrive in any order.
// The first touch of a new timestamp allocates a full row of NaN cells; each
// reading then fills only its own feature cell. Two write modes exist: Set
// overwrites the cell, Add accumulates and resolves to the arithmetic mean of
// everything added when the table is built (redundant co-located instruments
// average this way). Cells touched by Add resolve to the mean even if Set
// also wrote them.
type Builder struct {
	features []Feature
	index    map[Feature]int
	rows     map[int64]*sparseRow
}

type sparseRow struct {
	at     time.Time
	values []float64
	sums   []float64
	counts []int
}

// NewBuilder creates a builder producing tables with the given column order.
func NewBuilder(features []Feature) *Builder {
	index := make(map[Feature]int, len(features))
	for i, f := range features {
		index[f] = i
	}
	return &Builder{
		features: append([]Feature(nil), features...),
		index:    index,
		rows:     make(map[int64]*sparseRow),
	}
}

// Set writes a cell, overwriting any prior Set value. Timestamps are
// normalized to UTC. Features outside the builder's column list are ignored.
func (b *Builder) Set(at time.Time, f Feature, v float64) {
	j, ok := b.index[f]
	if !ok {
		return
	}
	b.row(at).values[j] = v
}

// Add accumulates a cell; Build resolves it to the mean of all added values.
func (b *Builder) Add(at time.Time, f Feature, v float64) {
	j, ok := b.index[f]
	if !ok {
		return
	}
	r := b.row(at)
	r.sums[j] += v
	r.counts[j]++
}

func (b *Builder) row(at time.Time) *sparseRow {
	at = at.UTC()
	key := at.Unix()
	r, ok := b.rows[key]
	if !ok {
		values := make([]float64, len(b.features))
		for i := range values {
			values[i] = math.NaN()
		}
		r = &sparseRow{
			at:     at,
			values: values,
			sums:   make([]float64, len(b.features)),
			counts: make([]int, len(b.features)),
		}
		b.rows[key] = r
	}
	return r
}

// Build resolves accumulated cells and returns the rows sorted ascending by
// timestamp. The builder can be reused afterwards but keeps its state.
func (b *Builder) Build() *Table {
	t := NewTable(b.features)
	t.rows = make([]Row, 0, len(b.rows))
	for _, r := range b.rows {
		values := append([]float64(nil), r.values...)
		for j, n := range r.counts {
			if n > 0 {
				values[j] = r.sums[j] / float64(n)
			}
		}
		t.rows = append(t.rows, Row{Time: r.at, Values: values})
	}
	sort.Slice(t.rows, func(i, j int) bool { return t.rows[i].Time.Before(t.rows[j].Time) })
	return t
}
