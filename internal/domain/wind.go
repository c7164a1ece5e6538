package domain

import (
	"fmt"
	"math"
)

// DecomposedFeatures is the hindcast column order after wind decomposition,
// and therefore the column order of the hindcast archive.
var DecomposedFeatures = []Feature{
	FeatureShortwave,
	FeatureAirTemp,
	FeatureAtmosphericPressure,
	FeatureRelativeHumidity,
	FeatureLongwave,
	FeatureWindU,
	FeatureWindV,
}

// DecomposeWind converts the scalar wind pair into vector components and
// returns a new table in which wind_speed and wind_direction are replaced by
// wind_u and wind_v, appended after the remaining columns. Direction is the
// meteorological bearing the wind blows from, so both components carry a
// sign flip:
//
//	u = -speed * sin(direction)	(eastward)
//	v = -speed * cos(direction)	(northward)
//
// Rows whose resulting components are not finite are dropped. The input
// table must carry both scalar columns.
func DecomposeWind(t *Table) (*Table, error) {
	si := t.FeatureIndex(FeatureWindSpeed)
	di := t.FeatureIndex(FeatureWindDirection)
	if si < 0 || di < 0 {
		return nil, fmt.Errorf("decomposing wind: table is missing %s or %s", FeatureWindSpeed, FeatureWindDirection)
	}

	features := make([]Feature, 0, len(t.features))
	for _, f := range t.features {
		if f == FeatureWindSpeed || f == FeatureWindDirection {
			continue
		}
		features = append(features, f)
	}
	features = append(features, FeatureWindU, FeatureWindV)

	out := NewTable(features)
	for _, r := range t.rows {
		speed, dir := r.Values[si], r.Values[di]
		rad := dir * math.Pi / 180
		u := -speed * math.Sin(rad)
		v := -speed * math.Cos(rad)
		if !isFinite(u) || !isFinite(v) {
			continue
		}
		values := make([]float64, 0, len(features))
		for j, f := range t.features {
			if f == FeatureWindSpeed || f == FeatureWindDirection {
				continue
			}
			values = append(values, r.Values[j])
		}
		values = append(values, u, v)
		out.rows = append(out.rows, Row{Time: r.Time, Values: values})
	}
	return out, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
