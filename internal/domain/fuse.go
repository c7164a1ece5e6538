package domain

import (
	"fmt"
	"math"
)

// HindcastFeatures is the column order of the fused station table.
var HindcastFeatures = []Feature{
	FeatureShortwave,
	FeatureAirTemp,
	FeatureAtmosphericPressure,
	FeatureRelativeHumidity,
	FeatureLongwave,
	FeatureWindSpeed,
	FeatureWindDirection,
}

// ForecastFeatures is the column order of the fused forecast table, derived
// from the gridpoint property order.
var ForecastFeatures = forecastFeatures()

func forecastFeatures() []Feature {
	features := make([]Feature, len(ForecastLabels))
	for i, l := range ForecastLabels {
		features[i] = l.Feature
	}
	return features
}

// FuseStationRecords merges raw buoy and shore reports onto one time axis
// and returns the fused hindcast table, sorted ascending. The buoy's paired
// instruments accumulate into their shared cell and resolve to their mean;
// shore values are converted to canonical units as they land:
//
//	shortwave            = ShortWaveIn_wm2 - ShortWaveOut_wm2   (net W/m²)
//	atmospheric_pressure = BP_mbar * 100                        (Pa)
//	relative_humidity    = RH_percent / 100                     (fraction)
//	longwave             = LongWaveInCorr_wm2                   (W/m²)
//
// Timestamps present in only one feed produce rows with absent cells; the
// caller trims those. Any unparseable timestamp or value fails the whole
// batch.
func FuseStationRecords(buoy []BuoyRecord, shore []ShoreRecord) (*Table, error) {
	b := NewBuilder(HindcastFeatures)

	for _, rec := range buoy {
		at, err := parseStationTime(rec.TmStamp)
		if err != nil {
			return nil, fmt.Errorf("buoy: %w", err)
		}
		fields := []struct {
			feature Feature
			name    string
			raw     string
		}{
			{FeatureAirTemp, "AirTemp_1", rec.AirTemp1},
			{FeatureAirTemp, "AirTemp_2", rec.AirTemp2},
			{FeatureWindDirection, "WindDir_1", rec.WindDir1},
			{FeatureWindDirection, "WindDir_2", rec.WindDir2},
			{FeatureWindSpeed, "WindSpeed_1", rec.WindSpeed1},
			{FeatureWindSpeed, "WindSpeed_2", rec.WindSpeed2},
		}
		for _, f := range fields {
			v, err := parseStationValue("buoy", f.name, rec.TmStamp, f.raw)
			if err != nil {
				return nil, err
			}
			b.Add(at, f.feature, v)
		}
	}

	for _, rec := range shore {
		at, err := parseStationTime(rec.TmStamp)
		if err != nil {
			return nil, fmt.Errorf("shore: %w", err)
		}
		swIn, err := parseStationValue("shore", "ShortWaveIn_wm2", rec.TmStamp, rec.ShortWaveIn)
		if err != nil {
			return nil, err
		}
		swOut, err := parseStationValue("shore", "ShortWaveOut_wm2", rec.TmStamp, rec.ShortWaveOut)
		if err != nil {
			return nil, err
		}
		bp, err := parseStationValue("shore", "BP_mbar", rec.TmStamp, rec.BP)
		if err != nil {
			return nil, err
		}
		rh, err := parseStationValue("shore", "RH_percent", rec.TmStamp, rec.RH)
		if err != nil {
			return nil, err
		}
		lw, err := parseStationValue("shore", "LongWaveInCorr_wm2", rec.TmStamp, rec.LongWaveIn)
		if err != nil {
			return nil, err
		}
		b.Set(at, FeatureShortwave, swIn-swOut)
		b.Set(at, FeatureAtmosphericPressure, bp*100)
		b.Set(at, FeatureRelativeHumidity, rh/100)
		b.Set(at, FeatureLongwave, lw)
	}

	return b.Build(), nil
}

// FuseForecastSeries expands interval-tagged gridpoint series onto an hourly
// axis and returns the fused forecast table, sorted ascending. Later samples
// of a series overwrite earlier ones where their expanded intervals overlap.
// Null samples land as absent cells so the caller's trim drops the hours
// they cover. A series outside the forecast feature set or an unparseable
// interval fails the whole batch.
func FuseForecastSeries(series []ForecastSeries) (*Table, error) {
	b := NewBuilder(ForecastFeatures)
	for _, s := range series {
		if !isForecastFeature(s.Feature) {
			return nil, fmt.Errorf("forecast series %q: not a forecast feature", s.Feature)
		}
		for _, sample := range s.Values {
			v := math.NaN()
			if sample.Value != nil {
				v = *sample.Value
			}
			readings, err := ExpandInterval(sample.ValidTime, s.Feature, v)
			if err != nil {
				return nil, fmt.Errorf("forecast series %s: %w", s.Feature, err)
			}
			for _, r := range readings {
				b.Set(r.Time, r.Feature, r.Value)
			}
		}
	}
	return b.Build(), nil
}

func isForecastFeature(f Feature) bool {
	for _, known := range ForecastFeatures {
		if known == f {
			return true
		}
	}
	return false
}
