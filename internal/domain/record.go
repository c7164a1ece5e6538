package domain

import (
	"fmt"
	"strconv"
	"time"
)

// stationTimeLayout is the timestamp format of the station report API. The
// API carries no zone designator; readings are UTC.
const stationTimeLayout = "2006-01-02 15:04:05"

// BuoyRecord is one raw report row from the mid-lake buoy. Every value
// arrives as a string; the paired instruments (two of each sensor on one
// mast) are averaged during fusion.
type BuoyRecord struct {
	TmStamp    string `json:"TmStamp"`
	AirTemp1   string `json:"AirTemp_1"`
	AirTemp2   string `json:"AirTemp_2"`
	WindDir1   string `json:"WindDir_1"`
	WindDir2   string `json:"WindDir_2"`
	WindSpeed1 string `json:"WindSpeed_1"`
	WindSpeed2 string `json:"WindSpeed_2"`
}

// ShoreRecord is one raw report row from the shore station. Radiation is
// split into incoming and outgoing components, pressure arrives in millibar
// and humidity in percent; fusion converts all three.
type ShoreRecord struct {
	TmStamp      string `json:"TmStamp"`
	ShortWaveIn  string `json:"ShortWaveIn_wm2"`
	ShortWaveOut string `json:"ShortWaveOut_wm2"`
	BP           string `json:"BP_mbar"`
	RH           string `json:"RH_percent"`
	LongWaveIn   string `json:"LongWaveInCorr_wm2"`
}

// ForecastSample is one interval-tagged value from an NWS gridpoint series.
// Value is nil when the service reports null for the interval.
type ForecastSample struct {
	ValidTime string   `json:"validTime"`
	Value     *float64 `json:"value"`
}

// ForecastSeries is one gridpoint property's full sample list, already
// mapped to its table feature.
type ForecastSeries struct {
	Feature Feature
	Values  []ForecastSample
}

// ForecastLabel ties an NWS gridpoint property name to its table feature.
type ForecastLabel struct {
	Property string
	Feature  Feature
}

// ForecastLabels lists the gridpoint properties the forecast flow consumes,
// in fused column order.
var ForecastLabels = []ForecastLabel{
	{Property: "windDirection", Feature: FeatureWindDirection},
	{Property: "windSpeed", Feature: FeatureWindSpeed},
	{Property: "temperature", Feature: FeatureTemperature},
	{Property: "skyCover", Feature: FeatureSkyCover},
	{Property: "relativeHumidity", Feature: FeatureRelativeHumidity},
}

// parseStationTime parses a station report timestamp as UTC.
func parseStationTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(stationTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing station timestamp %q: %w", s, err)
	}
	return t, nil
}

// parseStationValue parses one stringly-typed station field, naming the
// field and its record on failure so a single bad row is traceable.
func parseStationValue(station, field, ts, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s record at %s: field %s: %w", station, ts, field, err)
	}
	return v, nil
}
