package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStamp = "2024-02-05 00:00:00"

func testBuoyRecord(stamp string) BuoyRecord {
	return BuoyRecord{
		TmStamp:    stamp,
		AirTemp1:   "10",
		AirTemp2:   "20",
		WindDir1:   "350",
		WindDir2:   "10",
		WindSpeed1: "5",
		WindSpeed2: "7",
	}
}

func testShoreRecord(stamp string) ShoreRecord {
	return ShoreRecord{
		TmStamp:      stamp,
		ShortWaveIn:  "300",
		ShortWaveOut: "50",
		BP:           "820.5",
		RH:           "45",
		LongWaveIn:   "310",
	}
}

func TestFuseStationRecords(t *testing.T) {
	t.Run("both feeds land in one dense row", func(t *testing.T) {
		tb, err := FuseStationRecords(
			[]BuoyRecord{testBuoyRecord(testStamp)},
			[]ShoreRecord{testShoreRecord(testStamp)},
		)

		require.NoError(t, err)
		require.Equal(t, 1, tb.Len())
		assert.Equal(t, HindcastFeatures, tb.Features())
		assert.Equal(t, testOrigin, tb.Rows()[0].Time)

		want := map[Feature]float64{
			FeatureAirTemp:             15,    // pair mean
			FeatureWindDirection:       180,   // pair mean, no circular wrap
			FeatureWindSpeed:           6,     //
			FeatureShortwave:           250,   // in minus out
			FeatureAtmosphericPressure: 82050, // mbar to Pa
			FeatureRelativeHumidity:    0.45,  // percent to fraction
			FeatureLongwave:            310,
		}
		for f, wantV := range want {
			v, ok := tb.Value(0, f)
			require.True(t, ok, "feature %s", f)
			assert.Equal(t, wantV, v, "feature %s", f)
		}
	})

	t.Run("lopsided timestamps trim away", func(t *testing.T) {
		tb, err := FuseStationRecords(
			[]BuoyRecord{testBuoyRecord(testStamp), testBuoyRecord("2024-02-05 00:20:00")},
			[]ShoreRecord{testShoreRecord(testStamp)},
		)

		require.NoError(t, err)
		assert.Equal(t, 2, tb.Len())

		trimmed := tb.TrimGaps()
		require.Equal(t, 1, trimmed.Len())
		assert.Equal(t, testOrigin, trimmed.Rows()[0].Time)
	})

	t.Run("rows sort ascending regardless of feed order", func(t *testing.T) {
		tb, err := FuseStationRecords(
			[]BuoyRecord{testBuoyRecord("2024-02-05 00:40:00"), testBuoyRecord(testStamp)},
			nil,
		)

		require.NoError(t, err)
		require.Equal(t, 2, tb.Len())
		assert.True(t, tb.Rows()[0].Time.Before(tb.Rows()[1].Time))
	})

	t.Run("malformed buoy value fails the batch", func(t *testing.T) {
		rec := testBuoyRecord(testStamp)
		rec.WindDir1 = "northish"
		_, err := FuseStationRecords([]BuoyRecord{rec}, nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "WindDir_1")
		assert.Contains(t, err.Error(), testStamp)
	})

	t.Run("malformed shore timestamp fails the batch", func(t *testing.T) {
		rec := testShoreRecord("02/05/2024 00:00")
		_, err := FuseStationRecords(nil, []ShoreRecord{rec})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "station timestamp")
	})

	t.Run("empty feeds build an empty table", func(t *testing.T) {
		tb, err := FuseStationRecords(nil, nil)

		require.NoError(t, err)
		assert.Equal(t, 0, tb.Len())
	})
}

func forecastValue(v float64) *float64 { return &v }

func testForecastSeries(hour, duration int, value float64) []ForecastSeries {
	validTime := fmt.Sprintf("2024-02-05T%02d:00:00+00:00", hour)
	if duration > 0 {
		validTime = fmt.Sprintf("%s/PT%dH", validTime, duration)
	}
	series := make([]ForecastSeries, len(ForecastLabels))
	for i, l := range ForecastLabels {
		series[i] = ForecastSeries{
			Feature: l.Feature,
			Values:  []ForecastSample{{ValidTime: validTime, Value: forecastValue(value)}},
		}
	}
	return series
}

func TestFuseForecastSeries(t *testing.T) {
	t.Run("intervals expand onto the hourly axis", func(t *testing.T) {
		tb, err := FuseForecastSeries(testForecastSeries(2, 2, 7.5))

		require.NoError(t, err)
		require.Equal(t, 2, tb.Len())
		assert.Equal(t, ForecastFeatures, tb.Features())
		for i, wantHour := range []int{2, 3} {
			assert.Equal(t, time.Date(2024, 2, 5, wantHour, 0, 0, 0, time.UTC), tb.Rows()[i].Time)
			for _, f := range ForecastFeatures {
				v, ok := tb.Value(i, f)
				require.True(t, ok, "feature %s hour %d", f, wantHour)
				assert.Equal(t, 7.5, v)
			}
		}
		assert.Equal(t, 2, tb.TrimGaps().Len(), "fully populated rows survive the trim")
	})

	t.Run("later samples overwrite overlapped hours", func(t *testing.T) {
		series := []ForecastSeries{{
			Feature: FeatureWindSpeed,
			Values: []ForecastSample{
				{ValidTime: "2024-02-05T02:00:00+00:00/PT2H", Value: forecastValue(5)},
				{ValidTime: "2024-02-05T03:00:00+00:00/PT1H", Value: forecastValue(9)},
			},
		}}
		tb, err := FuseForecastSeries(series)

		require.NoError(t, err)
		require.Equal(t, 2, tb.Len())
		v, _ := tb.Value(0, FeatureWindSpeed)
		assert.Equal(t, 5.0, v)
		v, _ = tb.Value(1, FeatureWindSpeed)
		assert.Equal(t, 9.0, v)
	})

	t.Run("null sample leaves an absent cell", func(t *testing.T) {
		series := testForecastSeries(2, 1, 3)
		series[2].Values[0].Value = nil // temperature
		tb, err := FuseForecastSeries(series)

		require.NoError(t, err)
		require.Equal(t, 1, tb.Len())
		_, ok := tb.Value(0, FeatureTemperature)
		assert.False(t, ok)
		assert.Equal(t, 0, tb.TrimGaps().Len())
	})

	t.Run("unknown series fails the batch", func(t *testing.T) {
		series := []ForecastSeries{{Feature: FeatureLongwave}}
		_, err := FuseForecastSeries(series)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a forecast feature")
	})

	t.Run("bad interval fails the batch", func(t *testing.T) {
		series := []ForecastSeries{{
			Feature: FeatureWindSpeed,
			Values:  []ForecastSample{{ValidTime: "whenever", Value: forecastValue(1)}},
		}}
		_, err := FuseForecastSeries(series)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "wind_speed")
	})
}
