// Package domain models Lake Tahoe environmental telemetry: raw station
// reports, National Weather Service (NWS) gridded forecasts, and the fused
// tables the lake model consumes.
//
// # Data Sources
//
// Hindcast data comes from two UC Davis TERC stations, fetched as JSON from
// the station report API: the mid-lake buoy (near-surface meteorology, every
// instrument mounted in redundant pairs) and the shore station (radiation,
// pressure and humidity). Forecast data comes from one NWS gridpoint
// endpoint covering the lake.
//
// # Station Report Conventions
//
// Timestamp format:
//
//	"2006-01-02 15:04:05" with no zone designator; values are UTC.
//	Both feeds report on a 20-minute cadence but drop rows independently,
//	so the fused table starts sparse and is trimmed dense.
//
// Redundant instruments:
//
//	The buoy carries two of each sensor (AirTemp_1/AirTemp_2, and so on).
//	Fusion averages each pair into a single column; a lone surviving
//	reading passes through unchanged.
//
// Unit conversions (applied during fusion, canonical units everywhere
// afterward):
//
//	shortwave            = ShortWaveIn_wm2 - ShortWaveOut_wm2   net W/m²
//	atmospheric_pressure = BP_mbar * 100                        Pa
//	relative_humidity    = RH_percent / 100                     fraction 0..1
//	longwave             = LongWaveInCorr_wm2                   W/m²
//
// # Forecast Interval Encoding
//
// Gridpoint samples are tagged with ISO 8601 intervals:
//
//	"2024-02-05T06:00:00+00:00/PT2H" → value holds for 2 hours from 06:00.
//	Expansion emits one reading per covered hour. Durations are truncated
//	to whole hours (PT90M → 1h); the grid itself is hourly, so sub-hour
//	precision carries no information. See [ParseInterval].
//
// # Cleaning
//
// Station instruments fail in three recognizable ways: single-sample
// spikes (electrical noise), impossible values (a humidity of 700%), and
// rail-stuck runs where a sensor repeats a bound verbatim for hours.
// [CleanTable] repairs all three with rolling-window statistics instead of
// dropping rows, because the downstream model needs an unbroken forcing
// series. Repairs substitute the local rolling mean, never a global one, so
// a repaired cell stays plausible for its hour of the day.
//
// # Vector Wind
//
// The model ingests wind as vector components. [DecomposeWind] converts the
// scalar speed/direction pair using the meteorological convention that
// direction names where wind comes from, which puts a sign flip on both
// components.
package domain
