package domain

// Bounds is the closed physical range a feature may occupy. Values outside
// it are instrument faults, not weather.
type Bounds struct {
	Lo float64
	Hi float64
}

// FeatureBounds maps features to their physical ranges. Features without an
// entry are never clipped and never checked for bound-stuck runs.
type FeatureBounds map[Feature]Bounds

// DefaultBounds holds the ranges for the Lake Tahoe station instruments.
// The shortwave floor sits just below zero so that calm nighttime readings
// of exactly 0 survive the bound-stuck repair untouched.
var DefaultBounds = FeatureBounds{
	FeatureRelativeHumidity:    {Lo: 0, Hi: 1},
	FeatureShortwave:           {Lo: -0.001, Hi: 1300},
	FeatureLongwave:            {Lo: 50, Hi: 450},
	FeatureAtmosphericPressure: {Lo: 75000, Hi: 90000},
	FeatureAirTemp:             {Lo: -20, Hi: 70},
	FeatureWindSpeed:           {Lo: 0, Hi: 40},
	FeatureWindDirection:       {Lo: 0, Hi: 360},
}
