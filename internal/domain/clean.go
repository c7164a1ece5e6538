package domain

// Cleaning stage tuning. The sigma window is wide enough to smooth over
// multi-hour storm fronts at the 20-minute station cadence; the median
// window is narrow enough to drop single-sample spikes without flattening
// real gusts.
const (
	medianWindow = 5
	sigmaWindow  = 100
	sigmaFactor  = 3
)

// CleanStats counts the repairs made by one CleanTable pass, per stage.
type CleanStats struct {
	Clipped       int
	SigmaRepaired int
	StuckRepaired int
}

// CleanTable runs the outlier repair pipeline over every feature column of t
// in place and reports how many cells each stage touched. Columns are
// independent; rows are never added or removed. The stages, in order:
//
//  1. centered rolling median (window 5) over every column
//  2. hard clip to the feature's physical bounds
//  3. rolling 3-sigma repair (window 100) over every column
//  4. bound-stuck repair: values sitting exactly on a bound become the
//     local rolling mean (shortwave is exempt; a calm night really is 0)
//  5. the median filter again, smoothing seams the repairs left behind
//
// Features without a bounds entry skip stages 2 and 4 but still pass
// through the median and sigma stages. Empty tables are a no-op.
func CleanTable(t *Table, bounds FeatureBounds) CleanStats {
	var stats CleanStats
	if t == nil || t.Len() == 0 {
		return stats
	}

	for j := range t.features {
		t.setColumn(j, rollingMedian(t.column(j), medianWindow))
	}

	for j, f := range t.features {
		b, ok := bounds[f]
		if !ok {
			continue
		}
		col := t.column(j)
		stats.Clipped += clipColumn(col, b)
		t.setColumn(j, col)
	}

	for j := range t.features {
		col := t.column(j)
		stats.SigmaRepaired += sigmaRepairColumn(col)
		t.setColumn(j, col)
	}

	for j, f := range t.features {
		if f == FeatureShortwave {
			continue
		}
		b, ok := bounds[f]
		if !ok {
			continue
		}
		col := t.column(j)
		stats.StuckRepaired += stuckRepairColumn(col, b)
		t.setColumn(j, col)
	}

	for j := range t.features {
		t.setColumn(j, rollingMedian(t.column(j), medianWindow))
	}
	return stats
}

// clipColumn clamps col to [b.Lo, b.Hi] in place and returns the number of
// values moved.
func clipColumn(col []float64, b Bounds) int {
	clipped := 0
	for i, v := range col {
		switch {
		case v < b.Lo:
			col[i] = b.Lo
			clipped++
		case v > b.Hi:
			col[i] = b.Hi
			clipped++
		}
	}
	return clipped
}

// sigmaRepairColumn replaces values outside the rolling 3-sigma band with
// the rolling mean, in place, and returns the number of cells whose value
// changed. The mean and deviation are computed once from a snapshot and stay
// frozen across both passes: first values at or below the lower band are
// replaced, then values at or above the upper band, so a cell rewritten by
// the first pass is judged against the original statistics by the second.
// The first label's deviation is pinned to 0, which collapses the first
// sample to its window mean rather than comparing it against an undefined
// spread.
func sigmaRepairColumn(col []float64) int {
	if len(col) == 0 {
		return 0
	}
	snapshot := append([]float64(nil), col...)
	mean := rollingMean(snapshot, sigmaWindow)
	std := rollingStd(snapshot, sigmaWindow)
	std[0] = 0

	repaired := 0
	for i := range col {
		if col[i] <= mean[i]-sigmaFactor*std[i] {
			if col[i] != mean[i] {
				repaired++
			}
			col[i] = mean[i]
		}
	}
	for i := range col {
		if col[i] >= mean[i]+sigmaFactor*std[i] {
			if col[i] != mean[i] {
				repaired++
			}
			col[i] = mean[i]
		}
	}
	return repaired
}

// stuckRepairColumn replaces values resting exactly on a bound with the
// rolling mean, in place, and returns the number of cells whose value
// changed. A sensor pinned at a rail reports the bound verbatim for hours; a
// true extreme wobbles. The mean is taken once at stage entry, upper rail
// first, then lower.
func stuckRepairColumn(col []float64, b Bounds) int {
	if len(col) == 0 {
		return 0
	}
	mean := rollingMean(col, sigmaWindow)

	repaired := 0
	for i := range col {
		if col[i] == b.Hi {
			if col[i] != mean[i] {
				repaired++
			}
			col[i] = mean[i]
		}
	}
	for i := range col {
		if col[i] == b.Lo {
			if col[i] != mean[i] {
				repaired++
			}
			col[i] = mean[i]
		}
	}
	return repaired
}
