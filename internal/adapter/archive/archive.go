// Package archive persists fused telemetry tables.
//
// Both drivers implement the same replace-overlap contract: storing a batch
// keeps every archived row strictly older than the batch's first row and
// writes the batch after them, so a refetched window replaces what it
// previously produced instead of duplicating it. Loads return rows sorted
// ascending.
package archive

import "github.com/couchcryptid/lake-telemetry-etl/internal/domain"

func featuresEqual(a, b []domain.Feature) bool {
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
