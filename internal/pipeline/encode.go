package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/lake-telemetry-etl/internal/domain"
)

// EncodeRows turns every table row into one topic message. The key is the
// row's RFC 3339 timestamp so rows for the same instant land in the same
// partition and compact against each other. NaN cells are omitted from the
// payload rather than serialized, since JSON has no encoding for them.
func EncodeRows(t *domain.Table, flow string, producedAt time.Time) ([]domain.Message, error) {
	if t == nil || t.Len() == 0 {
		return nil, nil
	}

	produced := producedAt.UTC().Format(time.RFC3339)
	msgs := make([]domain.Message, 0, t.Len())
	for _, row := range t.Rows() {
		ts := row.Time.UTC().Format(time.RFC3339)
		payload := make(map[string]any, len(row.Values)+1)
		payload["time"] = ts
		for j, f := range t.Features() {
			if v := row.Values[j]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				payload[string(f)] = v
			}
		}
		value, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding row %s: %w", ts, err)
		}
		msgs = append(msgs, domain.Message{
			Key:   []byte(ts),
			Value: value,
			Headers: map[string]string{
				"flow":        flow,
				"produced_at": produced,
			},
		})
	}
	return msgs, nil
}
