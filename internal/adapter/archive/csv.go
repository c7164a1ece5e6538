package archive

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/lake-telemetry-etl/internal/domain"
)

// CSV archives one flow as a single comma-separated file. The first column
// is an RFC 3339 timestamp and the remaining columns follow the table's
// feature order. Writes go through a temp file and a rename, so a crashed
// store never leaves a half-written archive behind.
type CSV struct {
	path string
}

// NewCSV returns a CSV archive backed by the file at path. The file does not
// need to exist yet.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Store merges the batch into the archive. Existing rows at or after the
// batch's first timestamp are dropped in its favor. An empty batch is a
// no-op.
func (c *CSV) Store(ctx context.Context, t *domain.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.Len() == 0 {
		return nil
	}

	existing, err := c.Load(ctx)
	if err != nil {
		return err
	}

	var kept []domain.Row
	if existing.Len() > 0 {
		if !featuresEqual(existing.Features(), t.Features()) {
			return fmt.Errorf("archive %s: stored features %v do not match batch features %v",
				c.path, existing.Features(), t.Features())
		}
		first := t.Rows()[0].Time
		for _, r := range existing.Rows() {
			if r.Time.Before(first) {
				kept = append(kept, r)
			}
		}
	}
	return c.write(t.Features(), append(kept, t.Rows()...))
}

// Load reads the whole archive sorted ascending. A file that does not exist
// yet loads as an empty table.
func (c *CSV) Load(_ context.Context) (*domain.Table, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewTable(nil), nil
		}
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", c.path, err)
	}
	if len(records) == 0 {
		return domain.NewTable(nil), nil
	}

	header := records[0]
	if len(header) < 2 || header[0] != "time" {
		return nil, fmt.Errorf("archive %s: malformed header %v", c.path, header)
	}
	features := make([]domain.Feature, 0, len(header)-1)
	for _, name := range header[1:] {
		features = append(features, domain.Feature(name))
	}

	b := domain.NewBuilder(features)
	for i, rec := range records[1:] {
		at, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("archive %s row %d: %w", c.path, i+1, err)
		}
		for j, field := range rec[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("archive %s row %d, column %s: %w", c.path, i+1, features[j], err)
			}
			b.Set(at, features[j], v)
		}
	}
	return b.Build(), nil
}

func (c *CSV) write(features []domain.Feature, rows []domain.Row) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp archive: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := csv.NewWriter(tmp)
	header := make([]string, 0, len(features)+1)
	header = append(header, "time")
	for _, f := range features {
		header = append(header, string(f))
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing archive header: %w", err)
	}
	rec := make([]string, len(features)+1)
	for _, r := range rows {
		rec[0] = r.Time.UTC().Format(time.RFC3339)
		for j, v := range r.Values {
			rec[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("writing archive row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replacing archive: %w", err)
	}
	return nil
}
