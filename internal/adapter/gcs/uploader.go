// Package gcs ships model output files to a Google Cloud Storage bucket and
// maintains the bucket's contents manifest.
package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
)

// outputTimeLayout is the file naming scheme of the lake model's output
// directory: one file per simulated hour.
const outputTimeLayout = "2006-01-02 15.npy"

// manifestObject is the bucket-root object listing everything uploaded, kept
// current so downstream readers never have to list the bucket themselves.
const manifestObject = "contents.json"

// ObjectStore is the slice of bucket behavior the uploader needs.
type ObjectStore interface {
	WriteObject(ctx context.Context, name, contentType string, data []byte) error
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// Uploader scans local model output directories and uploads recent files to
// an object store, each under its directory's last path element as prefix.
type Uploader struct {
	store     ObjectStore
	dirs      []string
	retention time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewUploader creates an uploader over the given output directories. Files
// whose encoded hour is older than retention are left alone.
func NewUploader(store ObjectStore, dirs []string, retention time.Duration, clock clockwork.Clock, logger *slog.Logger) *Uploader {
	return &Uploader{
		store:     store,
		dirs:      dirs,
		retention: retention,
		clock:     clock,
		logger:    logger,
	}
}

// Upload ships every output file newer than the retention cutoff and then
// rewrites the bucket manifest. It returns the number of files uploaded.
// A directory that cannot be read (the model may not have produced it yet)
// is skipped with a warning; unrecognized filenames likewise.
func (u *Uploader) Upload(ctx context.Context) (int, error) {
	cutoff := u.clock.Now().UTC().Add(-u.retention)
	uploaded := 0

	for _, dir := range u.dirs {
		prefix := filepath.Base(dir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			u.logger.Warn("skipping unreadable output directory", "dir", dir, "error", err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			at, err := time.Parse(outputTimeLayout, e.Name())
			if err != nil {
				u.logger.Warn("skipping output file with unrecognized name", "dir", dir, "file", e.Name())
				continue
			}
			if !at.After(cutoff) {
				continue
			}

			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return uploaded, fmt.Errorf("reading model output %s: %w", e.Name(), err)
			}
			object := prefix + "/" + e.Name()
			if err := u.store.WriteObject(ctx, object, "application/octet-stream", data); err != nil {
				return uploaded, fmt.Errorf("uploading %s: %w", object, err)
			}
			u.logger.Info("uploaded model output", "object", object, "bytes", len(data))
			uploaded++
		}
	}

	if err := u.updateManifest(ctx); err != nil {
		return uploaded, err
	}
	return uploaded, nil
}

// updateManifest rebuilds contents.json from the store's current listing, one
// sorted object list per prefix.
func (u *Uploader) updateManifest(ctx context.Context) error {
	manifest := make(map[string][]string, len(u.dirs))
	for _, dir := range u.dirs {
		prefix := filepath.Base(dir)
		names, err := u.store.ListObjects(ctx, prefix+"/")
		if err != nil {
			return fmt.Errorf("listing objects under %s: %w", prefix, err)
		}
		sorted := append([]string{}, names...)
		sort.Strings(sorted)
		manifest[prefix] = sorted
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := u.store.WriteObject(ctx, manifestObject, "application/json", data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
