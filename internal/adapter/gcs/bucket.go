package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// Bucket adapts one GCS bucket to the ObjectStore interface. Credentials come
// from the environment (application default credentials).
type Bucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewBucket opens a client against the named bucket.
func NewBucket(ctx context.Context, name string) (*Bucket, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &Bucket{client: client, bucket: client.Bucket(name)}, nil
}

// Close releases the underlying client.
func (b *Bucket) Close() error {
	return b.client.Close()
}

// WriteObject writes data to the named object, replacing any prior contents.
func (b *Bucket) WriteObject(ctx context.Context, name, contentType string, data []byte) error {
	w := b.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("writing object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing object %s: %w", name, err)
	}
	return nil
}

// ListObjects returns the names of every object under prefix.
func (b *Bucket) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing objects under %s: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}
