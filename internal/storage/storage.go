// Package storage defines where finished job results are persisted.
//
// Blob stores hold the serialized result; job stores keep one queryable row
// per recorded result pointing at the blob.
package storage

import (
	"context"
	"io"
	"time"
)

// BlobStore persists an object and returns a URI that locates it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// JobStore persists job records.
type JobStore interface {
	RecordJob(ctx context.Context, record JobRecord) error
}

// JobRecord describes one persisted result.
type JobRecord struct {
	ID          string
	JobID       string
	Kind        string
	Status      string
	URL         string
	ItemCount   int
	BlobURI     string
	ContentHash string
	RecordedAt  time.Time
}
