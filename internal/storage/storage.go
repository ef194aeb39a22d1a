package storage

import (
	"context"
	"io"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	Bucket           string
	Key              string
	ContentType      string
	ProgressCallback func(done, total int64)
}

// Service stores catalog snapshots in remote object storage.
type Service interface {
	// Upload writes size bytes from body and returns the object location.
	Upload(ctx context.Context, body io.Reader, size int64, opts UploadOptions) (string, error)
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	// Delete removes exactly the named objects. Missing keys are not an error.
	Delete(ctx context.Context, bucket string, keys []string) error
}
