package storage

import "context"

// BlobStore is the boundary contract to the object-storage collaborator
// (S3/OSS in production). The core stores only the returned URL/path and
// never keeps raw bytes.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, path string, mime string) (url string, err error)
	Delete(ctx context.Context, path string) error
}
