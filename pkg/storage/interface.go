
package storage

import (
	"context"
	"io"
	"time"
)

// StorageProvider is the read-only object-storage surface the contact
// store exercises (§4.12): each backend only needs to fetch a
// campaign's uploaded contact list by key.
type StorageProvider interface {
	Download(ctx context.Context, key string) (*DownloadResponse, error)
}

type DownloadResponse struct {
	Reader       io.ReadCloser     `json:"-"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	Metadata     map[string]string `json:"metadata"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag"`
}
