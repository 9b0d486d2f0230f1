package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCPStorage struct {
	client *storage.Client
	bucket string
}

func NewGCPStorage(projectID, bucket, credentialsFile string) (*GCPStorage, error) {
	ctx := context.Background()

	var client *storage.Client
	var err error

	if credentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	} else {
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create GCP storage client: %w", err)
	}

	return &GCPStorage{
		client: client,
		bucket: bucket,
	}, nil
}

func (g *GCPStorage) Download(ctx context.Context, key string) (*DownloadResponse, error) {
	bucket := g.client.Bucket(g.bucket)
	object := bucket.Object(key)

	reader, err := object.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}

	attrs, err := object.Attrs(ctx)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("failed to get object attributes: %w", err)
	}

	return &DownloadResponse{
		Reader:       reader,
		Size:         attrs.Size,
		ContentType:  attrs.ContentType,
		Metadata:     attrs.Metadata,
		LastModified: attrs.Updated,
		ETag:         attrs.Etag,
	}, nil
}
