package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) Download(ctx context.Context, key string) (*DownloadResponse, error) {
	filePath := filepath.Join(l.basePath, key)

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	return &DownloadResponse{
		Reader:       file,
		Size:         stat.Size(),
		ContentType:  l.getContentType(key),
		LastModified: stat.ModTime(),
	}, nil
}

func (l *LocalStorage) getContentType(key string) string {
	ext := strings.ToLower(filepath.Ext(key))

	contentTypes := map[string]string{
		".csv":  "text/csv",
		".json": "application/json",
	}

	if contentType, exists := contentTypes[ext]; exists {
		return contentType
	}

	return "application/octet-stream"
}
