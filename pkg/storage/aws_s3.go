package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type AWSS3Storage struct {
	client *s3.Client
	bucket string
}

func NewAWSS3Storage(region, bucket string) (*AWSS3Storage, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSS3Storage{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

func (a *AWSS3Storage) Download(ctx context.Context, key string) (*DownloadResponse, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}

	resp, err := a.client.GetObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}

	return &DownloadResponse{
		Reader:       resp.Body,
		Size:         aws.ToInt64(resp.ContentLength),
		ContentType:  aws.ToString(resp.ContentType),
		Metadata:     resp.Metadata,
		LastModified: aws.ToTime(resp.LastModified),
		ETag:         aws.ToString(resp.ETag),
	}, nil
}
