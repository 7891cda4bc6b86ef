package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// ObjectStorage is the slice of an S3-style bucket the archiver needs.
type ObjectStorage interface {
	Put(ctx context.Context, object, contentType string, data []byte) error
	PresignGet(ctx context.Context, object, filename string, expiry time.Duration) (string, error)
}

type MinioStorage struct {
	client *minio.Client
	bucket string
}

func NewMinioStorage(client *minio.Client, bucket string) *MinioStorage {
	return &MinioStorage{client: client, bucket: bucket}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

func (m *MinioStorage) Put(ctx context.Context, object, contentType string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload export: %w", err)
	}
	return nil
}

func (m *MinioStorage) PresignGet(ctx context.Context, object, filename string, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	u, err := m.client.PresignedGetObject(ctx, m.bucket, object, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign export: %w", err)
	}
	return u.String(), nil
}

type ArchiveResult struct {
	Object    string    `json:"object"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ArchiveService stores exports in object storage and hands back a
// time-limited download link.
type ArchiveService struct {
	exports *ExportService
	storage ObjectStorage
	expiry  time.Duration
	now     Clock
}

func NewArchiveService(exports *ExportService, storage ObjectStorage, expiry time.Duration) *ArchiveService {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &ArchiveService{exports: exports, storage: storage, expiry: expiry}
}

func (s *ArchiveService) Archive(ctx context.Context, params ExportParams) (*ArchiveResult, error) {
	if s == nil || s.storage == nil {
		return nil, withKey(NewBadGatewayError("Object storage is not configured"), "storage.unavailable")
	}
	res, err := s.exports.Export(ctx, params)
	if err != nil {
		return nil, err
	}
	now := s.now.now()
	object := fmt.Sprintf("exports/%s/%s-%s", params.FormID, now.Format("20060102T150405Z"), res.Filename)
	if err := s.storage.Put(ctx, object, res.ContentType, res.Data); err != nil {
		return nil, withKey(NewBadGatewayError(err.Error()), "storage.unavailable")
	}
	link, err := s.storage.PresignGet(ctx, object, res.Filename, s.expiry)
	if err != nil {
		return nil, withKey(NewBadGatewayError(err.Error()), "storage.unavailable")
	}
	return &ArchiveResult{Object: object, URL: link, ExpiresAt: now.Add(s.expiry)}, nil
}
