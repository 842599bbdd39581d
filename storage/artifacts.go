package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"VoxTA/config"

	"github.com/minio/minio-go/v7"
)

// Artifacts 任务产物和上传文件的读写能力，服务层只依赖这个接口。
type Artifacts interface {
	Put(ctx context.Context, objectKey string, data []byte, contentType string) error
	PutFile(ctx context.Context, objectKey, filePath, contentType string) error
	Open(ctx context.Context, objectKey string) (io.ReadCloser, error)
	Fetch(ctx context.Context, objectKey string) ([]byte, error)
	FetchToFile(ctx context.Context, objectKey, destPath string) error
	Delete(ctx context.Context, objectKey string) error
	Stat(ctx context.Context, objectKey string) (int64, error)
}

// ArtifactStore 负责任务产物和上传文件在对象存储中的读写。
// 对象键约定：voices/<id>.<ext>、media/<id>.<ext>、courseware/<id>.<ext>、
// results/<task_id>.<ext>。
type ArtifactStore struct {
	client *minio.Client
	bucket string
}

// NewArtifactStore creates an ArtifactStore bound to the configured bucket.
func NewArtifactStore(cfg *config.Config) *ArtifactStore {
	return &ArtifactStore{client: GetMinioClient(), bucket: cfg.MinioBucket}
}

// Put uploads bytes under the given object key.
func (s *ArtifactStore) Put(ctx context.Context, objectKey string, data []byte, contentType string) error {
	if s.client == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", objectKey, err)
	}
	return nil
}

// PutFile uploads a local file under the given object key.
func (s *ArtifactStore) PutFile(ctx context.Context, objectKey, filePath, contentType string) error {
	if s.client == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	_, err := s.client.FPutObject(ctx, s.bucket, objectKey, filePath,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to put object %s from %s: %w", objectKey, filePath, err)
	}
	return nil
}

// Open returns a reader for the object. The caller must close it.
func (s *ArtifactStore) Open(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	if s.client == nil {
		return nil, fmt.Errorf("MinIO client not initialized")
	}
	object, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectKey, err)
	}
	return object, nil
}

// Fetch downloads the whole object into memory.
func (s *ArtifactStore) Fetch(ctx context.Context, objectKey string) ([]byte, error) {
	object, err := s.Open(ctx, objectKey)
	if err != nil {
		return nil, err
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", objectKey, err)
	}
	return data, nil
}

// FetchToFile downloads an object to a local path.
func (s *ArtifactStore) FetchToFile(ctx context.Context, objectKey, destPath string) error {
	object, err := s.Open(ctx, objectKey)
	if err != nil {
		return err
	}
	defer object.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", destPath, err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, object); err != nil {
		return fmt.Errorf("failed to download object %s to %s: %w", objectKey, destPath, err)
	}
	return nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *ArtifactStore) Delete(ctx context.Context, objectKey string) error {
	if s.client == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", objectKey, err)
	}
	return nil
}

// Stat returns the size of the object, or an error if it does not exist.
func (s *ArtifactStore) Stat(ctx context.Context, objectKey string) (int64, error) {
	if s.client == nil {
		return 0, fmt.Errorf("MinIO client not initialized")
	}
	info, err := s.client.StatObject(ctx, s.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to stat object %s: %w", objectKey, err)
	}
	return info.Size, nil
}
