package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/redeyefit/fieldvision/internal/models"
)

// ObjectStorageConfig holds connection details for an S3-compatible store.
type ObjectStorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// ObjectStorage uploads curated frames as objects keyed <video>/<frame name>.
type ObjectStorage struct {
	client    *miniogo.Client
	bucket    string
	videoName string
}

// NewObjectStorage creates a client and makes sure the bucket exists.
func NewObjectStorage(ctx context.Context, cfg ObjectStorageConfig) (*ObjectStorage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &ObjectStorage{client: client, bucket: cfg.Bucket}, nil
}

// ForVideo returns a store that writes under videoName.
func (s *ObjectStorage) ForVideo(videoName string) *ObjectStorage {
	return &ObjectStorage{client: s.client, bucket: s.bucket, videoName: videoName}
}

// ObjectKey is the key a frame of videoName is uploaded under.
func ObjectKey(videoName string, frame models.CuratedFrame) string {
	return path.Join(videoName, FrameName(frame))
}

// SaveFrames uploads every frame and returns the object keys.
func (s *ObjectStorage) SaveFrames(ctx context.Context, frames []models.CuratedFrame) ([]string, error) {
	keys := make([]string, 0, len(frames))
	for _, frame := range frames {
		key := ObjectKey(s.videoName, frame)
		_, err := s.client.PutObject(ctx, s.bucket, key,
			bytes.NewReader(frame.Data), int64(len(frame.Data)),
			miniogo.PutObjectOptions{ContentType: "image/jpeg"})
		if err != nil {
			return keys, fmt.Errorf("upload frame %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
