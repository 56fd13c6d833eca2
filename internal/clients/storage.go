package clients

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
)

// MinioStorage keeps media in an S3-compatible bucket.
type MinioStorage struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	logger        *logrus.Entry
}

// NewMinioStorage connects to the bucket's endpoint. It does not create the bucket.
func NewMinioStorage(cfg config.StorageConfig, logger *logrus.Entry) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &MinioStorage{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        logger,
	}, nil
}

// Upload stores r under folder with a collision-free name and returns the
// object path and its public URL.
func (s *MinioStorage) Upload(ctx context.Context, folder, filename string, r io.Reader, size int64, contentType string) (string, string, error) {
	objectPath := ObjectPath(folder, filename)

	_, err := s.client.PutObject(ctx, s.bucket, objectPath, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.WithError(err).WithField("object", objectPath).Error("Upload failed")
		return "", "", err
	}

	s.logger.WithFields(logrus.Fields{
		"object": objectPath,
		"size":   size,
	}).Info("Media uploaded")

	return objectPath, PublicURL(s.publicBaseURL, objectPath), nil
}

func (s *MinioStorage) Remove(ctx context.Context, objectPath string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		s.logger.WithError(err).WithField("object", objectPath).Error("Remove failed")
		return err
	}
	s.logger.WithField("object", objectPath).Info("Media removed")
	return nil
}

// Ping checks the bucket is reachable.
func (s *MinioStorage) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}

// ObjectPath builds folder/<uuid>-<sanitized name>.
func ObjectPath(folder, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ':
			return '-'
		}
		return -1
	}, base)
	if base == "" || base == "." {
		base = "file"
	}
	return folder + "/" + uuid.NewString() + "-" + base
}

func PublicURL(baseURL, objectPath string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(objectPath, "/")
}

// MockStorage is an in-memory implementation for testing.
type MockStorage struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMockStorage() *MockStorage {
	return &MockStorage{Objects: make(map[string][]byte)}
}

func (m *MockStorage) Upload(ctx context.Context, folder, filename string, r io.Reader, size int64, contentType string) (string, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", "", err
	}
	objectPath := ObjectPath(folder, filename)
	m.mu.Lock()
	m.Objects[objectPath] = data
	m.mu.Unlock()
	return objectPath, PublicURL("https://cdn.example.test", objectPath), nil
}

func (m *MockStorage) Remove(ctx context.Context, objectPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, objectPath)
	return nil
}
