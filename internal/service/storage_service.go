package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/stemsi/examhall-backend/internal/config"
)

// Sentinel errors for media uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// Allowed image MIME types.
var allowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// StorageProvider stores uploaded objects and resolves their public URL.
type StorageProvider interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, name string) error
}

// LocalStorage keeps objects under a directory served at /uploads.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a LocalStorage rooted at dir.
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{dir: dir}
}

func (p *LocalStorage) Upload(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	dst, err := os.Create(filepath.Join(p.dir, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return "/uploads/" + name, nil
}

func (p *LocalStorage) Delete(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(p.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MinioStorage keeps objects in a MinIO/S3 bucket.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage connects to MinIO and makes sure the bucket exists.
func NewMinioStorage(ctx context.Context, cfg config.StorageConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioStorage{client: client, bucket: cfg.MinioBucket}, nil
}

func (p *MinioStorage) Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := p.client.PutObject(ctx, p.bucket, name, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return "/" + p.bucket + "/" + name, nil
}

func (p *MinioStorage) Delete(ctx context.Context, name string) error {
	return p.client.RemoveObject(ctx, p.bucket, name, minio.RemoveObjectOptions{})
}

// NewStorageProvider picks the provider named by cfg.Storage.Driver.
func NewStorageProvider(ctx context.Context, cfg *config.Config) (StorageProvider, error) {
	switch cfg.Storage.Driver {
	case "minio":
		return NewMinioStorage(ctx, cfg.Storage)
	case "", "local":
		return NewLocalStorage(cfg.UploadDir), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// MediaService validates uploaded images and hands them to a StorageProvider.
type MediaService struct {
	storage  StorageProvider
	maxBytes int64
	log      zerolog.Logger
}

// NewMediaService creates a new MediaService.
func NewMediaService(cfg *config.Config, storage StorageProvider, log zerolog.Logger) *MediaService {
	return &MediaService{
		storage:  storage,
		maxBytes: cfg.MaxUploadBytes,
		log:      log.With().Str("component", "media_service").Logger(),
	}
}

// SaveUpload stores an uploaded image under a UUID filename and returns its URL.
func (s *MediaService) SaveUpload(ctx context.Context, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedMIMETypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, contentType, strings.Join(allowedTypes(), ", "))
	}

	if header.Size > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.maxBytes)
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	return s.storage.Upload(ctx, uuid.NewString()+ext, file, header.Size, contentType)
}

// SaveAll stores every upload in order. Already stored files are removed
// again when a later one fails.
func (s *MediaService) SaveAll(ctx context.Context, headers []*multipart.FileHeader) ([]string, error) {
	urls := make([]string, 0, len(headers))
	for _, h := range headers {
		url, err := s.SaveUpload(ctx, h)
		if err != nil {
			s.DeleteAll(ctx, urls)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// DeleteAll removes stored objects by URL. Failures are logged, not returned.
func (s *MediaService) DeleteAll(ctx context.Context, urls []string) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := s.storage.Delete(ctx, path.Base(u)); err != nil {
			s.log.Warn().Err(err).Str("object", u).Msg("Failed to delete stored object")
		}
	}
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	return types
}
