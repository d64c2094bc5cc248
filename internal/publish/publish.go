// Package publish uploads finished artifacts to S3-compatible object storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sqlseq/sqlseq/internal/config"
)

// ContentType is the media type of XLSX artifacts.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ObjectStore is the part of *minio.Client the publisher uses.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Object describes an uploaded artifact.
type Object struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

func (o Object) String() string {
	return fmt.Sprintf("s3://%s/%s", o.Bucket, o.Key)
}

// Publisher uploads artifacts into one bucket.
type Publisher struct {
	store  ObjectStore
	cfg    config.PublishConfig
	logger *slog.Logger
}

// New connects to the configured endpoint.
func New(cfg config.PublishConfig, logger *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("publish endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	return NewWithStore(client, cfg, logger), nil
}

// NewWithStore returns a publisher that uploads through store.
func NewWithStore(store ObjectStore, cfg config.PublishConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, cfg: cfg, logger: logger}
}

// Key returns the object key for a local artifact.
func (p *Publisher) Key(artifact string) string {
	prefix := strings.Trim(p.cfg.Prefix, "/")
	if prefix == "" {
		return filepath.Base(artifact)
	}
	return path.Join(prefix, filepath.Base(artifact))
}

// Publish uploads the artifact at path.
func (p *Publisher) Publish(ctx context.Context, artifact string) (Object, error) {
	exists, err := p.store.BucketExists(ctx, p.cfg.Bucket)
	if err != nil {
		return Object{}, fmt.Errorf("failed to check bucket %s: %w", p.cfg.Bucket, err)
	}
	if !exists {
		return Object{}, fmt.Errorf("bucket %s does not exist", p.cfg.Bucket)
	}

	f, err := os.Open(artifact)
	if err != nil {
		return Object{}, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return Object{}, fmt.Errorf("failed to stat artifact: %w", err)
	}

	key := p.Key(artifact)
	start := time.Now()
	upload, err := p.store.PutObject(ctx, p.cfg.Bucket, key, f, info.Size(), minio.PutObjectOptions{ContentType: ContentType})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}

	obj := Object{Bucket: p.cfg.Bucket, Key: key, Size: info.Size(), ETag: upload.ETag}
	p.logger.Info("artifact published", "object", obj.String(), "size", obj.Size, "elapsed", time.Since(start))
	return obj, nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
