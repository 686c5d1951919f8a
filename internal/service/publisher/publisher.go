package publisher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/oshokin/webstart-packager/internal/config"
	"github.com/oshokin/webstart-packager/internal/version"
)

const (
	archiveContentType = "application/zip"
	dialTimeout        = 5 * time.Second
)

// ObjectStore is the subset of the minio client used for publishing.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads archives to one bucket.
type Publisher struct {
	store  ObjectStore
	bucket string
	prefix string
	region string
}

// New builds a Publisher with a minio client for cfg.
func New(cfg *config.Publish) (*Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	client.SetAppInfo("webstart-packager", version.Short())

	return NewWithStore(client, cfg), nil
}

// NewWithStore builds a Publisher over an existing store.
func NewWithStore(store ObjectStore, cfg *config.Publish) *Publisher {
	return &Publisher{
		store:  store,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		region: cfg.Region,
	}
}

// Publish uploads the archive, creating the bucket when missing, and returns
// the object key.
func (p *Publisher) Publish(ctx context.Context, archivePath string) (string, error) {
	exists, err := p.store.BucketExists(ctx, p.bucket)
	if err != nil {
		return "", fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}

	if !exists {
		if err = p.store.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region}); err != nil {
			return "", fmt.Errorf("create bucket %s: %w", p.bucket, err)
		}
	}

	key := ObjectKey(p.prefix, archivePath)

	if _, err = p.store.FPutObject(ctx, p.bucket, key, archivePath, minio.PutObjectOptions{
		ContentType: archiveContentType,
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	return key, nil
}

// ObjectKey joins prefix and the archive base name.
func ObjectKey(prefix, archivePath string) string {
	name := filepath.Base(archivePath)
	if prefix == "" {
		return name
	}

	return path.Join(prefix, name)
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   dialTimeout,
		ExpectContinueTimeout: time.Second,
	}
}
