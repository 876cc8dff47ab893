package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/audiolens-backend/internal/platform/ctxutil"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

var ErrInvalidGSURI = errors.New("invalid gs:// uri")

// BucketService fetches source videos that live in Cloud Storage so they can be
// handed to the local extraction tools.
type BucketService interface {
	// Download copies gs://bucket/key into dstDir and returns the local path.
	Download(ctx context.Context, gsURI string, dstDir string) (string, error)
	Close() error
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	mode          ObjectStorageMode
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	storageCfg, err := ResolveObjectStorageConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve object storage config: %w", err)
	}
	return NewBucketServiceWithConfig(log, storageCfg)
}

func NewBucketServiceWithConfig(log *logger.Logger, storageCfg ObjectStorageConfig) (BucketService, error) {
	if err := ValidateObjectStorageConfig(storageCfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	serviceLog := log.With("service", "BucketService")

	stClient, err := newStorageClientForMode(context.Background(), storageCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	serviceLog.Info("Object storage initialized", "mode", storageCfg.Mode, "emulator_host", storageCfg.EmulatorHost)

	return &bucketService{log: serviceLog, storageClient: stClient, mode: storageCfg.Mode}, nil
}

func newStorageClientForMode(ctx context.Context, storageCfg ObjectStorageConfig) (*storage.Client, error) {
	if storageCfg.IsEmulatorMode() {
		endpoint := strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication(), option.WithEndpoint(endpoint+"/storage/v1/"))
	}
	opts := ClientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
	return storage.NewClient(ctx, opts...)
}

func (bs *bucketService) Close() error {
	if bs == nil || bs.storageClient == nil {
		return nil
	}
	return bs.storageClient.Close()
}

func (bs *bucketService) Download(ctx context.Context, gsURI string, dstDir string) (string, error) {
	ctx = ctxutil.Default(ctx)
	bucket, key, err := ParseGSURI(gsURI)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dstDir, err)
	}
	r, err := bs.storageClient.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return "", fmt.Errorf("open gs://%s/%s: %w", bucket, key, err)
	}
	defer r.Close()

	dst := LocalPathFor(dstDir, bucket, key)
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("download gs://%s/%s: %w", bucket, key, err)
	}
	bs.log.Info("Video downloaded", "bucket", bucket, "key", key, "bytes", n, "path", dst)
	return dst, nil
}

// ParseGSURI splits gs://bucket/key. Both parts must be non-empty.
func ParseGSURI(uri string) (bucket string, key string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidGSURI, uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	key = strings.TrimLeft(key, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidGSURI, uri)
	}
	return bucket, key, nil
}

func IsGSURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "gs://")
}

// LocalPathFor flattens bucket/key into a single file name under dir.
func LocalPathFor(dir, bucket, key string) string {
	name := strings.ReplaceAll(path.Clean(key), "/", "_")
	return filepath.Join(dir, bucket+"_"+name)
}
