package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/okian/innerscore/internal/domain/model"
)

// S3Config configures an S3Sink.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Key       string
	UseSSL    bool
	// Archive also keeps a copy of every pass under runs/<run id>/.
	Archive bool
}

// objectClient is the part of *minio.Client the sink uses.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Sink uploads the collection to an S3 compatible object store.
type S3Sink struct {
	client  objectClient
	bucket  string
	key     string
	region  string
	archive bool

	mu    sync.Mutex
	ready bool
}

var _ Sink = (*S3Sink)(nil)

// NewS3Sink creates a sink backed by minio-go.
func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: s3 endpoint is required", ErrInvalidSink)
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("%w: s3 access key and secret key are required", ErrInvalidSink)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return newS3Sink(client, cfg.Bucket, cfg.Key, region, cfg.Archive)
}

func newS3Sink(client objectClient, bucket, key, region string, archive bool) (*S3Sink, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", ErrInvalidSink)
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		key = "repos.json"
	}
	return &S3Sink{client: client, bucket: bucket, key: key, region: region, archive: archive}, nil
}

// Name implements Sink.
func (s *S3Sink) Name() string { return "s3" }

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

// Write implements Sink.
func (s *S3Sink) Write(ctx context.Context, runID string, records []model.Repository) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	data, err := Encode(records)
	if err != nil {
		return err
	}

	keys := []string{s.key}
	if s.archive && strings.TrimSpace(runID) != "" {
		keys = append(keys, path.Join("runs", runID, path.Base(s.key)))
	}
	for _, key := range keys {
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
		if err != nil {
			return fmt.Errorf("put %s/%s: %w", s.bucket, key, err)
		}
	}
	return nil
}
