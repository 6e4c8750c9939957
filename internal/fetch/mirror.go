package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"google.golang.org/api/iterator"
)

// Mirror fetches one archive object into a local file and reports the bytes
// written.
type Mirror interface {
	Name() string
	Fetch(ctx context.Context, key, dest string) (int64, error)
}

// Lister enumerates archive keys under a prefix. Mirrors that support listing
// implement it alongside Mirror.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// S3Mirror downloads from the primary requester-pays bucket.
type S3Mirror struct {
	bucket string
	dl     *manager.Downloader
}

// NewS3Mirror builds a mirror over the named bucket. Static credentials are
// used when both keys are set; otherwise the default chain applies.
func NewS3Mirror(ctx context.Context, bucket, region, accessKey, secretKey string) (*S3Mirror, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &S3Mirror{
		bucket: bucket,
		dl:     manager.NewDownloader(s3.NewFromConfig(cfg)),
	}, nil
}

func (m *S3Mirror) Name() string {
	return "s3://" + m.bucket
}

// Fetch downloads one object. The bulk bucket is requester-pays, so every
// request declares the requester as payer.
func (m *S3Mirror) Fetch(ctx context.Context, key, dest string) (int64, error) {
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer f.Close()
	n, err := m.dl.Download(ctx, f, &s3.GetObjectInput{
		Bucket:       aws.String(m.bucket),
		Key:          aws.String(key),
		RequestPayer: types.RequestPayerRequester,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to download s3://%s/%s: %w", m.bucket, key, err)
	}
	return n, nil
}

// GCSMirror downloads from the GCS copy of the corpus.
type GCSMirror struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSMirror builds a mirror over the named bucket. billingProject is only
// needed for requester-pays buckets and may be empty.
func NewGCSMirror(ctx context.Context, bucket, billingProject string) (*GCSMirror, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	handle := client.Bucket(bucket)
	if billingProject != "" {
		handle = handle.UserProject(billingProject)
	}
	return &GCSMirror{client: client, bucket: handle, name: bucket}, nil
}

func (m *GCSMirror) Name() string {
	return "gs://" + m.name
}

func (m *GCSMirror) Close() error {
	return m.client.Close()
}

func (m *GCSMirror) Fetch(ctx context.Context, key, dest string) (int64, error) {
	rd, err := m.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open gs://%s/%s: %w", m.name, key, err)
	}
	defer rd.Close()
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer f.Close()
	n, err := io.Copy(f, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to download gs://%s/%s: %w", m.name, key, err)
	}
	return n, nil
}

// List enumerates object keys under a prefix, for discovering archives when
// no local manifest is available.
func (m *GCSMirror) List(ctx context.Context, prefix string) ([]string, error) {
	it := m.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return keys, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", m.name, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
}
