package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/calemcnulty-gai/reel-ai/internal/media"
)

// S3BlobStore stores blobs in an S3 bucket and returns virtual-hosted public
// URLs.
type S3BlobStore struct {
	client     *s3.Client
	bucketName string
	region     string
}

var _ BlobStore = (*S3BlobStore)(nil)

func NewS3BlobStore(bucketName string) (*S3BlobStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &S3BlobStore{
		client:     s3.NewFromConfig(cfg),
		bucketName: bucketName,
		region:     cfg.Region,
	}, nil
}

func (s *S3BlobStore) publicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucketName, s.region, key)
}

func (s *S3BlobStore) Upload(ctx context.Context, key string, r io.Reader, size int64, progress ProgressFunc) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          newProgressReader(r, size, progress),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentTypeForKey(key)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	slog.Debug("uploaded blob", "bucket", s.bucketName, "key", key, "size", size)
	return s.publicURL(key), nil
}

func (s *S3BlobStore) Download(ctx context.Context, key string, w io.Writer) error {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	if _, err := io.Copy(w, result.Body); err != nil {
		return fmt.Errorf("failed to read S3 object: %w", err)
	}
	return nil
}

func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete S3 object: %w", err)
	}
	return nil
}

func (s *S3BlobStore) KeyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid blob url: %w", err)
	}

	if !strings.HasPrefix(u.Host, s.bucketName+".s3.") {
		return "", fmt.Errorf("url %s: %w", rawURL, media.ErrNotFound)
	}
	return strings.TrimPrefix(u.Path, "/"), nil
}

// GetBucketName returns the S3 bucket name (useful for generating URLs).
func (s *S3BlobStore) GetBucketName() string {
	return s.bucketName
}
