package s3

import (
	"bytes"
	"context"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/lm-legal/payments/internal/config"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/logger"
)

const defaultPresignExpiryDuration = 30 * time.Minute

// Service stores rendered invoice documents
type Service interface {
	Upload(ctx context.Context, doc *Document) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// PresignedURL returns a time limited download link, or "" when the store
	// cannot hand out direct links and documents must be served by the API
	PresignedURL(ctx context.Context, key string) (string, error)
}

// NewService returns the S3 store when enabled and the local directory store otherwise
func NewService(cfg *config.Configuration, log *logger.Logger) (Service, error) {
	if !cfg.S3.Enabled {
		log.Infow("s3 disabled, storing invoice artifacts on disk", "dir", cfg.Invoice.ArtifactDir)
		return NewLocalService(cfg.Invoice.ArtifactDir), nil
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(),
		awsConfig.WithRegion(cfg.S3.Region),
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load aws config").
			Mark(ierr.ErrSystem)
	}

	expiry := cfg.Invoice.DownloadExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiryDuration
	}

	return &s3ServiceImpl{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3.Bucket,
		prefix: cfg.S3.KeyPrefix,
		expiry: expiry,
		logger: log,
	}, nil
}

type s3ServiceImpl struct {
	client *s3.Client
	bucket string
	prefix string
	expiry time.Duration
	logger *logger.Logger
}

func (s *s3ServiceImpl) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *s3ServiceImpl) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return false, nil
		}
		return false, ierr.WithError(err).
			WithHint("Failed to check invoice document").
			WithReportableDetails(map[string]any{"key": key}).
			Mark(ierr.ErrHTTPClient)
	}
	return true, nil
}

func (s *s3ServiceImpl) PresignedURL(ctx context.Context, key string) (string, error) {
	presigner := s3.NewPresignClient(s.client)
	result, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to create download link").
			WithReportableDetails(map[string]any{"key": key}).
			Mark(ierr.ErrHTTPClient)
	}
	return result.URL, nil
}

func (s *s3ServiceImpl) Upload(ctx context.Context, doc *Document) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(doc.Key)),
		Body:        bytes.NewReader(doc.Data),
		ContentType: aws.String(doc.ContentType),
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to upload invoice document").
			WithReportableDetails(map[string]any{"key": doc.Key}).
			Mark(ierr.ErrHTTPClient)
	}

	s.logger.Debugw("uploaded document", "bucket", s.bucket, "key", doc.Key, "size", len(doc.Data))
	return nil
}

func (s *s3ServiceImpl) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ierr.WithError(err).
				WithHint("Invoice document not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice document").
			WithReportableDetails(map[string]any{"key": key}).
			Mark(ierr.ErrHTTPClient)
	}
	defer result.Body.Close()

	return io.ReadAll(result.Body)
}
