package filestore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"fleetdocs/internal/document/models"
	dErrors "fleetdocs/pkg/domain-errors"
	"fleetdocs/pkg/requestcontext"
)

const (
	putTimeout    = 30 * time.Second
	deleteTimeout = 10 * time.Second
)

// objectAPI is the slice of the S3 client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Config configures any S3-compatible backend (AWS, MinIO, R2...).
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// Endpoint is optional; set it for S3-compatible services.
	Endpoint string
	Prefix   string
}

// S3Store implements the document file store on S3-compatible storage.
type S3Store struct {
	client    objectAPI
	bucket    string
	prefix    string
	publicURL string
	logger    *slog.Logger
}

// NewS3 loads AWS config, builds a client and makes sure the bucket exists.
func NewS3(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var client *s3.Client
	publicURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
		publicURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	store := newS3Store(client, cfg.Bucket, cfg.Prefix, publicURL, logger)
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	logger.Info("s3 file store ready", "bucket", cfg.Bucket, "region", cfg.Region, "endpoint", cfg.Endpoint)
	return store, nil
}

func newS3Store(client objectAPI, bucket, prefix, publicURL string, logger *slog.Logger) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		publicURL: publicURL,
		logger:    logger,
	}
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("bucket %q does not exist and could not be created: %w", s.bucket, err)
	}
	s.logger.Info("created S3 bucket", "bucket", s.bucket)
	return nil
}

// Store validates and uploads an artifact under a fresh key.
func (s *S3Store) Store(ctx context.Context, upload models.Upload) (models.FileRef, error) {
	if err := Accept(upload); err != nil {
		return models.FileRef{}, err
	}
	key := s.objectKey(requestcontext.Now(ctx), upload.Name)

	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(upload.Data),
		ContentType:   aws.String(normalizeContentType(upload.ContentType)),
		ContentLength: aws.Int64(upload.Size()),
	})
	if err != nil {
		return models.FileRef{}, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to upload file")
	}
	return models.FileRef{
		Key:         key,
		URL:         s.publicURL + "/" + key,
		Name:        upload.Name,
		Size:        upload.Size(),
		ContentType: normalizeContentType(upload.ContentType),
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, ref models.FileRef) error {
	if ref.IsZero() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to delete file")
	}
	return nil
}

// objectKey is prefix/documents/YYYY/MM/<uuid><ext>.
func (s *S3Store) objectKey(now time.Time, name string) string {
	key := fmt.Sprintf("documents/%s/%s%s", now.UTC().Format("2006/01"), uuid.NewString(), strings.ToLower(filepath.Ext(name)))
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return key
}
