package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxMetadataSize bounds a metadata object; anything larger is not a
// document record
const maxMetadataSize = 1 << 20

// ObjectGetter is the part of the S3 client the store needs
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads document metadata stored as JSON objects at
// <prefix>/<id>.json. It works with AWS S3 and S3-compatible stores such as
// MinIO.
type S3Store struct {
	client ObjectGetter
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Store builds an S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("document bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3StoreWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3StoreWithClient creates a store on an existing client
func NewS3StoreWithClient(client ObjectGetter, bucket, prefix string, logger *zap.Logger) *S3Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// GetDocument fetches and decodes <prefix>/<id>.json. A missing object is
// shared.ErrNotFound.
func (s *S3Store) GetDocument(ctx context.Context, id uuid.UUID) (*routing.Document, error) {
	key := s.Key(id)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document metadata: %w", err)
	}
	defer out.Body.Close()

	var doc routing.Document
	dec := json.NewDecoder(io.LimitReader(out.Body, maxMetadataSize))
	if err := dec.Decode(&doc); err != nil {
		s.logger.Warn("malformed document metadata",
			zap.String("bucket", s.bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to decode document metadata: %w", err)
	}
	if doc.ID == uuid.Nil {
		doc.ID = id
	}
	if doc.ID != id {
		return nil, fmt.Errorf("document metadata at %s belongs to %s", key, doc.ID)
	}
	return &doc, nil
}

// Key returns the object key for a document
func (s *S3Store) Key(id uuid.UUID) string {
	name := id.String() + ".json"
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	// Some S3-compatible servers only surface the code in the message
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound")
}

var _ routing.DocumentStore = (*S3Store)(nil)
