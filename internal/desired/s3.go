package desired

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"modelswap/pkg/types"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds configuration for the S3 backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Key is the object key of the record.
	Key string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom endpoint for S3-compatible providers (MinIO, R2).
	Endpoint string
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool
}

// S3Store keeps the record as one object. PUT replaces objects atomically.
type S3Store struct {
	api     S3API
	bucket  string
	key     string
	codec   Codec
	timeout time.Duration
	log     zerolog.Logger
}

// NewS3Store builds an S3 client from the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config, codec Codec, timeout time.Duration, lg zerolog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return NewS3StoreWithClient(s3.NewFromConfig(awsConfig, s3Opts...), cfg.Bucket, cfg.Key, codec, timeout, lg), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(api S3API, bucket, key string, codec Codec, timeout time.Duration, lg zerolog.Logger) *S3Store {
	if key == "" {
		key = DefaultKey
	}
	if codec == nil {
		codec = JSON
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &S3Store{api: api, bucket: bucket, key: key, codec: codec, timeout: timeout, log: lg}
}

func (s *S3Store) contentType() string {
	if s.codec.Name() == "msgpack" {
		return "application/msgpack"
	}
	return "application/json"
}

func (s *S3Store) Publish(ctx context.Context, artifactID string) error {
	ds, err := record(artifactID)
	if err != nil {
		return err
	}
	b, err := s.codec.Marshal(ds)
	if err != nil {
		return fmt.Errorf("s3: marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String(s.contentType()),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *S3Store) Read(ctx context.Context) (types.DesiredState, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if !errors.As(err, &nsk) {
			s.log.Debug().Err(err).Str("key", s.key).Msg("s3 get failed")
		}
		return types.DesiredState{}, false
	}
	defer out.Body.Close()
	b, err := io.ReadAll(io.LimitReader(out.Body, 1<<20))
	if err != nil {
		s.log.Debug().Err(err).Msg("s3 read body failed")
		return types.DesiredState{}, false
	}
	return decode(s.codec, b, s.log)
}

func (s *S3Store) Close() error { return nil }
