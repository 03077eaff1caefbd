package storage

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	apperrors "github.com/deepzoom/iiifd/apperrors"
)

// S3Config holds the connection parameters for the S3-backed adapter.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string // optional: MinIO, localstack, etc.
	UsePathStyle bool
}

// s3Client is the minimal AWS S3 surface the adapter depends on, so tests
// can inject a double instead of talking to a real bucket.
type s3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3 is the Adapter backed by AWS S3 (or an S3-compatible store). This
// completes the integration the teacher left as a commented-out guide
// (adapters/storage/s3.go) using the real aws-sdk-go-v2 client.
type S3 struct {
	client s3Client
	bucket string
}

// NewS3Client builds a real *s3.Client from cfg using the default AWS
// credential chain (environment, shared config, EC2/ECS role).
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3 creates an S3 adapter around an already-constructed client (real
// or test double) and the bucket identifiers resolve into.
func NewS3(client s3Client, bucket string) *S3 {
	return &S3{client: client, bucket: bucket}
}

func (s *S3) Open(ctx context.Context, identifier string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(identifier),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, notFound("s3.open")
		}
		return nil, apperrors.Transient(apperrors.CategoryStorage, "s3.open", err)
	}

	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	obj := &Object{
		Name:    identifier,
		Size:    size,
		Content: out.Body,
	}
	if out.LastModified != nil {
		obj.LastModified = *out.LastModified
	}
	return obj, nil
}

func (s *S3) Stat(ctx context.Context, identifier string) (*Object, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(identifier),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, notFound("s3.stat")
		}
		return nil, apperrors.Transient(apperrors.CategoryStorage, "s3.stat", err)
	}

	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	obj := &Object{Name: identifier, Size: size}
	if out.LastModified != nil {
		obj.LastModified = *out.LastModified
	}
	return obj, nil
}

func isNoSuchKey(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
