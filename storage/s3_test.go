package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	apperrors "github.com/deepzoom/iiifd/apperrors"
)

type fakeS3Client struct {
	getOut  *s3.GetObjectOutput
	getErr  error
	headOut *s3.HeadObjectOutput
	headErr error
}

func (f *fakeS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return f.getOut, f.getErr
}

func (f *fakeS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return f.headOut, f.headErr
}

type noSuchKeyError struct{}

func (noSuchKeyError) Error() string             { return "NoSuchKey: the object does not exist" }
func (noSuchKeyError) ErrorCode() string         { return "NoSuchKey" }
func (noSuchKeyError) ErrorMessage() string      { return "the object does not exist" }
func (noSuchKeyError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func TestS3OpenSuccess(t *testing.T) {
	when := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeS3Client{
		getOut: &s3.GetObjectOutput{
			Body:          io.NopCloser(strings.NewReader("jp2-bytes")),
			ContentLength: aws.Int64(9),
			LastModified:  &when,
		},
	}
	adapter := NewS3(client, "bucket")

	obj, err := adapter.Open(context.Background(), "path/to/image.jp2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer obj.Content.Close()

	if obj.Size != 9 {
		t.Errorf("Size = %d, want 9", obj.Size)
	}
	if !obj.LastModified.Equal(when) {
		t.Errorf("LastModified = %v, want %v", obj.LastModified, when)
	}
}

func TestS3OpenNotFound(t *testing.T) {
	client := &fakeS3Client{getErr: noSuchKeyError{}}
	adapter := NewS3(client, "bucket")

	_, err := adapter.Open(context.Background(), "missing.jp2")
	if !apperrors.IsCategory(err, apperrors.CategoryNotFound) {
		t.Fatalf("want CategoryNotFound, got %v", err)
	}
}

func TestS3StatSuccess(t *testing.T) {
	when := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeS3Client{
		headOut: &s3.HeadObjectOutput{
			ContentLength: aws.Int64(42),
			LastModified:  &when,
		},
	}
	adapter := NewS3(client, "bucket")

	obj, err := adapter.Stat(context.Background(), "path/to/image.jp2")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if obj.Content != nil {
		t.Error("Stat must not populate Content")
	}
	if obj.Size != 42 {
		t.Errorf("Size = %d, want 42", obj.Size)
	}
}
