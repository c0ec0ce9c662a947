package aws_client

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/vmail/internal/tracing"
)

// maxDeleteBatch is the S3 limit of keys per DeleteObjects call.
const maxDeleteBatch = 1000

type S3Client interface {
	Upload(ctx context.Context, uploadContainer s3manager.UploadInput) error
	// Get returns nil body and no error when the key does not exist.
	Get(ctx context.Context, bucket, key string) ([]byte, string, error)
	// DeleteObjects removes keys in bulk; missing keys are not reported.
	DeleteObjects(ctx context.Context, bucket string, keys []string) error
}

type s3Client struct {
	Uploader *s3manager.Uploader
	S3       *s3.S3
	Config   *aws.Config
}

func NewS3Client(config *aws.Config) S3Client {
	s := session.Must(session.NewSession(config))
	return &s3Client{
		Uploader: s3manager.NewUploader(s),
		S3:       s3.New(s),
		Config:   config,
	}
}

func (s *s3Client) Upload(ctx context.Context, uploadContainer s3manager.UploadInput) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("key", aws.StringValue(uploadContainer.Key))

	_, err := s.Uploader.UploadWithContext(ctx, &uploadContainer)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (s *s3Client) Get(ctx context.Context, bucket, key string) ([]byte, string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.Get")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("key", key)

	out, err := s.S3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, "", nil
		}
		tracing.TraceErr(span, err)
		return nil, "", err
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, "", err
	}
	return body, aws.StringValue(out.ContentType), nil
}

func (s *s3Client) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.DeleteObjects")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("count", len(keys))

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		objects := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(key)})
		}

		_, err := s.S3.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}
	return nil
}
