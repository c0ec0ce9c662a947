package storage

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
	"github.com/customeros/vmail/services/storage/aws_client"
)

// ObjectStorageService is the blob store for attachments, backed by an S3 compatible bucket.
type ObjectStorageService struct {
	client     aws_client.S3Client
	bucketName string
}

func NewStorageService(client aws_client.S3Client, bucketName string) interfaces.StorageService {
	return &ObjectStorageService{
		client:     client,
		bucketName: bucketName,
	}
}

func (s *ObjectStorageService) Put(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Put")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("key", key, "size", len(data))

	err := s.client.Upload(ctx, s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(utils.ContentTypeOrDefault(contentType)),
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return vmailerrors.NewStorageError("put blob", err)
	}
	return nil
}

// Get returns nil when the object does not exist.
func (s *ObjectStorageService) Get(ctx context.Context, key string) (*dto.BlobObject, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Get")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("key", key)

	body, contentType, err := s.client.Get(ctx, s.bucketName, key)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, vmailerrors.NewStorageError("get blob", err)
	}
	if body == nil {
		return nil, nil
	}
	return &dto.BlobObject{Body: body, ContentType: utils.ContentTypeOrDefault(contentType)}, nil
}

func (s *ObjectStorageService) DeleteMany(ctx context.Context, keys []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.DeleteMany")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("count", len(keys))

	if len(keys) == 0 {
		return nil
	}
	if err := s.client.DeleteObjects(ctx, s.bucketName, keys); err != nil {
		tracing.TraceErr(span, err)
		return vmailerrors.NewStorageError("delete blobs", err)
	}
	return nil
}
