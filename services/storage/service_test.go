package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vmailerrors "github.com/customeros/vmail/internal/errors"
)

type fakeS3Client struct {
	objects     map[string][]byte
	types       map[string]string
	deleteCalls [][]string
	err         error
}

func newFakeS3Client() *fakeS3Client {
	return &fakeS3Client{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3Client) Upload(_ context.Context, in s3manager.UploadInput) error {
	if f.err != nil {
		return f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.objects[aws.StringValue(in.Key)] = body
	f.types[aws.StringValue(in.Key)] = aws.StringValue(in.ContentType)
	return nil
}

func (f *fakeS3Client) Get(_ context.Context, _, key string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	body, ok := f.objects[key]
	if !ok {
		return nil, "", nil
	}
	return body, f.types[key], nil
}

func (f *fakeS3Client) DeleteObjects(_ context.Context, _ string, keys []string) error {
	if f.err != nil {
		return f.err
	}
	f.deleteCalls = append(f.deleteCalls, keys)
	for _, k := range keys {
		delete(f.objects, k)
	}
	return nil
}

func TestObjectStorageService_PutGet(t *testing.T) {
	client := newFakeS3Client()
	svc := NewStorageService(client, "bucket")

	require.NoError(t, svc.Put(context.Background(), "emails/mail_1/a.txt", []byte("hello"), "text/plain"))

	blob, err := svc.Get(context.Background(), "emails/mail_1/a.txt")
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Equal(t, []byte("hello"), blob.Body)
	assert.Equal(t, "text/plain", blob.ContentType)
}

func TestObjectStorageService_PutDefaultsContentType(t *testing.T) {
	client := newFakeS3Client()
	svc := NewStorageService(client, "bucket")

	require.NoError(t, svc.Put(context.Background(), "k", []byte{1}, ""))
	assert.Equal(t, "application/octet-stream", client.types["k"])
}

func TestObjectStorageService_GetMissing(t *testing.T) {
	svc := NewStorageService(newFakeS3Client(), "bucket")

	blob, err := svc.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestObjectStorageService_ErrorsAreStorageErrors(t *testing.T) {
	client := newFakeS3Client()
	client.err = errors.New("r2 down")
	svc := NewStorageService(client, "bucket")

	err := svc.Put(context.Background(), "k", []byte("x"), "text/plain")
	assert.True(t, vmailerrors.IsStorageError(err))

	_, err = svc.Get(context.Background(), "k")
	assert.True(t, vmailerrors.IsStorageError(err))

	err = svc.DeleteMany(context.Background(), []string{"k"})
	assert.True(t, vmailerrors.IsStorageError(err))
}

func TestObjectStorageService_DeleteManyEmptyIsNoop(t *testing.T) {
	client := newFakeS3Client()
	svc := NewStorageService(client, "bucket")

	require.NoError(t, svc.DeleteMany(context.Background(), nil))
	assert.Empty(t, client.deleteCalls)
}

func TestObjectStorageService_DeleteManySingleCall(t *testing.T) {
	client := newFakeS3Client()
	svc := NewStorageService(client, "bucket")

	require.NoError(t, svc.DeleteMany(context.Background(), []string{"a", "b", "missing"}))
	require.Len(t, client.deleteCalls, 1)
	assert.Equal(t, []string{"a", "b", "missing"}, client.deleteCalls[0])
}
