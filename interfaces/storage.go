package interfaces

import (
	"context"

	"github.com/customeros/vmail/dto"
)

type StorageService interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (*dto.BlobObject, error)
	DeleteMany(ctx context.Context, keys []string) error
}
