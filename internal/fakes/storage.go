package fakes

import (
	"context"
	"sync"

	"github.com/customeros/vmail/dto"
)

// Storage is an in-memory blob store.
type Storage struct {
	mu      sync.Mutex
	Objects map[string]*dto.BlobObject

	PutErr      error
	DeleteErr   error
	DeleteCalls [][]string
}

func NewStorage() *Storage {
	return &Storage{Objects: map[string]*dto.BlobObject{}}
}

func (s *Storage) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	s.Objects[key] = &dto.BlobObject{Body: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

func (s *Storage) Get(_ context.Context, key string) (*dto.BlobObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Objects[key], nil
}

func (s *Storage) DeleteMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keys) == 0 {
		return nil
	}
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.DeleteCalls = append(s.DeleteCalls, keys)
	for _, k := range keys {
		delete(s.Objects, k)
	}
	return nil
}

func (s *Storage) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Objects[key]
	return ok
}
