package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"photobooth/core"
)

type assetStore struct {
	mu        sync.RWMutex
	blobs     map[string][]byte
	publicURL string
}

// NewAssetStore creates an asset store that keeps blobs in memory.
func NewAssetStore(publicURL string) *assetStore {
	return &assetStore{
		blobs:     make(map[string][]byte),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

func (s *assetStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := core.CheckAssetKey(key); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.blobs[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return s.publicURL + "/" + key, nil
}

func (s *assetStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", key, core.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
