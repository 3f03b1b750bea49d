package filesystem

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"photobooth/core"

	"github.com/sirupsen/logrus"
)

// fsStore keeps assets as plain files below basePath.
type fsStore struct {
	basePath  string
	publicURL string
}

// NewStore creates a new filesystem-based asset store. URLs returned by Put
// are publicURL joined with the asset key.
func NewStore(basePath, publicURL string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath, publicURL: strings.TrimSuffix(publicURL, "/")}
}

func (s *fsStore) resolve(key string) (string, error) {
	if err := core.CheckAssetKey(key); err != nil {
		return "", err
	}
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFile, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return absFile, nil
}

func (s *fsStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	filePath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "path": filePath, "size": len(data)})

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		log.WithError(err).Error("Failed to create asset directory")
		return "", err
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write asset file")
		return "", err
	}
	log.Info("Asset stored successfully")
	return s.publicURL + "/" + key, nil
}

func (s *fsStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.WithField("key", key).Warn("Asset file not found")
			return nil, fmt.Errorf("asset %s: %w", key, core.ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}
