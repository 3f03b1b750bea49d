package core

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

type (
	// Photo describes one exported composite held in the asset store.
	Photo struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"`
		URL       string    `json:"imageUrl"`
		Type      string    `json:"type"`
		ItemID    string    `json:"itemId,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	PhotoStore interface {
		// CreatePhoto assigns the ID and creation time.
		CreatePhoto(ctx context.Context, photo *Photo) error
		// ListPhotos returns a user's photos, newest first.
		ListPhotos(ctx context.Context, userID string) ([]*Photo, error)
	}

	// AssetStore holds binary blobs: uploaded catalog art and exported
	// composites. Put returns the URL clients use to fetch the blob.
	AssetStore interface {
		Put(ctx context.Context, key, contentType string, data []byte) (string, error)
		Open(ctx context.Context, key string) (io.ReadCloser, error)
	}

	Stats struct {
		TotalUsers    int `json:"totalUsers"`
		TotalFrames   int `json:"totalFrames"`
		TotalStickers int `json:"totalStickers"`
		TotalFormals  int `json:"totalFormals"`
		TotalPhotos   int `json:"totalPhotos"`
	}

	StatsStore interface {
		Stats(ctx context.Context) (*Stats, error)
	}
)

// CheckAssetKey rejects keys that could resolve outside the asset root.
func CheckAssetKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.HasPrefix(key, "../") || key == ".." {
		return fmt.Errorf("asset key %q: %w", key, ErrInvalid)
	}
	return nil
}
