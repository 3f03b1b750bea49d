package compose

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const (
	// maxSourceBytes caps how much of a remote source is read before decoding.
	maxSourceBytes = 32 << 20
	// MaxSourceSide bounds the width and height of any decoded source.
	MaxSourceSide = 8192
)

var (
	ErrBadSource = errors.New("unsupported image source")
	ErrTooLarge  = errors.New("image dimensions too large")
)

type (
	// Opener resolves bare asset keys, typically backed by the asset store.
	Opener interface {
		Open(ctx context.Context, key string) (io.ReadCloser, error)
	}

	// Bitmaps maps a source reference to its decoded image.
	Bitmaps map[string]image.Image

	// LoadResult is the single terminal event produced for one load.
	LoadResult struct {
		Ref    string
		Image  image.Image
		Width  int
		Height int
		Err    error
	}

	// Loader decodes bitmaps from data URIs, http(s) URLs and asset keys.
	// Successful decodes are cached by reference; failures are not.
	Loader struct {
		client *http.Client
		opener Opener

		mu    sync.RWMutex
		cache map[string]image.Image
	}
)

func NewLoader(client *http.Client, opener Opener) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{
		client: client,
		opener: opener,
		cache:  make(map[string]image.Image),
	}
}

// Load returns the decoded bitmap for ref.
func (l *Loader) Load(ctx context.Context, ref string) (image.Image, error) {
	l.mu.RLock()
	img, ok := l.cache[ref]
	l.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := l.decode(ctx, ref)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"source": abbreviate(ref),
			"error":  err,
		}).Warn("Failed to load image")
		return nil, err
	}

	l.mu.Lock()
	l.cache[ref] = img
	l.mu.Unlock()
	return img, nil
}

// LoadAsync starts a load and delivers exactly one result on the returned channel.
func (l *Loader) LoadAsync(ctx context.Context, ref string) <-chan LoadResult {
	out := make(chan LoadResult, 1)
	go func() {
		img, err := l.Load(ctx, ref)
		res := LoadResult{Ref: ref, Image: img, Err: err}
		if img != nil {
			res.Width = img.Bounds().Dx()
			res.Height = img.Bounds().Dy()
		}
		out <- res
		close(out)
	}()
	return out
}

// LoadAll loads every distinct ref in parallel and fails on the first error.
func (l *Loader) LoadAll(ctx context.Context, refs ...string) (Bitmaps, error) {
	bitmaps := make(Bitmaps, len(refs))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		ref := ref
		g.Go(func() error {
			img, err := l.Load(ctx, ref)
			if err != nil {
				return err
			}
			mu.Lock()
			bitmaps[ref] = img
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bitmaps, nil
}

// Forget drops a cached bitmap.
func (l *Loader) Forget(ref string) {
	l.mu.Lock()
	delete(l.cache, ref)
	l.mu.Unlock()
}

func (l *Loader) decode(ctx context.Context, ref string) (image.Image, error) {
	data, err := l.read(ctx, ref)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width > MaxSourceSide || cfg.Height > MaxSourceSide {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d per side", ErrTooLarge, cfg.Width, cfg.Height, MaxSourceSide)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func (l *Loader) read(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case ref == "":
		return nil, fmt.Errorf("%w: empty reference", ErrBadSource)
	case strings.HasPrefix(ref, "data:"):
		_, data, err := DecodeDataURI(ref)
		return data, err
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", ref, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch %s: status %d", ref, resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	default:
		if l.opener == nil {
			return nil, fmt.Errorf("%w: %s", ErrBadSource, abbreviate(ref))
		}
		rc, err := l.opener.Open(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to open asset %s: %w", ref, err)
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxSourceBytes))
	}
}

// DecodeDataURI splits a data URI into its media type and payload.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a data URI", ErrBadSource)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed data URI", ErrBadSource)
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrBadSource, err)
		}
		return mediaType, []byte(data), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadSource, err)
	}
	return mediaType, data, nil
}

// EncodeDataURI is the inverse of DecodeDataURI for base64 payloads.
func EncodeDataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func abbreviate(ref string) string {
	if len(ref) > 64 {
		return ref[:64] + "..."
	}
	return ref
}
