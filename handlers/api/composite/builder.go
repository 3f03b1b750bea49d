package composite

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"photobooth/compose"
	"photobooth/core"
)

// AssetOpener lets the compose loader read catalog art straight from the
// asset store instead of going back through HTTP.
type AssetOpener struct {
	assets    core.AssetStore
	publicURL string
}

func NewAssetOpener(assets core.AssetStore, publicURL string) *AssetOpener {
	return &AssetOpener{assets: assets, publicURL: strings.TrimSuffix(publicURL, "/")}
}

// Ref turns a public asset URL into the bare key the loader hands back to
// Open. Other references are returned unchanged.
func (o *AssetOpener) Ref(url string) string {
	if key, ok := strings.CutPrefix(url, o.publicURL+"/"); ok && o.publicURL != "" {
		return key
	}
	return url
}

func (o *AssetOpener) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := core.CheckAssetKey(key); err != nil {
		return nil, err
	}
	return o.assets.Open(ctx, key)
}

// Builder creates compositors for catalog items.
type Builder struct {
	catalog core.CatalogStore
	opener  *AssetOpener
	client  *http.Client
}

func NewBuilder(catalog core.CatalogStore, opener *AssetOpener, client *http.Client) *Builder {
	return &Builder{catalog: catalog, opener: opener, client: client}
}

// Loader returns a fresh loader. Each editor gets its own so captured photos
// do not outlive it in a shared cache.
func (b *Builder) Loader() *compose.Loader {
	return compose.NewLoader(b.client, b.opener)
}

// Ref resolves a catalog URL. Catalog art may live on a remote host, so the
// result can still be an http(s) URL.
func (b *Builder) Ref(url string) string { return b.opener.Ref(url) }

// ClientRef resolves a photo reference sent by a client. Only data URIs,
// public asset URLs and bare asset keys are accepted; anything else fails
// with compose.ErrBadSource before the loader sees it.
func (b *Builder) ClientRef(ref string) (string, error) {
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	key := b.opener.Ref(ref)
	if strings.Contains(key, "://") || core.CheckAssetKey(key) != nil {
		return "", fmt.Errorf("%w: photos must be data URIs or asset URLs", compose.ErrBadSource)
	}
	return key, nil
}

// Compositor looks up itemID and returns the compositor for mode with base as
// the captured photo. base is client supplied and goes through ClientRef.
func (b *Builder) Compositor(ctx context.Context, mode compose.Mode, itemID, base string) (compose.Compositor, error) {
	base, err := b.ClientRef(base)
	if err != nil {
		return nil, err
	}
	switch mode {
	case compose.ModeFrame:
		frame, err := b.catalog.GetFrame(ctx, itemID)
		if err != nil {
			return nil, err
		}
		return compose.NewFrameCompositor(b.Ref(frame.ImageURL), frame.Placeholders, base), nil
	case compose.ModeSticker:
		sticker, err := b.catalog.GetSticker(ctx, itemID)
		if err != nil {
			return nil, err
		}
		return compose.NewStickerCompositor(base, b.Ref(sticker.ImageURL)), nil
	case compose.ModeFormal:
		formal, err := b.catalog.GetFormal(ctx, itemID)
		if err != nil {
			return nil, err
		}
		return compose.NewFormalCompositor(b.Ref(formal.BackgroundURL), formal.Sizes, base), nil
	default:
		return nil, fmt.Errorf("%w: %q", compose.ErrUnknownMode, mode)
	}
}
