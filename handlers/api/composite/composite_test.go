package composite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"photobooth/compose"
	"photobooth/core"
	"photobooth/handlers/auth"
	"photobooth/middleware"
	"photobooth/stores/memory"

	"github.com/golang-jwt/jwt/v5"
)

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

type catalogPhotos interface {
	core.CatalogStore
	core.PhotoStore
}

type fixture struct {
	store   catalogPhotos
	assets  core.AssetStore
	builder *Builder
	frame   *core.Frame
	sticker *core.Sticker
	formal  *core.Formal
	photo   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	assets := memory.NewAssetStore("/assets")

	put := func(key string, data []byte) string {
		url, err := assets.Put(ctx, key, "image/png", data)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		return url
	}

	cat := &core.Category{Name: "Party"}
	if err := store.SaveCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	frame := &core.Frame{
		Name:       "Double",
		CategoryID: cat.ID,
		ImageURL:   put("uploads/frames/double.png", solidPNG(t, 200, 100, red)),
		Placeholders: []compose.Placeholder{
			{ID: "p1", X: 10, Y: 10, Width: 80, Height: 60},
			{ID: "p2", X: 110, Y: 10, Width: 80, Height: 60},
		},
	}
	if err := store.SaveFrame(ctx, frame); err != nil {
		t.Fatal(err)
	}
	sticker := &core.Sticker{Name: "Dot", CategoryID: cat.ID, ImageURL: put("uploads/stickers/dot.png", solidPNG(t, 10, 10, green))}
	if err := store.SaveSticker(ctx, sticker); err != nil {
		t.Fatal(err)
	}
	formal := &core.Formal{
		Name:          "Studio",
		BackgroundURL: put("uploads/formals/bg.png", solidPNG(t, 60, 80, red)),
		Sizes:         []compose.Size{{ID: "full", Width: 60, Height: 80}, {ID: "half", Width: 30, Height: 40}},
	}
	if err := store.SaveFormal(ctx, formal); err != nil {
		t.Fatal(err)
	}

	return &fixture{
		store:   store,
		assets:  assets,
		builder: NewBuilder(store, NewAssetOpener(assets, "/assets"), nil),
		frame:   frame,
		sticker: sticker,
		formal:  formal,
		photo:   compose.EncodeDataURI(compose.PNGMediaType, solidPNG(t, 400, 300, blue)),
	}
}

func (f *fixture) post(t *testing.T, req Request) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/compose", bytes.NewReader(body))
	claims := &auth.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}, Role: core.RoleUser}
	r = r.WithContext(context.WithValue(r.Context(), middleware.ClaimsContextKey, claims))
	w := httptest.NewRecorder()
	HandleCompose(f.builder, f.assets, f.store)(w, r)
	return w
}

func decodeImage(t *testing.T, w *httptest.ResponseRecorder) (image.Image, Response) {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	_, data, err := compose.DecodeDataURI(resp.Image)
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	return img, resp
}

func at(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestAssetOpenerRef(t *testing.T) {
	o := NewAssetOpener(memory.NewAssetStore("/assets"), "/assets/")
	tests := map[string]string{
		"/assets/uploads/a.png":    "uploads/a.png",
		"https://cdn.test/a.png":   "https://cdn.test/a.png",
		"data:image/png;base64,AA": "data:image/png;base64,AA",
	}
	for in, want := range tests {
		if got := o.Ref(in); got != want {
			t.Errorf("Ref(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := o.Open(context.Background(), "../secret"); err == nil {
		t.Error("Expected traversal key to be rejected")
	}
}

func TestClientRef(t *testing.T) {
	b := NewBuilder(memory.NewStore(), NewAssetOpener(memory.NewAssetStore("/assets"), "/assets"), nil)
	ok := map[string]string{
		"/assets/photos/u/a.png":   "photos/u/a.png",
		"photos/u/a.png":           "photos/u/a.png",
		"data:image/png;base64,AA": "data:image/png;base64,AA",
	}
	for in, want := range ok {
		got, err := b.ClientRef(in)
		if err != nil || got != want {
			t.Errorf("ClientRef(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"http://169.254.169.254/latest/meta-data", "https://cdn.test/a.png", "/assets/../secret", "/etc/passwd", "file:///etc/passwd", ""} {
		if _, err := b.ClientRef(in); !errors.Is(err, compose.ErrBadSource) {
			t.Errorf("ClientRef(%q): expected ErrBadSource, got %v", in, err)
		}
	}
}

func TestComposeRejectsRemoteSources(t *testing.T) {
	f := newFixture(t)
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer internal.Close()
	remote := internal.URL + "/admin"

	tests := []struct {
		name string
		req  Request
	}{
		{"photo", Request{Mode: compose.ModeSticker, ItemID: f.sticker.ID, Photo: remote}},
		{"assignment", Request{Mode: compose.ModeFrame, ItemID: f.frame.ID, Photo: f.photo, Assignments: map[string]string{"p2": remote}}},
		{"sticker source", Request{Mode: compose.ModeSticker, ItemID: f.sticker.ID, Photo: f.photo, Stickers: []compose.Sprite{{Source: remote, Width: 10, Height: 10, Scale: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := f.post(t, tt.req); w.Code != http.StatusBadRequest {
				t.Errorf("Expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
			}
		})
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("Expected no outbound requests, got %d", n)
	}

	// The catalog sticker echoed back from a previous state is accepted.
	w := f.post(t, Request{Mode: compose.ModeSticker, ItemID: f.sticker.ID, Photo: f.photo, Stickers: []compose.Sprite{
		{Source: f.sticker.ImageURL, X: 200, Y: 150, Width: 50, Height: 50, Scale: 1},
	}})
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d for the catalog sticker, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
}

func TestComposeRejectsOversizedPhoto(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, compose.MaxSourceSide+1))); err != nil {
		t.Fatal(err)
	}
	w := f.post(t, Request{Mode: compose.ModeSticker, ItemID: f.sticker.ID, Photo: compose.EncodeDataURI(compose.PNGMediaType, buf.Bytes())})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status %d, got %d: %s", http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	}
}

func TestComposeFrame(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, Request{Mode: compose.ModeFrame, ItemID: f.frame.ID, Photo: f.photo})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status %d with an empty slot, got %d: %s", http.StatusUnprocessableEntity, w.Code, w.Body.String())
	}

	w = f.post(t, Request{
		Mode:        compose.ModeFrame,
		ItemID:      f.frame.ID,
		Photo:       f.photo,
		Assignments: map[string]string{"p2": f.photo},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	img, resp := decodeImage(t, w)
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("Expected 200x100 output, got %v", b)
	}
	if got := at(img, 50, 40); got != blue {
		t.Errorf("p1 should hold the photo, got %v", got)
	}
	if got := at(img, 150, 40); got != blue {
		t.Errorf("p2 should hold the photo, got %v", got)
	}
	if got := at(img, 100, 90); got != red {
		t.Errorf("frame should show outside the slots, got %v", got)
	}
	if !resp.State.CanExport || resp.Photo != nil {
		t.Errorf("Unexpected response state %+v", resp)
	}

	w = f.post(t, Request{Mode: compose.ModeFrame, ItemID: f.frame.ID, Photo: f.photo, Assignments: map[string]string{"p9": f.photo}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for an unknown slot, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestComposeStickers(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, Request{Mode: compose.ModeSticker, ItemID: f.sticker.ID, Photo: f.photo})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	img, resp := decodeImage(t, w)
	if len(resp.State.Sprites) != 1 {
		t.Fatalf("Expected the default sticker, got %d", len(resp.State.Sprites))
	}
	if got := at(img, 200, 150); got != green {
		t.Errorf("default sticker should cover the center, got %v", got)
	}

	w = f.post(t, Request{Mode: compose.ModeSticker, ItemID: f.sticker.ID, Photo: f.photo, Stickers: []compose.Sprite{}})
	img, resp = decodeImage(t, w)
	if len(resp.State.Sprites) != 0 || at(img, 200, 150) != blue {
		t.Errorf("an empty sticker list renders the bare photo")
	}

	w = f.post(t, Request{Mode: compose.ModeSticker, ItemID: f.sticker.ID, Photo: f.photo, Stickers: []compose.Sprite{
		{X: 0, Y: 0, Width: 50, Height: 50, Scale: 1},
	}})
	img, _ = decodeImage(t, w)
	if got := at(img, 25, 25); got != green {
		t.Errorf("restored sticker missing at its position, got %v", got)
	}
	if got := at(img, 200, 150); got != blue {
		t.Errorf("center should be bare photo, got %v", got)
	}
}

func TestComposeFormalAndSave(t *testing.T) {
	f := newFixture(t)
	photo := compose.EncodeDataURI(compose.PNGMediaType, solidPNG(t, 60, 80, blue))

	w := f.post(t, Request{
		Mode:   compose.ModeFormal,
		ItemID: f.formal.ID,
		Photo:  photo,
		Formal: &FormalPlacement{SizeID: "half", Center: &compose.Point{X: 30, Y: 40}, Scale: 0.5},
		Save:   true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	img, resp := decodeImage(t, w)
	if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 40 {
		t.Errorf("Expected 30x40 output, got %v", b)
	}
	if got := at(img, 15, 20); got != blue {
		t.Errorf("photo should cover the center, got %v", got)
	}
	if resp.Photo == nil || resp.Photo.Type != "formal" || resp.Photo.ItemID != f.formal.ID {
		t.Fatalf("Expected a saved photo, got %+v", resp.Photo)
	}
	list, err := f.store.ListPhotos(context.Background(), "user-1")
	if err != nil || len(list) != 1 {
		t.Errorf("Expected one saved photo, got %d (%v)", len(list), err)
	}

	w = f.post(t, Request{Mode: compose.ModeFormal, ItemID: f.formal.ID, Photo: photo, Formal: &FormalPlacement{SizeID: "poster"}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status %d for an unknown size, got %d", http.StatusUnprocessableEntity, w.Code)
	}
}

func TestComposeErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		req  Request
		want int
	}{
		{"missing photo", Request{Mode: compose.ModeFrame, ItemID: f.frame.ID}, http.StatusBadRequest},
		{"unknown mode", Request{Mode: "collage", ItemID: f.frame.ID, Photo: f.photo}, http.StatusBadRequest},
		{"unknown item", Request{Mode: compose.ModeSticker, ItemID: "nope", Photo: f.photo}, http.StatusNotFound},
		{"undecodable photo", Request{Mode: compose.ModeSticker, ItemID: f.sticker.ID, Photo: "data:image/png;base64,AAAA"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := f.post(t, tt.req); w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	w := httptest.NewRecorder()
	HandleCompose(f.builder, f.assets, f.store)(w, httptest.NewRequest(http.MethodPost, "/api/compose", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d without claims, got %d", http.StatusUnauthorized, w.Code)
	}
}
