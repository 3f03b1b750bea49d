package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"photobooth/compose"
	"photobooth/core"
	"photobooth/handlers/auth"
	"photobooth/middleware"
	"photobooth/stores/memory"

	"github.com/golang-jwt/jwt/v5"
)

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func withUser(r *http.Request, userID string) *http.Request {
	claims := &auth.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}, Role: core.RoleUser}
	return r.WithContext(context.WithValue(r.Context(), middleware.ClaimsContextKey, claims))
}

func TestPersist(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	assets := memory.NewAssetStore("/assets")
	data := pngData(t)

	for _, payload := range []string{
		compose.EncodeDataURI(compose.PNGMediaType, data),
		base64.StdEncoding.EncodeToString(data),
	} {
		photo, err := Persist(ctx, assets, store, "user-1", payload, "sticker", "st-1")
		if err != nil {
			t.Fatalf("Persist failed: %v", err)
		}
		if photo.ID == "" || photo.CreatedAt.IsZero() {
			t.Errorf("Expected id and creation time, got %+v", photo)
		}
		key := strings.TrimPrefix(photo.URL, "/assets/")
		if !strings.HasPrefix(key, "photos/user-1/") || !strings.HasSuffix(key, ".png") {
			t.Errorf("Unexpected url %q", photo.URL)
		}
		rc, err := assets.Open(ctx, key)
		if err != nil {
			t.Fatalf("Stored blob missing: %v", err)
		}
		got, _ := io.ReadAll(rc)
		rc.Close()
		if !bytes.Equal(got, data) {
			t.Error("Stored bytes differ from the payload")
		}
	}

	list, err := store.ListPhotos(ctx, "user-1")
	if err != nil || len(list) != 2 {
		t.Fatalf("Expected 2 photos, got %d (%v)", len(list), err)
	}
}

func TestPersistRejects(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	assets := memory.NewAssetStore("/assets")
	valid := base64.StdEncoding.EncodeToString(pngData(t))

	tests := []struct {
		name, user, image, typ string
	}{
		{"unknown type", "u", valid, "poster"},
		{"no user", "", valid, "frame"},
		{"not base64", "u", "!!!", "frame"},
		{"not an image", "u", base64.StdEncoding.EncodeToString([]byte("hello world")), "frame"},
		{"broken data uri", "u", "data:image/png;base64", "frame"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Persist(ctx, assets, store, tt.user, tt.image, tt.typ, "")
			if !errors.Is(err, core.ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got %v", err)
			}
		})
	}
	if stats, _ := store.Stats(ctx); stats.TotalPhotos != 0 {
		t.Errorf("Rejected payloads must not be recorded, got %d", stats.TotalPhotos)
	}
}

func TestHandleCreateAndList(t *testing.T) {
	store := memory.NewStore()
	assets := memory.NewAssetStore("/assets")

	body, _ := json.Marshal(saveRequest{
		Image:  compose.EncodeDataURI(compose.PNGMediaType, pngData(t)),
		Type:   "frame",
		ItemID: "frame-1",
	})
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/images", bytes.NewReader(body)), "user-1")
	w := httptest.NewRecorder()
	HandleCreate(assets, store)(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	var created map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"id", "imageUrl", "createdAt"} {
		if created[field] == nil || created[field] == "" {
			t.Errorf("Response is missing %s: %v", field, created)
		}
	}

	w = httptest.NewRecorder()
	HandleList(store)(w, withUser(httptest.NewRequest(http.MethodGet, "/api/images", nil), "user-1"))
	var list []core.Photo
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ItemID != "frame-1" {
		t.Errorf("Unexpected list %+v", list)
	}

	w = httptest.NewRecorder()
	HandleList(store)(w, withUser(httptest.NewRequest(http.MethodGet, "/api/images", nil), "user-2"))
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("Other users must not see the photo, got %s", w.Body.String())
	}
}

func TestHandleCreateErrors(t *testing.T) {
	store := memory.NewStore()
	assets := memory.NewAssetStore("/assets")

	w := httptest.NewRecorder()
	HandleCreate(assets, store)(w, httptest.NewRequest(http.MethodPost, "/api/images", strings.NewReader("{}")))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d without claims, got %d", http.StatusUnauthorized, w.Code)
	}

	for _, body := range []string{`{`, `{"type":"frame"}`, `{"image":"AAAA","type":"poster"}`} {
		w := httptest.NewRecorder()
		HandleCreate(assets, store)(w, withUser(httptest.NewRequest(http.MethodPost, "/api/images", strings.NewReader(body)), "u"))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", body, http.StatusBadRequest, w.Code)
		}
	}
}
