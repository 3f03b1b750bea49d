package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"photobooth/compose"
	"photobooth/core"
	"photobooth/stores/memory"

	"github.com/go-chi/chi/v5"
)

func newRouter(store core.CatalogStore) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Group(PublicRoutes(store))
		r.Group(AdminRoutes(store))
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCategoryLifecycle(t *testing.T) {
	h := newRouter(memory.NewStore())

	w := do(t, h, http.MethodPost, "/api/categories", core.Category{ID: "ignored", Name: "Birthday"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	cat := decode[core.Category](t, w)
	if cat.ID == "" || cat.ID == "ignored" {
		t.Errorf("Expected a server-assigned id, got %q", cat.ID)
	}

	if w := do(t, h, http.MethodPost, "/api/categories", core.Category{Name: "birthday"}); w.Code != http.StatusConflict {
		t.Errorf("Expected status %d for duplicate name, got %d", http.StatusConflict, w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/categories", core.Category{}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for missing name, got %d", http.StatusBadRequest, w.Code)
	}

	w = do(t, h, http.MethodPatch, "/api/categories/"+cat.ID, map[string]string{"description": "Cakes"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	updated := decode[core.Category](t, w)
	if updated.Name != "Birthday" || updated.Description != "Cakes" {
		t.Errorf("Patch should merge fields, got %+v", updated)
	}

	list := decode[[]core.Category](t, do(t, h, http.MethodGet, "/api/categories", nil))
	if len(list) != 1 || list[0].ID != cat.ID {
		t.Errorf("Unexpected list %+v", list)
	}

	if w := do(t, h, http.MethodDelete, "/api/categories/"+cat.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/categories/"+cat.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d after delete, got %d", http.StatusNotFound, w.Code)
	}
}

func TestFramesValidationAndFilter(t *testing.T) {
	store := memory.NewStore()
	h := newRouter(store)
	a := &core.Category{Name: "A"}
	b := &core.Category{Name: "B"}
	if err := store.SaveCategory(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveCategory(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	slots := []compose.Placeholder{{ID: "p1", X: 10, Y: 10, Width: 80, Height: 60}}
	tests := []struct {
		name  string
		frame core.Frame
		want  int
	}{
		{"valid", core.Frame{Name: "F", CategoryID: a.ID, ImageURL: "/assets/f.png", Placeholders: slots}, http.StatusCreated},
		{"missing image", core.Frame{Name: "F", CategoryID: a.ID, Placeholders: slots}, http.StatusBadRequest},
		{"no placeholders", core.Frame{Name: "F", CategoryID: a.ID, ImageURL: "/assets/f.png"}, http.StatusBadRequest},
		{"duplicate placeholder", core.Frame{Name: "F", CategoryID: a.ID, ImageURL: "x", Placeholders: append(slots, slots[0])}, http.StatusBadRequest},
		{"empty placeholder", core.Frame{Name: "F", CategoryID: a.ID, ImageURL: "x", Placeholders: []compose.Placeholder{{ID: "p1"}}}, http.StatusBadRequest},
		{"unknown category", core.Frame{Name: "F", CategoryID: "nope", ImageURL: "x", Placeholders: slots}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, h, http.MethodPost, "/api/frames", tt.frame); w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	if w := do(t, h, http.MethodPost, "/api/frames", core.Frame{Name: "G", CategoryID: b.ID, ImageURL: "x", Placeholders: slots}); w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", w.Code)
	}

	all := decode[[]core.Frame](t, do(t, h, http.MethodGet, "/api/frames", nil))
	if len(all) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(all))
	}
	onlyA := decode[[]core.Frame](t, do(t, h, http.MethodGet, "/api/frames?categoryId="+a.ID, nil))
	if len(onlyA) != 1 || onlyA[0].CategoryID != a.ID {
		t.Errorf("Unexpected filtered list %+v", onlyA)
	}

	if w := do(t, h, http.MethodDelete, "/api/categories/"+a.ID, nil); w.Code != http.StatusConflict {
		t.Errorf("Expected status %d deleting a category in use, got %d", http.StatusConflict, w.Code)
	}
}

func TestStickersAndFormals(t *testing.T) {
	store := memory.NewStore()
	h := newRouter(store)
	cat := &core.Category{Name: "Fun"}
	if err := store.SaveCategory(context.Background(), cat); err != nil {
		t.Fatal(err)
	}

	w := do(t, h, http.MethodPost, "/api/stickers", core.Sticker{Name: "Star", CategoryID: cat.ID, ImageURL: "/assets/star.png"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	st := decode[core.Sticker](t, w)
	if got := decode[core.Sticker](t, do(t, h, http.MethodGet, "/api/stickers/"+st.ID, nil)); got.Name != "Star" {
		t.Errorf("Unexpected sticker %+v", got)
	}

	sizes := []compose.Size{{ID: "4x6", Name: "4x6", Width: 1200, Height: 1800, DPI: 300}}
	if w := do(t, h, http.MethodPost, "/api/formals", core.Formal{Name: "Blue", BackgroundURL: "/assets/bg.png"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d without sizes, got %d", http.StatusBadRequest, w.Code)
	}
	huge := []compose.Size{{ID: "banner", Width: compose.MaxSourceSide + 1, Height: 100}}
	if w := do(t, h, http.MethodPost, "/api/formals", core.Formal{Name: "Blue", BackgroundURL: "/assets/bg.png", Sizes: huge}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for an oversized size, got %d", http.StatusBadRequest, w.Code)
	}
	w = do(t, h, http.MethodPost, "/api/formals", core.Formal{Name: "Blue", BackgroundURL: "/assets/bg.png", Sizes: sizes})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	f := decode[core.Formal](t, w)
	if len(f.Sizes) != 1 || f.Sizes[0].DPI != 300 {
		t.Errorf("Sizes not kept: %+v", f.Sizes)
	}
	if w := do(t, h, http.MethodPatch, "/api/formals/missing", map[string]string{"name": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/api/formals/"+f.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, w.Code)
	}
}

type failingStore struct {
	core.CatalogStore
}

func (failingStore) ListFrames(ctx context.Context) ([]*core.Frame, error) {
	return nil, errors.New("database is locked")
}

func TestListStoreError(t *testing.T) {
	w := do(t, newRouter(failingStore{}), http.MethodGet, "/api/frames", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestEmptyListIsArray(t *testing.T) {
	w := do(t, newRouter(memory.NewStore()), http.MethodGet, "/api/stickers", nil)
	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) != "[]" {
		t.Errorf("Expected empty array, got %s", got)
	}
}
