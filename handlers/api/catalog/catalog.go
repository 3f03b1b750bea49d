package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"photobooth/compose"
	"photobooth/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// resource adapts one catalog entity to the generic CRUD handlers.
type resource[T any] struct {
	name     string
	list     func(ctx context.Context) ([]*T, error)
	get      func(ctx context.Context, id string) (*T, error)
	save     func(ctx context.Context, item *T) error
	del      func(ctx context.Context, id string) error
	setID    func(item *T, id string)
	validate func(item *T) error
	// filter, when set, decides whether a listed item matches the request query.
	filter func(r *http.Request, item *T) bool
}

// PublicRoutes mounts the read-only catalog.
func PublicRoutes(store core.CatalogStore) func(chi.Router) {
	return func(r chi.Router) {
		mountRead(r, "/categories", categories(store))
		mountRead(r, "/frames", frames(store))
		mountRead(r, "/stickers", stickers(store))
		mountRead(r, "/formals", formals(store))
	}
}

// AdminRoutes mounts catalog writes. Callers guard it with RequireAdmin.
func AdminRoutes(store core.CatalogStore) func(chi.Router) {
	return func(r chi.Router) {
		mountWrite(r, "/categories", categories(store))
		mountWrite(r, "/frames", frames(store))
		mountWrite(r, "/stickers", stickers(store))
		mountWrite(r, "/formals", formals(store))
	}
}

func mountRead[T any](r chi.Router, path string, res resource[T]) {
	r.Get(path, res.handleList())
	r.Get(path+"/{id}", res.handleGet())
}

func mountWrite[T any](r chi.Router, path string, res resource[T]) {
	r.Post(path, res.handleCreate())
	r.Patch(path+"/{id}", res.handleUpdate())
	r.Delete(path+"/{id}", res.handleDelete())
}

func (res resource[T]) handleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := res.list(r.Context())
		if err != nil {
			res.fail(w, r, err, "")
			return
		}
		out := make([]*T, 0, len(items))
		for _, item := range items {
			if res.filter == nil || res.filter(r, item) {
				out = append(out, item)
			}
		}
		render.JSON(w, r, out)
	}
}

func (res resource[T]) handleGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		item, err := res.get(r.Context(), id)
		if err != nil {
			res.fail(w, r, err, id)
			return
		}
		render.JSON(w, r, item)
	}
}

func (res resource[T]) handleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item := new(T)
		if err := json.NewDecoder(r.Body).Decode(item); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		res.setID(item, "")
		if err := res.validate(item); err != nil {
			res.fail(w, r, err, "")
			return
		}
		if err := res.save(r.Context(), item); err != nil {
			res.fail(w, r, err, "")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, item)
	}
}

// handleUpdate decodes the body over the stored item, so omitted fields keep
// their values.
func (res resource[T]) handleUpdate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		item, err := res.get(r.Context(), id)
		if err != nil {
			res.fail(w, r, err, id)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(item); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		res.setID(item, id)
		if err := res.validate(item); err != nil {
			res.fail(w, r, err, id)
			return
		}
		if err := res.save(r.Context(), item); err != nil {
			res.fail(w, r, err, id)
			return
		}
		render.JSON(w, r, item)
	}
}

func (res resource[T]) handleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := res.del(r.Context(), id); err != nil {
			res.fail(w, r, err, id)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (res resource[T]) fail(w http.ResponseWriter, r *http.Request, err error, id string) {
	fields := logrus.Fields{"error": err, "resource": res.name}
	if id != "" {
		fields["id"] = id
	}
	switch {
	case errors.Is(err, core.ErrNotFound):
		logrus.WithFields(fields).Warn("Catalog item not found")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": fmt.Sprintf("%s not found", res.name)})
	case errors.Is(err, core.ErrInvalid):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": err.Error()})
	case errors.Is(err, core.ErrConflict):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, map[string]string{"error": err.Error()})
	default:
		logrus.WithFields(fields).Error("Catalog request failed")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Internal Server Error"})
	}
}

func required(what, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required: %w", what, core.ErrInvalid)
	}
	return nil
}

func byCategory(r *http.Request, categoryID string) bool {
	want := r.URL.Query().Get("categoryId")
	return want == "" || want == categoryID
}

func categories(store core.CatalogStore) resource[core.Category] {
	return resource[core.Category]{
		name:  "category",
		list:  store.ListCategories,
		get:   store.GetCategory,
		save:  store.SaveCategory,
		del:   store.DeleteCategory,
		setID: func(c *core.Category, id string) { c.ID = id },
		validate: func(c *core.Category) error {
			return required("name", c.Name)
		},
	}
}

func frames(store core.CatalogStore) resource[core.Frame] {
	return resource[core.Frame]{
		name:  "frame",
		list:  store.ListFrames,
		get:   store.GetFrame,
		save:  store.SaveFrame,
		del:   store.DeleteFrame,
		setID: func(f *core.Frame, id string) { f.ID = id },
		validate: func(f *core.Frame) error {
			if err := errors.Join(required("name", f.Name), required("categoryId", f.CategoryID), required("imageUrl", f.ImageURL)); err != nil {
				return err
			}
			return validatePlaceholders(f.Placeholders)
		},
		filter: func(r *http.Request, f *core.Frame) bool { return byCategory(r, f.CategoryID) },
	}
}

func stickers(store core.CatalogStore) resource[core.Sticker] {
	return resource[core.Sticker]{
		name:  "sticker",
		list:  store.ListStickers,
		get:   store.GetSticker,
		save:  store.SaveSticker,
		del:   store.DeleteSticker,
		setID: func(s *core.Sticker, id string) { s.ID = id },
		validate: func(s *core.Sticker) error {
			return errors.Join(required("name", s.Name), required("categoryId", s.CategoryID), required("imageUrl", s.ImageURL))
		},
		filter: func(r *http.Request, s *core.Sticker) bool { return byCategory(r, s.CategoryID) },
	}
}

func formals(store core.CatalogStore) resource[core.Formal] {
	return resource[core.Formal]{
		name:  "formal",
		list:  store.ListFormals,
		get:   store.GetFormal,
		save:  store.SaveFormal,
		del:   store.DeleteFormal,
		setID: func(f *core.Formal, id string) { f.ID = id },
		validate: func(f *core.Formal) error {
			if err := errors.Join(required("name", f.Name), required("backgroundUrl", f.BackgroundURL)); err != nil {
				return err
			}
			return validateSizes(f.Sizes)
		},
	}
}

func validatePlaceholders(placeholders []compose.Placeholder) error {
	if len(placeholders) == 0 {
		return fmt.Errorf("at least one placeholder is required: %w", core.ErrInvalid)
	}
	seen := make(map[string]bool, len(placeholders))
	for _, p := range placeholders {
		if p.ID == "" || seen[p.ID] {
			return fmt.Errorf("placeholder ids must be unique and non-empty: %w", core.ErrInvalid)
		}
		seen[p.ID] = true
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("placeholder %s has no area: %w", p.ID, core.ErrInvalid)
		}
	}
	return nil
}

func validateSizes(sizes []compose.Size) error {
	if len(sizes) == 0 {
		return fmt.Errorf("at least one size is required: %w", core.ErrInvalid)
	}
	seen := make(map[string]bool, len(sizes))
	for _, s := range sizes {
		if s.ID == "" || seen[s.ID] {
			return fmt.Errorf("size ids must be unique and non-empty: %w", core.ErrInvalid)
		}
		seen[s.ID] = true
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("size %s has no area: %w", s.ID, core.ErrInvalid)
		}
		if s.Width > compose.MaxSourceSide || s.Height > compose.MaxSourceSide {
			return fmt.Errorf("size %s exceeds %d pixels per side: %w", s.ID, compose.MaxSourceSide, core.ErrInvalid)
		}
	}
	return nil
}
