package composite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"photobooth/compose"
	"photobooth/core"
	"photobooth/handlers/api/images"
	"photobooth/middleware"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 64 << 20

type (
	// Request describes one complete composition. Only the model for Mode is
	// read. A nil Stickers seeds the default sticker; an empty one renders
	// none.
	Request struct {
		Mode        compose.Mode      `json:"mode"`
		ItemID      string            `json:"itemId"`
		Photo       string            `json:"photo"`
		Assignments map[string]string `json:"assignments,omitempty"`
		Stickers    []compose.Sprite  `json:"stickers"`
		Formal      *FormalPlacement  `json:"formal,omitempty"`
		Save        bool              `json:"save"`
	}

	// FormalPlacement positions the photo. A nil Center keeps the photo
	// centered at scale 1.
	FormalPlacement struct {
		SizeID string         `json:"sizeId,omitempty"`
		Center *compose.Point `json:"center,omitempty"`
		Scale  float64        `json:"scale,omitempty"`
	}

	Response struct {
		Image string        `json:"image"`
		State compose.State `json:"state"`
		Photo *core.Photo   `json:"photo,omitempty"`
	}
)

// Apply loads the request's model into comp.
func (b *Builder) Apply(comp compose.Compositor, req *Request) error {
	switch c := comp.(type) {
	case *compose.FrameCompositor:
		for placeholderID, photo := range req.Assignments {
			ref, err := b.ClientRef(photo)
			if err != nil {
				return err
			}
			if err := c.Assign(placeholderID, ref); err != nil {
				return err
			}
		}
	case *compose.StickerCompositor:
		if req.Stickers != nil {
			sprites := make([]compose.Sprite, len(req.Stickers))
			for i, sp := range req.Stickers {
				if sp.Source != "" {
					ref, err := b.stickerRef(c, sp.Source)
					if err != nil {
						return err
					}
					sp.Source = ref
				}
				sprites[i] = sp
			}
			c.Restore(sprites)
		}
	case *compose.FormalCompositor:
		if req.Formal == nil {
			return nil
		}
		if req.Formal.SizeID != "" {
			if err := c.SelectSize(req.Formal.SizeID); err != nil {
				return err
			}
		}
		if req.Formal.Center != nil {
			scale := req.Formal.Scale
			if scale == 0 {
				scale = 1
			}
			c.Place(*req.Formal.Center, scale)
		}
	}
	return nil
}

// stickerRef accepts the catalog sticker echoed back from a previous state
// as well as client refs.
func (b *Builder) stickerRef(c *compose.StickerCompositor, source string) (string, error) {
	if ref := b.Ref(source); ref == c.Sticker() {
		return ref, nil
	}
	return b.ClientRef(source)
}

// Render builds and exports the composition described by req.
func (b *Builder) Render(ctx context.Context, req *Request) (string, compose.State, error) {
	comp, err := b.Compositor(ctx, req.Mode, req.ItemID, req.Photo)
	if err != nil {
		return "", compose.State{}, err
	}
	if err := b.Apply(comp, req); err != nil {
		return "", compose.State{}, err
	}
	editor := compose.NewEditor(comp, b.Loader())
	image, err := editor.ExportDataURI(ctx)
	return image, editor.State(), err
}

// HandleCompose renders a composition in one shot and optionally saves it to
// the caller's photos.
func HandleCompose(builder *Builder, assets core.AssetStore, photos core.PhotoStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFrom(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var req Request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.Photo == "" || req.ItemID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Photo and itemId are required"})
			return
		}

		image, state, err := builder.Render(r.Context(), &req)
		if err != nil {
			writeRenderError(w, r, err, state)
			return
		}

		resp := Response{Image: image, State: state}
		if req.Save {
			photo, err := images.Persist(r.Context(), assets, photos, claims.Subject, image, string(req.Mode), req.ItemID)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"error":  err,
					"userID": claims.Subject,
					"mode":   req.Mode,
				}).Error("Failed to save composition")
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "Failed to save image"})
				return
			}
			resp.Photo = photo
		}
		render.JSON(w, r, resp)
	}
}

func writeRenderError(w http.ResponseWriter, r *http.Request, err error, state compose.State) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Catalog item not found"})
	case errors.Is(err, compose.ErrUnknownMode),
		errors.Is(err, compose.ErrUnknownPlaceholder),
		errors.Is(err, compose.ErrBadSource),
		errors.Is(err, core.ErrInvalid):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": err.Error()})
	case errors.Is(err, compose.ErrTooLarge):
		render.Status(r, http.StatusRequestEntityTooLarge)
		render.JSON(w, r, map[string]any{"error": err.Error(), "state": state})
	case errors.Is(err, compose.ErrIncomplete), errors.Is(err, compose.ErrUnknownSize):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, map[string]any{"error": err.Error(), "state": state})
	default:
		// Load and decode failures leave the editor in the failed state.
		logrus.WithError(err).Warn("Composition failed")
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, map[string]any{"error": err.Error(), "state": state})
	}
}
