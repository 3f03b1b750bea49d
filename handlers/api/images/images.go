package images

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"photobooth/compose"
	"photobooth/core"
	"photobooth/middleware"

	"github.com/go-chi/render"
	"github.com/h2non/filetype"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 32 << 20

type saveRequest struct {
	Image  string `json:"image"`
	Type   string `json:"type"`
	ItemID string `json:"itemId"`
}

// Persist stores an exported composite and records it for userID. image is a
// data URI or bare base64.
func Persist(ctx context.Context, assets core.AssetStore, photos core.PhotoStore, userID, image, typ, itemID string) (*core.Photo, error) {
	switch compose.Mode(typ) {
	case compose.ModeFrame, compose.ModeSticker, compose.ModeFormal:
	default:
		return nil, fmt.Errorf("unknown image type %q: %w", typ, core.ErrInvalid)
	}
	if userID == "" {
		return nil, fmt.Errorf("missing user: %w", core.ErrInvalid)
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(image, "data:") {
		_, data, err = compose.DecodeDataURI(image)
	} else {
		data, err = base64.StdEncoding.DecodeString(image)
	}
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("image payload is not valid base64: %w", core.ErrInvalid)
	}
	kind, err := filetype.Image(data)
	if err != nil || kind == filetype.Unknown {
		return nil, fmt.Errorf("payload is not an image: %w", core.ErrInvalid)
	}

	key := "photos/" + userID + "/" + ulid.Make().String() + "." + kind.Extension
	url, err := assets.Put(ctx, key, kind.MIME.Value, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	photo := &core.Photo{
		UserID: userID,
		URL:    url,
		Type:   typ,
		ItemID: itemID,
	}
	if err := photos.CreatePhoto(ctx, photo); err != nil {
		return nil, fmt.Errorf("failed to record image: %w", err)
	}
	return photo, nil
}

func HandleCreate(assets core.AssetStore, photos core.PhotoStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFrom(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var req saveRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.Image == "" || req.Type == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Image and type are required"})
			return
		}

		photo, err := Persist(r.Context(), assets, photos, claims.Subject, req.Image, req.Type, req.ItemID)
		if err != nil {
			if errors.Is(err, core.ErrInvalid) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": err.Error()})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"type":   req.Type,
			}).Error("Failed to save image")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save image"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, photo)
	}
}

func HandleList(photos core.PhotoStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFrom(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		list, err := photos.ListPhotos(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list images")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list images"})
			return
		}
		if list == nil {
			list = []*core.Photo{}
		}
		render.JSON(w, r, list)
	}
}
