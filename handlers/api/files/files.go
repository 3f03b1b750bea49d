package files

import (
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"photobooth/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/h2non/filetype"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// DefaultMaxUploadBytes is used when MAX_UPLOAD_BYTES is unset.
const DefaultMaxUploadBytes = 10 << 20

var folderPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)

// HandleUpload stores one image from the multipart field "file" under
// uploads/<folder>/ and answers with its public URL.
func HandleUpload(assets core.AssetStore, maxBytes int64) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		// Multipart framing needs a little headroom above the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				render.Status(r, http.StatusRequestEntityTooLarge)
				render.JSON(w, r, map[string]string{"error": "File too large"})
				return
			}
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid multipart form"})
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "No file provided"})
			return
		}
		defer file.Close()

		if header.Size > maxBytes {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, map[string]string{"error": "File too large"})
			return
		}

		folder := r.FormValue("folder")
		if folder == "" {
			folder = "misc"
		}
		if !folderPattern.MatchString(folder) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid folder"})
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			logrus.WithError(err).Error("Failed to read upload")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read file"})
			return
		}

		kind, err := filetype.Match(data)
		if err != nil || !filetype.IsImage(data) {
			render.Status(r, http.StatusUnsupportedMediaType)
			render.JSON(w, r, map[string]string{"error": "Only image files are allowed"})
			return
		}

		key := "uploads/" + folder + "/" + ulid.Make().String() + "." + kind.Extension
		url, err := assets.Put(r.Context(), key, kind.MIME.Value, data)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"key":   key,
			}).Error("Failed to store upload")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to store file"})
			return
		}

		logrus.WithFields(logrus.Fields{
			"key":  key,
			"mime": kind.MIME.Value,
			"size": len(data),
		}).Info("File uploaded")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]string{"url": url, "key": key})
	}
}

// HandleServe streams an asset. Mount it with a trailing wildcard.
func HandleServe(assets core.AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		if err := core.CheckAssetKey(key); err != nil {
			http.Error(w, "Invalid asset key", http.StatusBadRequest)
			return
		}

		rc, err := assets.Open(r.Context(), key)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			logrus.WithFields(logrus.Fields{"error": err, "key": key}).Error("Failed to open asset")
			http.Error(w, "Failed to open asset", http.StatusInternalServerError)
			return
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "key": key}).Error("Failed to read asset")
			http.Error(w, "Failed to read asset", http.StatusInternalServerError)
			return
		}

		contentType := "application/octet-stream"
		if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
			contentType = kind.MIME.Value
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Write(data)
	}
}
