package upscale

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"

	"photobooth/compose"

	"github.com/anthonynsimon/bild/transform"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const (
	Factor = 2
	// MaxOutputSide bounds either side of the upscaled image.
	MaxOutputSide = 8192

	maxBodyBytes = 32 << 20
)

var ErrTooLarge = errors.New("image too large to upscale")

type (
	request struct {
		ImageData string `json:"imageData"`
	}

	response struct {
		Success   bool   `json:"success"`
		ImageData string `json:"imageData,omitempty"`
		Error     string `json:"error,omitempty"`
	}
)

// Upscale decodes a data URI or bare base64 image and returns it enlarged by
// Factor with Lanczos resampling, as a PNG data URI.
func Upscale(imageData string) (string, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(imageData, "data:") {
		_, data, err = compose.DecodeDataURI(imageData)
	} else {
		data, err = base64.StdEncoding.DecodeString(imageData)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", compose.ErrBadSource, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", compose.ErrBadSource, err)
	}
	if cfg.Width*Factor > MaxOutputSide || cfg.Height*Factor > MaxOutputSide {
		return "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", compose.ErrBadSource, err)
	}
	b := img.Bounds()
	out := transform.Resize(img, b.Dx()*Factor, b.Dy()*Factor, transform.Lanczos)

	encoded, err := compose.EncodePNG(out)
	if err != nil {
		return "", err
	}
	return compose.EncodeDataURI(compose.PNGMediaType, encoded), nil
}

func HandleUpscale() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.ImageData == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response{Error: "imageData is required"})
			return
		}

		out, err := Upscale(req.ImageData)
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, compose.ErrBadSource):
				status = http.StatusBadRequest
			case errors.Is(err, ErrTooLarge):
				status = http.StatusRequestEntityTooLarge
			default:
				logrus.WithError(err).Error("Failed to upscale image")
			}
			render.Status(r, status)
			render.JSON(w, r, response{Error: err.Error()})
			return
		}

		render.JSON(w, r, response{Success: true, ImageData: out})
	}
}
