package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/kozaktomas/lookout/internal/constants"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// photoField is the multipart field carrying the uploaded photo.
const photoField = "photo"

// maxPhotoPixels rejects decompression bombs before anything is stored.
const maxPhotoPixels = 80_000_000

var errNotAnImage = errors.New("photo is not a supported image")

// uploadedPhoto is a photo read from a multipart request.
type uploadedPhoto struct {
	Data   []byte
	Format string
}

// readPhoto returns the photo of a parsed multipart form, or nil when none was sent.
func readPhoto(r *http.Request) (*uploadedPhoto, error) {
	file, _, err := r.FormFile(photoField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) > constants.MaxUploadSize {
		return nil, fmt.Errorf("photo exceeds %d bytes", constants.MaxUploadSize)
	}
	if len(data) == 0 {
		return nil, nil
	}

	format, err := validatePhoto(data)
	if err != nil {
		return nil, err
	}
	return &uploadedPhoto{Data: data, Format: format}, nil
}

// validatePhoto checks that data has a decodable image header of a sane size.
// Only the header is decoded; matching works on raw bytes.
func validatePhoto(data []byte) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", errNotAnImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", errNotAnImage
	}
	if cfg.Width*cfg.Height > maxPhotoPixels {
		return "", fmt.Errorf("photo is too large: %dx%d", cfg.Width, cfg.Height)
	}
	return format, nil
}

// photoExt maps a decoded format to a file extension for the stored reference.
func photoExt(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png", "gif", "bmp", "tiff", "webp":
		return "." + format
	default:
		return ""
	}
}
