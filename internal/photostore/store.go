// Package photostore reads and writes photo bytes by reference. A reference is
// an opaque path-like key such as "sightings/0f8e...c1.jpg".
package photostore

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no photo exists for a reference.
var ErrNotFound = errors.New("photo not found")

// Accessor reads photo bytes.
type Accessor interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// Store reads and writes photo bytes.
type Store interface {
	Accessor
	Put(ctx context.Context, ref string, data []byte) error
}

// NewRef generates a fresh reference under prefix, keeping the extension of filename.
func NewRef(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	return path.Join(prefix, uuid.NewString()+ext)
}

// cleanRef normalizes a reference and rejects ones that are empty or escape the store root.
func cleanRef(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", errors.New("empty photo reference")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(ref, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", errors.New("invalid photo reference")
	}
	return cleaned, nil
}
