// Package blob stores uploaded receipt images.
//
// Put returns a location string that is persisted as the receipt's image
// URL and later passed back to Get and Delete. Local locations are
// slash-separated keys; GCS locations are gs://bucket/key URIs.
package blob

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a location holds no object.
var ErrNotFound = errors.New("blob not found")

// Store saves and loads binary objects.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Get(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
}

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"application/pdf": ".pdf",
}

// Extension returns the file extension for an accepted receipt content type.
func Extension(contentType string) (string, bool) {
	ext, ok := extensions[strings.ToLower(contentType)]
	return ext, ok
}

// ReceiptKey builds receipts/<user>/<uuid><ext>.
func ReceiptKey(userID, contentType string) string {
	ext, _ := Extension(contentType)
	return path.Join("receipts", userID, uuid.New().String()+ext)
}

// ContentType returns the content type implied by a location's extension,
// or application/octet-stream.
func ContentType(location string) string {
	ext := strings.ToLower(path.Ext(location))
	for ct, e := range extensions {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}
