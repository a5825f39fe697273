// Package storage provides the object storage capability for ticket photos.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Client stores photo bytes and issues public URLs for stored objects.
type Client interface {
	// Put stores data and returns the object key.
	Put(ctx context.Context, data []byte, contentType, folder string) (string, error)
	// PublicURL returns the URL a client can fetch the object from.
	PublicURL(key string) string
}

// extensions maps accepted photo content types to file extensions.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// AllowedContentType reports whether uploads of this content type are accepted.
func AllowedContentType(contentType string) bool {
	_, ok := extensions[contentType]
	return ok
}

// Disk is a Client backed by a local directory. Objects are served by the
// HTTP layer under baseURL.
type Disk struct {
	dir     string
	baseURL string
}

// NewDisk creates a disk-backed storage client rooted at dir.
func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Disk{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes data under a generated key of the form folder/uuid.ext.
func (d *Disk) Put(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}

	key := path.Join(folder, uuid.NewString()+ext)
	full := filepath.Join(d.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	return key, nil
}

// PublicURL returns the URL the stored object is served from.
func (d *Disk) PublicURL(key string) string {
	return d.baseURL + "/" + key
}

// Dir returns the root directory objects are written under.
func (d *Disk) Dir() string {
	return d.dir
}
