// Package storage keeps an archive copy of relayed files in object storage.
// The MinIO implementation works with any S3-compatible provider.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// Storage is the interface for archiving and removing relayed files.
type Storage interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}

// ArchiveKey is the object key for a file relayed under record id.
func ArchiveKey(id, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return id + "/" + name
}
