package filestore

import (
	"io"
)

// FileStore stores message images by their content hash.
type FileStore interface {
	// Save saves the file content under the given hash. It is
	// idempotent: saving the same hash twice returns nil.
	Save(r io.Reader, hash string) error

	// Get retrieves the file content for the given hash.
	Get(hash string) (io.ReadCloser, error)
}
