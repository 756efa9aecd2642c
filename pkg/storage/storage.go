// Package storage persists the memory store's vector-index snapshots.
// The column tables live in Badger; the HNSW graph is the one piece of
// state that serializes to a flat file, and FileStore is the seam it
// saves through, so a deployment can move snapshots off the local disk
// without touching the index code.
package storage

import (
	"context"
	"io"
)

// FileStore reads and writes named snapshot files.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use, and Write must be
// atomic: a reader never observes a half-written snapshot, and a
// failed write leaves any previous version intact.
type FileStore interface {
	// Read opens the named snapshot for reading. The caller closes the
	// returned ReadCloser. A missing file is an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write stages the named snapshot for writing, creating parent
	// directories as needed. The data only replaces any previous
	// version when the returned WriteCloser is closed successfully.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Exists reports whether the named snapshot exists.
	Exists(ctx context.Context, path string) (bool, error)
}
