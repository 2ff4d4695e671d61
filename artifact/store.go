// Package artifact persists engine outputs: job results, marker reports,
// and matrix snapshots. Implementations share a flat key namespace with
// "/" separators (e.g. "jobs/<id>/result").
package artifact

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when an artifact does not exist.
//
// Implementations return errors satisfying errors.Is(err, ErrNotFound).
// The sentinel maps to fs.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store is a keyed byte store for persisted engine artifacts.
type Store interface {
	// Put writes an artifact atomically, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Open opens an artifact for reading and reports its size.
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// Delete removes an artifact. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys under the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ReadAll opens and fully reads one artifact.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, _, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
