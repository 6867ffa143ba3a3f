// Package labels renders printable QR labels for location codes and
// archives them in a pluggable object store.
package labels

import (
	"context"
	"io"
)

// Store is the interface for label artifact archives. Keys are the bare
// location codes; the stored artifact is always a PNG image.
type Store interface {
	io.Closer

	// Put stores the label PNG for the given code, replacing any existing
	// artifact.
	Put(ctx context.Context, code string, png []byte) error

	// Get returns the label PNG for the given code, or ErrLabelNotFound.
	Get(ctx context.Context, code string) ([]byte, error)

	// Exists reports whether a label artifact is archived for the code.
	Exists(ctx context.Context, code string) (bool, error)

	// Delete removes the label artifact. Deleting a missing label is not an
	// error.
	Delete(ctx context.Context, code string) error

	// List returns the codes of all archived labels in lexical order.
	List(ctx context.Context) ([]string, error)
}

// objectKey maps a code to its archive object name.
func objectKey(prefix, code string) string {
	name := code + ".png"
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
