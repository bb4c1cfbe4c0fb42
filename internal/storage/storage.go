// Package storage abstracts where rendered artifacts and staged audio live.
// The daemon ships with a local-disk backend; the interface keeps the
// coordinator independent of the backing store.
package storage

import "context"

// ObjectStorage stores named blobs and hands back stable URLs for them.
type ObjectStorage interface {
	// Upload writes the blob under name and returns its public URL.
	Upload(ctx context.Context, data []byte, name string) (string, error)
	// Download reads a previously uploaded blob.
	Download(ctx context.Context, name string) ([]byte, error)
	// Delete removes a blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error
	// URL returns the public URL for a blob without touching it.
	URL(name string) string
	// Path returns the local filesystem path for a blob, or "" when the
	// backend is not file-based.
	Path(name string) string
}
