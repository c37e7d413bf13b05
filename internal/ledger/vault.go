package ledger

import (
	"context"
	"io"
)

// Vault stores evidence blobs. Operations stream through io.Reader/io.Writer
// so large files are never held in memory.
type Vault interface {
	// Put stores size bytes read from r under key, replacing any previous blob.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the blob stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// Delete removes the blob under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Locator returns the public locator of key (a URL or path).
	Locator(key string) string

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
