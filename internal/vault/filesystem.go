package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"usdt-ledger/internal/ledger"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// It stores blobs as files under a single directory, mirroring the key:
//
//	<root>/
//	  blobs/
//	    <ledger id>/<transaction id>/<attachment id>.<ext>
//	    backups/<timestamp>.db
type FileSystemVault struct {
	name    string
	root    string
	blobDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	blobDir := filepath.Join(root, "blobs")

	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	return &FileSystemVault{
		name:    name,
		root:    root,
		blobDir: blobDir,
	}, nil
}

func (v *FileSystemVault) pathFor(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(v.blobDir, filepath.FromSlash(key)), nil
}

// Put stores the blob read from r under key, replacing any previous blob.
func (v *FileSystemVault) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	destPath, err := v.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	return v.writeFile(destPath, r, size)
}

// Get writes the blob stored under key to w.
func (v *FileSystemVault) Get(ctx context.Context, key string, w io.Writer) error {
	srcPath, err := v.pathFor(key)
	if err != nil {
		return err
	}
	return v.readFile(srcPath, w, fmt.Sprintf("blob not found: %s", key))
}

// Delete removes the blob under key. Missing keys are ignored.
func (v *FileSystemVault) Delete(ctx context.Context, key string) error {
	p, err := v.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Locator returns the absolute file path of key.
func (v *FileSystemVault) Locator(key string) string {
	p, err := v.pathFor(key)
	if err != nil {
		return ""
	}
	return p
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	info, err = os.Stat(v.blobDir)
	if err != nil {
		return fmt.Errorf("vault directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault path is not a directory: %s", v.blobDir)
	}

	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// readFile reads from the specified path and writes to w.
func (v *FileSystemVault) readFile(srcPath string, w io.Writer, notFoundMsg string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s", notFoundMsg)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}

// Compile-time check that FileSystemVault implements ledger.Vault interface
var _ ledger.Vault = (*FileSystemVault)(nil)
