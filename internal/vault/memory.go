package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"usdt-ledger/internal/ledger"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It stores all blobs in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name  string
	blobs map[string][]byte // key -> content
	mu    sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:  name,
		blobs: make(map[string][]byte),
	}
}

// Put stores the blob read from r under key, replacing any previous blob.
func (m *MemoryVault) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[key] = data
	return nil
}

// Get writes the blob stored under key to w.
func (m *MemoryVault) Get(ctx context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.blobs[key]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("blob not found: %s", key)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}

	return nil
}

// Delete removes the blob under key. Missing keys are ignored.
func (m *MemoryVault) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, key)
	return nil
}

// Locator returns a memory:// locator for key.
func (m *MemoryVault) Locator(key string) string {
	return "memory://" + m.name + "/" + key
}

// Keys returns every stored key in sorted order.
func (m *MemoryVault) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(ctx context.Context) error {
	return nil
}

// Compile-time check that MemoryVault implements ledger.Vault interface
var _ ledger.Vault = (*MemoryVault)(nil)
