package vault

import (
	"fmt"
	"path"
	"strings"
)

// cleanKey validates a blob key. Keys are slash separated and relative;
// they may not climb out of the vault.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	cleaned := path.Clean(key)
	if path.IsAbs(cleaned) || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid key: %q", key)
	}
	return cleaned, nil
}
