package encryption

import (
	"path/filepath"
	"testing"

	"usdt-ledger/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("none disables encryption", func(t *testing.T) {
		for _, typ := range []string{"", "none"} {
			got, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: typ})
			if err != nil {
				t.Fatalf("NewEncryptorFromConfig(%q) error = %v", typ, err)
			}
			if got != nil {
				t.Errorf("NewEncryptorFromConfig(%q) = %T, want nil", typ, got)
			}
		}
	})

	t.Run("age", func(t *testing.T) {
		got, err := NewEncryptorFromConfig(config.EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(dir, "usdt.pub"),
			PrivateKeyPath: filepath.Join(dir, "usdt.key"),
		})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := got.(*AgeEncryptor); !ok {
			t.Errorf("NewEncryptorFromConfig() = %T, want *AgeEncryptor", got)
		}
	})

	t.Run("age without key paths", func(t *testing.T) {
		got, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: "age"})
		if err == nil {
			t.Fatal("expected error for missing key paths")
		}
		if got != nil {
			t.Error("expected nil encryptor on error")
		}
	})

	t.Run("test", func(t *testing.T) {
		got, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: "test"})
		if err != nil {
			t.Fatalf("NewEncryptorFromConfig() error = %v", err)
		}
		if _, ok := got.(*TestEncryptor); !ok {
			t.Errorf("NewEncryptorFromConfig() = %T, want *TestEncryptor", got)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: "rot13"}); err == nil {
			t.Fatal("expected error for unknown type")
		}
	})
}
