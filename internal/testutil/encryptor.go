package testutil

import (
	"usdt-ledger/internal/encryption"
)

// NewTestEncryptor creates a reversible stand-in encryptor for testing.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}
