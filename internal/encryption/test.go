package encryption

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"

	"usdt-ledger/internal/ledger"
)

// testMagic marks blobs written by TestEncryptor.
var testMagic = []byte("USDTENC1")

// TestEncryptor is a reversible stand-in for AgeEncryptor in tests. It
// frames data with a fixed header and XORs the body with a constant, so
// ciphertext never equals plaintext and no key material is needed.
type TestEncryptor struct {
	setups    atomic.Int32
	encrypted atomic.Int32
}

var _ ledger.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setups.Add(1)
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, &xorReader{r: r}); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	e.encrypted.Add(1)
	return nil
}

// Encrypted reports how many blobs have been encrypted.
func (e *TestEncryptor) Encrypted() int { return int(e.encrypted.Load()) }

// Unlock accepts any passphrase except "wrong".
func (e *TestEncryptor) Unlock(passphrase string) (ledger.DecryptionContext, error) {
	if passphrase == "wrong" {
		return nil, ErrWrongPassphrase
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext reverses TestEncryptor.
type TestDecryptionContext struct{}

var _ ledger.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testMagic) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, &xorReader{r: r}); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

type xorReader struct{ r io.Reader }

func (x *xorReader) Read(p []byte) (int, error) {
	n, err := x.r.Read(p)
	for i := range p[:n] {
		p[i] ^= 0x5a
	}
	return n, err
}
