package channels

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// Vault seals credential maps with a symmetric key before they touch the
// database and opens them again for adapter calls.
type Vault struct {
	key [32]byte
}

// NewVault creates a credential vault around the given key.
func NewVault(key [32]byte) *Vault {
	return &Vault{key: key}
}

// Seal encrypts a credential map into an opaque blob.
func (v *Vault) Seal(credentials map[string]any) ([]byte, error) {
	plaintext, err := json.Marshal(credentials)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &v.key), nil
}

// Open decrypts a sealed blob back into the credential map.
func (v *Vault) Open(sealed []byte) (map[string]any, error) {
	if len(sealed) < nonceSize {
		return nil, errors.New("sealed credentials are truncated")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &v.key)
	if !ok {
		return nil, errors.New("credentials cannot be opened with the configured key")
	}
	var credentials map[string]any
	if err := json.Unmarshal(plaintext, &credentials); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return credentials, nil
}
