package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Vault seals provider API keys with AES-256-GCM under a passphrase-derived
// key. Sealed blobs are nonce||ciphertext, so the store only needs a single
// column per secret.
type Vault struct {
	key [32]byte
}

// New derives an AES-256 key from the passphrase via Argon2id. The salt is
// deterministic (SHA-256 of the passphrase), so the same passphrase always
// produces the same key across restarts.
func New(passphrase string) *Vault {
	salt := sha256.Sum256([]byte(passphrase))
	key := argon2.IDKey([]byte(passphrase), salt[:16], 1, 64*1024, 4, 32)

	v := &Vault{}
	copy(v.key[:], key)
	return v
}

// Seal encrypts plaintext and returns nonce||ciphertext.
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	gcm, err := v.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal.
func (v *Vault) Open(sealed []byte) ([]byte, error) {
	gcm, err := v.aead()
	if err != nil {
		return nil, err
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed blob too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
