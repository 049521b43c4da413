// Package crypto derives the per-user symmetric key and applies it to
// every payload that leaves process memory. The key comes from a
// signature the user produces over a fixed message; deriving it again
// from the same signature yields the same key, so no key material is
// ever persisted.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/sandevgo/vitalmem/internal/core"
)

// KeyManager implements core.Cipher with AES-256-GCM. The 32-byte key
// is the SHA-256 digest of the signature artifact.
type KeyManager struct {
	mu   sync.RWMutex
	aead cipher.AEAD
}

func NewKeyManager() *KeyManager {
	return &KeyManager{}
}

// Initialize derives the key from the signature artifact. Calling it
// again with the same artifact reproduces the same key.
func (k *KeyManager) Initialize(signature []byte) error {
	if len(signature) == 0 {
		return fmt.Errorf("empty signature artifact")
	}

	key := sha256.Sum256(signature)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("create gcm: %w", err)
	}

	k.mu.Lock()
	k.aead = aead
	k.mu.Unlock()
	return nil
}

// Reset discards the derived key. Encrypt/Decrypt fail until the next
// Initialize.
func (k *KeyManager) Reset() {
	k.mu.Lock()
	k.aead = nil
	k.mu.Unlock()
}

func (k *KeyManager) Initialized() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.aead != nil
}

// Encrypt seals the plaintext with a random nonce prepended to the
// returned ciphertext.
func (k *KeyManager) Encrypt(plaintext []byte) ([]byte, error) {
	k.mu.RLock()
	aead := k.aead
	k.mu.RUnlock()
	if aead == nil {
		return nil, core.ErrKeyNotInitialized
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a payload produced by Encrypt. An authentication
// failure surfaces as core.ErrKeyMismatch: the bytes are intact (the
// archive verifies content hashes separately) but were sealed under a
// different key.
func (k *KeyManager) Decrypt(ciphertext []byte) ([]byte, error) {
	k.mu.RLock()
	aead := k.aead
	k.mu.RUnlock()
	if aead == nil {
		return nil, core.ErrKeyNotInitialized
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce: %w", core.ErrKeyMismatch)
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", core.ErrKeyMismatch)
	}
	return plaintext, nil
}
