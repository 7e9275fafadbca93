package profile

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher seals profile snapshots at rest.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

type aeadCipher struct {
	key []byte
}

// NewAEADCipher builds a ChaCha20-Poly1305 cipher. The key must be exactly
// 32 bytes.
func NewAEADCipher(key []byte) (Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &aeadCipher{key: key}, nil
}

func (c *aeadCipher) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *aeadCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}

// Base64Cipher is a reversible encoding, not encryption. It exists only as a
// test double for environments without a provisioned key.
type Base64Cipher struct{}

func (Base64Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(plaintext)))
	base64.StdEncoding.Encode(out, plaintext)
	return out, nil
}

func (Base64Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(ciphertext)))
	n, err := base64.StdEncoding.Decode(out, ciphertext)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
