// Package crypto decrypts record fields stored as XChaCha20-Poly1305
// envelopes of the form "enc:v1:<base64(nonce|ciphertext)>". Fields without
// the prefix are treated as plaintext and returned unchanged.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Prefix marks an encrypted field.
const Prefix = "enc:v1:"

var (
	ErrInvalidKey      = errors.New("invalid encryption key")
	ErrMalformedCipher = errors.New("malformed ciphertext")
)

// Cipher seals and opens field envelopes.
type Cipher struct {
	key []byte
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, chacha20poly1305.KeySize, len(key))
	}
	return &Cipher{key: append([]byte(nil), key...)}, nil
}

// NewCipherFromHex decodes a hex key as found in ENCRYPTION_KEY.
func NewCipherFromHex(s string) (*Cipher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewCipher(key)
}

// IsEncrypted reports whether s carries the envelope prefix.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope. Plaintext input is returned as is.
func (c *Cipher) Decrypt(s string) (string, error) {
	if !IsEncrypted(s) {
		return s, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCipher, err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrMalformedCipher)
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("open envelope: %w", err)
	}
	return string(pt), nil
}

func (c *Cipher) decryptPtr(p *string) (*string, error) {
	if p == nil {
		return nil, nil
	}
	v, err := c.Decrypt(*p)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
