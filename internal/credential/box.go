// internal/credential/box.go
//
// Symmetric encryption for tenant database passwords.
//
// Context
// -------
// Every tenant row in the control plane carries the password of its own
// MySQL user.  The value is never stored in clear text: it is sealed with
// NaCl secretbox (XSalsa20 + Poly1305) under one process-wide key that
// operators keep outside the registry (env var, `.env`, or Vault via a
// `vault:` reference in config).
//
// Wire format
// -----------
//
//	base64url( nonce[24] || secretbox.Seal(plaintext) )
//
// Notes
// -----
//   - A missing or malformed key fails in New, never per call.
//   - Decrypt never panics; tampered, truncated, or foreign ciphertexts
//     return ErrMalformed.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	// ErrNoKey is returned by New when the configured key is empty.
	ErrNoKey = errors.New("credential: encryption key is not configured")

	// ErrBadKey is returned by New when the key does not decode to 32 bytes.
	ErrBadKey = errors.New("credential: encryption key must be 32 bytes, base64 encoded")

	// ErrMalformed is returned by Decrypt for any ciphertext that does not
	// authenticate under the configured key.
	ErrMalformed = errors.New("credential: malformed or tampered ciphertext")
)

// Decrypter is the narrow view the pool manager needs.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Box seals and opens short secrets.  Safe for concurrent use; the key is
// immutable after construction.
type Box struct {
	key [keySize]byte
}

// New decodes key (standard or URL-safe base64, padded or not) and returns a
// ready Box.
func New(key string) (*Box, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNoKey
	}
	raw, err := decodeAny(key)
	if err != nil || len(raw) != keySize {
		return nil, ErrBadKey
	}
	b := &Box{}
	copy(b.key[:], raw)
	return b, nil
}

// GenerateKey returns a fresh random key in the encoding New expects.
func GenerateKey() (string, error) {
	var k [keySize]byte
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return "", fmt.Errorf("credential: read random: %w", err)
	}
	return base64.URLEncoding.EncodeToString(k[:]), nil
}

// Encrypt seals plaintext under a random nonce.
func (b *Box) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("credential: read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (b *Box) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", ErrMalformed
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrMalformed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	out, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrMalformed
	}
	return string(out), nil
}

// decodeAny accepts the four common base64 alphabets.
func decodeAny(s string) ([]byte, error) {
	encs := []*base64.Encoding{
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawURLEncoding,
		base64.RawStdEncoding,
	}
	var lastErr error
	for _, enc := range encs {
		raw, err := enc.DecodeString(s)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
