// Package secrets seals endpoint signing secrets at rest with NaCl secretbox.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceSize    = 24
	secretPrefix = "whsec_"
)

var ErrUnseal = errors.New("secrets: unable to open sealed value")

// Box seals and opens secrets under a key derived from the configured passphrase.
type Box struct {
	key [32]byte
}

func NewBox(passphrase string) *Box {
	return &Box{key: sha256.Sum256([]byte(passphrase))}
}

// Generate returns a fresh random signing secret.
func Generate() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return secretPrefix + hex.EncodeToString(b), nil
}

// Seal encrypts plaintext; the empty string stays empty so "no secret"
// survives a round trip.
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *Box) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrUnseal
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	out, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrUnseal
	}
	return string(out), nil
}
