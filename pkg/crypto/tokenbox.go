// Package crypto seals provider tokens before they reach the database.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keyLength   = 32
	nonceLength = 24
)

// TokenBox encrypts and decrypts provider access/refresh tokens with
// nacl/secretbox. The sealed form is nonce||ciphertext.
type TokenBox struct {
	key [keyLength]byte
}

// NewTokenBox builds a TokenBox from a configured key. The key may be
// base64, hex, or 32 raw bytes.
func NewTokenBox(key string) (*TokenBox, error) {
	raw, err := decodeKey(strings.TrimSpace(key))
	if err != nil {
		return nil, err
	}
	box := &TokenBox{}
	copy(box.key[:], raw)
	return box, nil
}

func decodeKey(key string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == keyLength {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == keyLength {
		return b, nil
	}
	if len(key) == keyLength*2 {
		if b, err := hex.DecodeString(key); err == nil {
			return b, nil
		}
	}
	if len(key) == keyLength {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("token encryption key must decode to %d bytes", keyLength)
}

// Seal encrypts a token. An empty token seals to nil so nullable columns stay
// null.
func (b *TokenBox) Seal(plaintext string) ([]byte, error) {
	if plaintext == "" {
		return nil, nil
	}
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key), nil
}

// Open decrypts a sealed token. nil opens to the empty string.
func (b *TokenBox) Open(sealed []byte) (string, error) {
	if len(sealed) == 0 {
		return "", nil
	}
	if len(sealed) < nonceLength+secretbox.Overhead {
		return "", errors.New("sealed token too short")
	}
	var nonce [nonceLength]byte
	copy(nonce[:], sealed[:nonceLength])
	plaintext, ok := secretbox.Open(nil, sealed[nonceLength:], &nonce, &b.key)
	if !ok {
		return "", errors.New("failed to open sealed token")
	}
	return string(plaintext), nil
}
