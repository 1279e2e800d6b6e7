// Package reality derives the X25519 key material that REALITY clients need
// from the server-side secrets stored in the proxy configuration.
package reality

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/curve25519"
)

// KeySize is the length of an X25519 scalar and of a derived point.
const KeySize = curve25519.ScalarSize

var (
	// ErrInvalidKeyEncoding is returned when a key is not URL-safe base64.
	ErrInvalidKeyEncoding = errors.New("invalid key encoding")
	// ErrInvalidKeyLength is returned when a key does not decode to KeySize bytes.
	ErrInvalidKeyLength = errors.New("invalid key length")
)

// KeyLengthError reports the decoded length of a rejected key.
type KeyLengthError struct {
	Got int
}

func (e *KeyLengthError) Error() string {
	return fmt.Sprintf("invalid key length: got %d, want %d", e.Got, KeySize)
}

func (e *KeyLengthError) Unwrap() error { return ErrInvalidKeyLength }

// KeyPair represents an X25519 key pair in the encoding sing-box and Xray use:
// URL-safe base64 without padding.
type KeyPair struct {
	Private string
	Public  string
}

// DerivePublicKey multiplies the private scalar by the X25519 base point and
// returns the resulting point. Padding on the input is optional.
func DerivePublicKey(privateKey string) (string, error) {
	scalar, err := parseKey(privateKey)
	if err != nil {
		return "", err
	}
	public, err := curve25519.X25519(scalar, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("derive public key: %w", err)
	}
	return encodeKey(public), nil
}

// GenerateKeyPair generates a new X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	private := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, private); err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	return &KeyPair{
		Private: encodeKey(private),
		Public:  encodeKey(public),
	}, nil
}

func parseKey(key string) ([]byte, error) {
	if rem := len(key) % 4; rem != 0 {
		key += strings.Repeat("=", 4-rem)
	}
	decoded, err := base64.URLEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyEncoding, err)
	}
	if len(decoded) != KeySize {
		return nil, &KeyLengthError{Got: len(decoded)}
	}
	return decoded, nil
}

func encodeKey(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
