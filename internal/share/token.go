package share

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Scheme prefixes every share link.
const Scheme = "vpn://"

// EncodeToken renders a container payload as a vpn:// link.
func EncodeToken(payload []byte) string {
	return Scheme + encodeRawURL(payload)
}

// DecodeToken returns the container payload carried by a vpn:// link.
func DecodeToken(token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, Scheme) {
		return nil, ErrMissingScheme
	}
	payload, err := decodeRawURL(strings.TrimPrefix(token, Scheme))
	if err != nil {
		return nil, fmt.Errorf("decode share link: %w", err)
	}
	return payload, nil
}

func encodeRawURL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeRawURL accepts URL-safe base64 with or without padding.
func decodeRawURL(s string) ([]byte, error) {
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return base64.URLEncoding.DecodeString(s)
}
