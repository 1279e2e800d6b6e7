package singbox

import (
	"fmt"
	"strings"

	"github.com/KapJI/singbox-users/internal/reality"
)

const (
	FieldHandshakeServer = "tls.reality.handshake.server"
	FieldShortID         = "tls.reality.short_id"
	FieldPrivateKey      = "tls.reality.private_key"
)

// ServerParams are the values a client profile needs from the server inbound.
type ServerParams struct {
	Tag        string
	Port       int
	ServerName string
	ShortID    string
	PublicKey  string
}

// Extract locates the VLESS inbound and returns its REALITY parameters with
// the public key derived from the configured private key.
func Extract(cfg *Config, tag string) (ServerParams, error) {
	if cfg == nil {
		return ServerParams{}, ErrNoMatchingInbound
	}
	in, err := cfg.FindVLESSInbound(tag)
	if err != nil {
		return ServerParams{}, err
	}
	return in.ServerParams()
}

// ServerParams validates the inbound and derives its client-facing parameters.
func (in *Inbound) ServerParams() (ServerParams, error) {
	port, err := in.Port()
	if err != nil {
		return ServerParams{}, err
	}

	r := in.reality()
	serverName := strings.TrimSpace(r.handshake().Server)
	if serverName == "" {
		return ServerParams{}, &MissingFieldError{Path: FieldHandshakeServer}
	}

	if len(r.ShortID) == 0 {
		return ServerParams{}, &MissingFieldError{Path: FieldShortID}
	}
	shortID := strings.TrimSpace(r.ShortID[0])

	privateKey := strings.TrimSpace(r.PrivateKey)
	if privateKey == "" {
		return ServerParams{}, &MissingFieldError{Path: FieldPrivateKey}
	}
	publicKey, err := reality.DerivePublicKey(privateKey)
	if err != nil {
		return ServerParams{}, fmt.Errorf("%s: %w", FieldPrivateKey, err)
	}

	return ServerParams{
		Tag:        in.Tag,
		Port:       port,
		ServerName: serverName,
		ShortID:    shortID,
		PublicKey:  publicKey,
	}, nil
}
