package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/KapJI/singbox-users/internal/config"
	"github.com/KapJI/singbox-users/internal/share"
	"github.com/KapJI/singbox-users/internal/singbox"
)

var errNoServerKeys = errors.New("server_pubkey and server_short_id are required when the sing-box config is missing")

// resolveRequest builds the share request for clientRef. The sing-box config
// is authoritative for port, SNI, short id and public key; the settings
// values are used only when that file does not exist.
func resolveRequest(s *config.Settings, clientRef string, logger *slog.Logger) (share.Request, error) {
	data, err := os.ReadFile(s.SingboxConfig)
	switch {
	case err == nil:
		return requestFromSingbox(s, data, clientRef, logger)
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("sing-box config not found, using settings", "path", s.SingboxConfig)
		return requestFromSettings(s, clientRef)
	default:
		return share.Request{}, fmt.Errorf("read sing-box config: %w", err)
	}
}

func requestFromSingbox(s *config.Settings, data []byte, clientRef string, logger *slog.Logger) (share.Request, error) {
	cfg, err := singbox.Parse(data)
	if err != nil {
		return share.Request{}, fmt.Errorf("%s: %w", s.SingboxConfig, err)
	}
	in, err := cfg.FindVLESSInbound(s.VLESSTag)
	if err != nil {
		return share.Request{}, fmt.Errorf("%s: %w", s.SingboxConfig, err)
	}
	if in.Tag != s.VLESSTag {
		logger.Warn("vless inbound tag not found, using first vless inbound", "want", s.VLESSTag, "got", in.Tag)
	}
	params, err := in.ServerParams()
	if err != nil {
		return share.Request{}, fmt.Errorf("inbound %q: %w", in.Tag, err)
	}

	clientID, err := lookupClient(in, clientRef, logger)
	if err != nil {
		return share.Request{}, err
	}
	logger.Debug("resolved server parameters",
		"tag", params.Tag, "port", params.Port, "sni", params.ServerName, "short_id", params.ShortID)

	return share.Request{
		ClientID:   clientID,
		Server:     s.ServerInfo(),
		Port:       params.Port,
		ServerName: params.ServerName,
		PublicKey:  params.PublicKey,
		ShortID:    params.ShortID,
	}, nil
}

func requestFromSettings(s *config.Settings, clientRef string) (share.Request, error) {
	if s.ServerPubkey == "" || s.ServerShortID == "" {
		return share.Request{}, errNoServerKeys
	}
	return share.Request{
		ClientID:   clientRef,
		Server:     s.ServerInfo(),
		Port:       s.ServerPort,
		ServerName: s.ServerSNI,
		PublicKey:  s.ServerPubkey,
		ShortID:    s.ServerShortID,
	}, nil
}

// lookupClient maps a UUID or user name to the user's UUID. A well-formed
// UUID that is not listed is shared anyway with a warning.
func lookupClient(in *singbox.Inbound, ref string, logger *slog.Logger) (string, error) {
	if u, ok := in.FindUser(ref); ok {
		return u.UUID, nil
	}
	if _, err := uuid.Parse(ref); err == nil {
		logger.Warn("client is not a user of the inbound", "client", ref, "tag", in.Tag)
		return ref, nil
	}
	return "", fmt.Errorf("%w: no user %q in inbound %q", share.ErrInvalidClientID, ref, in.Tag)
}
