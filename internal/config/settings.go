// Package config loads the runtime settings of the share tool.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/miekg/dns"
	"golang.org/x/net/idna"

	"github.com/KapJI/singbox-users/internal/share"
)

const (
	DefaultSingboxConfig = "/opt/singbox/config.json"
	DefaultVLESSTag      = "vless-in"
	DefaultContainer     = "singbox"
	DefaultDescription   = "Proxy Server"
	DefaultDNS1          = "1.1.1.1"
	DefaultDNS2          = "1.0.0.1"
	DefaultServerPort    = 443
	DefaultServerSNI     = "www.googletagmanager.com"
	DefaultLogLevel      = "info"
)

// Settings is the settings.yaml document.
type Settings struct {
	SingboxConfig string `yaml:"singbox_config"`
	VLESSTag      string `yaml:"vless_tag"`
	Container     string `yaml:"container"`

	ServerIP      string `yaml:"server_ip"`
	ServerPubkey  string `yaml:"server_pubkey"`   // used only without a sing-box config
	ServerShortID string `yaml:"server_short_id"` // used only without a sing-box config
	ServerPort    int    `yaml:"server_port"`
	ServerSNI     string `yaml:"server_sni"`

	ShareDescription string `yaml:"share_description"`
	ShareDNS1        string `yaml:"share_dns1"`
	ShareDNS2        string `yaml:"share_dns2"`

	QRChunkSize      int  `yaml:"qr_chunk_size"`
	CompressionLevel *int `yaml:"compression_level"` // nil means default; 0 is a valid level

	LogLevel        string `yaml:"log_level"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// Default returns settings with every default applied.
func Default() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

// Load reads settings from path. A missing file yields the defaults, which
// still fail validation until server_ip is set.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a settings document.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse settings: %w", err)
		}
	}
	s.trim()
	s.applyDefaults()
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) trim() {
	for _, p := range []*string{
		&s.SingboxConfig, &s.VLESSTag, &s.Container, &s.ServerIP, &s.ServerPubkey,
		&s.ServerShortID, &s.ServerSNI, &s.ShareDescription, &s.ShareDNS1, &s.ShareDNS2,
		&s.LogLevel, &s.MetricsTextfile,
	} {
		*p = strings.TrimSpace(*p)
	}
}

func (s *Settings) applyDefaults() {
	if s.SingboxConfig == "" {
		s.SingboxConfig = DefaultSingboxConfig
	}
	if s.VLESSTag == "" {
		s.VLESSTag = DefaultVLESSTag
	}
	if s.Container == "" {
		s.Container = DefaultContainer
	}
	if s.ServerPort == 0 {
		s.ServerPort = DefaultServerPort
	}
	if s.ServerSNI == "" {
		s.ServerSNI = DefaultServerSNI
	}
	if s.ShareDescription == "" {
		s.ShareDescription = DefaultDescription
	}
	if s.ShareDNS1 == "" {
		s.ShareDNS1 = DefaultDNS1
	}
	if s.ShareDNS2 == "" {
		s.ShareDNS2 = DefaultDNS2
	}
	if s.QRChunkSize == 0 {
		s.QRChunkSize = share.DefaultChunkSize
	}
	if s.CompressionLevel == nil {
		level := share.DefaultCompressionLevel
		s.CompressionLevel = &level
	}
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
}

func (s *Settings) validate() error {
	var allErrors []error

	if s.ServerIP == "" {
		allErrors = append(allErrors, fmt.Errorf("server_ip is required"))
	}
	if s.ServerPort < 1 || s.ServerPort > 65535 {
		allErrors = append(allErrors, fmt.Errorf("server_port must be between 1 and 65535, got %d", s.ServerPort))
	}
	if sni, err := idna.Lookup.ToASCII(s.ServerSNI); err != nil {
		allErrors = append(allErrors, fmt.Errorf("server_sni %q: %v", s.ServerSNI, err))
	} else if _, ok := dns.IsDomainName(sni); !ok || net.ParseIP(sni) != nil {
		allErrors = append(allErrors, fmt.Errorf("server_sni must be a domain name, got %q", sni))
	} else {
		s.ServerSNI = sni
	}
	if net.ParseIP(s.ShareDNS1) == nil {
		allErrors = append(allErrors, fmt.Errorf("share_dns1 must be an IP address, got %q", s.ShareDNS1))
	}
	if net.ParseIP(s.ShareDNS2) == nil {
		allErrors = append(allErrors, fmt.Errorf("share_dns2 must be an IP address, got %q", s.ShareDNS2))
	}
	if s.QRChunkSize < 1 {
		allErrors = append(allErrors, fmt.Errorf("qr_chunk_size must be positive, got %d", s.QRChunkSize))
	}
	if lvl := *s.CompressionLevel; lvl < 0 || lvl > 9 {
		allErrors = append(allErrors, fmt.Errorf("compression_level must be between 0 and 9, got %d", lvl))
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		allErrors = append(allErrors, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", s.LogLevel))
	}

	return writeErr(allErrors)
}

// ShareOptions returns the pipeline options these settings describe.
func (s *Settings) ShareOptions() share.Options {
	opts := share.DefaultOptions()
	opts.ChunkSize = s.QRChunkSize
	if s.CompressionLevel != nil {
		opts.CompressionLevel = *s.CompressionLevel
	}
	return opts
}

// ServerInfo returns the app-level server description for share requests.
func (s *Settings) ServerInfo() share.ServerInfo {
	return share.ServerInfo{
		Host:        s.ServerIP,
		Description: s.ShareDescription,
		DNS1:        s.ShareDNS1,
		DNS2:        s.ShareDNS2,
		Container:   s.Container,
	}
}

func writeErr(allErrors []error) error {
	if len(allErrors) == 0 {
		return nil
	}
	messages := make([]string, 0, len(allErrors))
	for _, err := range allErrors {
		messages = append(messages, err.Error())
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(messages, "\n  - "))
}
