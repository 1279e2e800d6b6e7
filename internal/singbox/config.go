package singbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

const (
	// TypeVLESS is the inbound type the share tool reads.
	TypeVLESS = "vless"

	// MinPort and MaxPort bound a valid listen_port.
	MinPort = 1
	MaxPort = 65535
)

// Config is the subset of a sing-box configuration this package reads.
type Config struct {
	Inbounds []Inbound `json:"inbounds"`
}

// Inbound is one entry of the inbounds array.
type Inbound struct {
	Type       string          `json:"type"`
	Tag        string          `json:"tag,omitempty"`
	Listen     string          `json:"listen,omitempty"`
	ListenPort json.RawMessage `json:"listen_port,omitempty"` // int or numeric string
	Users      []User          `json:"users,omitempty"`
	TLS        *InboundTLS     `json:"tls,omitempty"`
}

// User is a VLESS inbound user.
type User struct {
	Name string `json:"name,omitempty"`
	UUID string `json:"uuid"`
	Flow string `json:"flow,omitempty"`
}

// InboundTLS holds the inbound tls block.
type InboundTLS struct {
	Enabled    bool     `json:"enabled,omitempty"`
	ServerName string   `json:"server_name,omitempty"`
	Reality    *Reality `json:"reality,omitempty"`
}

// Reality holds tls.reality.
type Reality struct {
	Enabled    bool       `json:"enabled,omitempty"`
	Handshake  *Handshake `json:"handshake,omitempty"`
	PrivateKey string     `json:"private_key,omitempty"`
	ShortID    Listable   `json:"short_id,omitempty"`
}

// Handshake holds tls.reality.handshake.
type Handshake struct {
	Server string `json:"server,omitempty"`
}

// Listable decodes either a JSON array of strings or a single string, the
// way sing-box accepts list options.
type Listable []string

// UnmarshalJSON accepts a string, an array of strings or null.
func (l *Listable) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*l = Listable{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

// Parse decodes a sing-box config document. Comments and trailing commas are
// tolerated.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// FindVLESSInbound returns the VLESS inbound tagged tag, or the first VLESS
// inbound when tag is empty or unmatched.
func (c *Config) FindVLESSInbound(tag string) (*Inbound, error) {
	if tag != "" {
		for i := range c.Inbounds {
			if c.Inbounds[i].Type == TypeVLESS && c.Inbounds[i].Tag == tag {
				return &c.Inbounds[i], nil
			}
		}
	}
	for i := range c.Inbounds {
		if c.Inbounds[i].Type == TypeVLESS {
			return &c.Inbounds[i], nil
		}
	}
	return nil, ErrNoMatchingInbound
}

// Port returns listen_port as an integer.
func (in *Inbound) Port() (int, error) {
	raw := bytes.TrimSpace(in.ListenPort)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrMissingPort
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, ErrMissingPort
		}
		text = strings.TrimSpace(text)
	}
	port, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingPort, raw)
	}
	if port < MinPort || port > MaxPort {
		return 0, &PortRangeError{Port: port}
	}
	return port, nil
}

// FindUser looks a user up by UUID (case-insensitive) or, failing that, by
// exact name.
func (in *Inbound) FindUser(ref string) (User, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return User{}, false
	}
	for _, u := range in.Users {
		if strings.EqualFold(u.UUID, ref) {
			return u, true
		}
	}
	for _, u := range in.Users {
		if u.Name == ref {
			return u, true
		}
	}
	return User{}, false
}

func (in *Inbound) reality() *Reality {
	if in.TLS == nil || in.TLS.Reality == nil {
		return &Reality{}
	}
	return in.TLS.Reality
}

func (r *Reality) handshake() *Handshake {
	if r.Handshake == nil {
		return &Handshake{}
	}
	return r.Handshake
}
