package share

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Fixed values of the client profile.
const (
	FlowVision        = "xtls-rprx-vision"
	EncryptionNone    = "none"
	FingerprintChrome = "chrome"
	TransportTCP      = "tcp"
	SecurityReality   = "reality"

	localSocksListen = "127.0.0.1"
	localSocksPort   = 10808
	clientLogLevel   = "error"
)

// ProfileParams are the inputs of one client profile.
type ProfileParams struct {
	ClientID    string
	ServerIP    string
	PublicKey   string
	ShortID     string
	Description string
	DNS1        string
	DNS2        string
	Container   string
	Port        int
	ServerName  string
}

// InnerProfile is the Xray client configuration embedded in the outer
// profile. Field order is the serialization order.
type InnerProfile struct {
	Log       ClientLog       `json:"log" yaml:"log"`
	Inbounds  []LocalInbound  `json:"inbounds" yaml:"inbounds"`
	Outbounds []VLESSOutbound `json:"outbounds" yaml:"outbounds"`
}

// ClientLog is the log block of the client config.
type ClientLog struct {
	LogLevel string `json:"loglevel" yaml:"loglevel"`
}

// LocalInbound is the local SOCKS listener the client exposes.
type LocalInbound struct {
	Listen   string        `json:"listen" yaml:"listen"`
	Port     int           `json:"port" yaml:"port"`
	Protocol string        `json:"protocol" yaml:"protocol"`
	Settings LocalSettings `json:"settings" yaml:"settings"`
}

// LocalSettings holds the SOCKS listener options.
type LocalSettings struct {
	UDP bool `json:"udp" yaml:"udp"`
}

// VLESSOutbound is the single outbound to the server.
type VLESSOutbound struct {
	Protocol       string         `json:"protocol" yaml:"protocol"`
	Settings       VLESSSettings  `json:"settings" yaml:"settings"`
	StreamSettings StreamSettings `json:"streamSettings" yaml:"streamSettings"`
}

// VLESSSettings lists the upstream servers.
type VLESSSettings struct {
	Vnext []VNext `json:"vnext" yaml:"vnext"`
}

// VNext is one upstream server with its users.
type VNext struct {
	Address string      `json:"address" yaml:"address"`
	Port    int         `json:"port" yaml:"port"`
	Users   []VLESSUser `json:"users" yaml:"users"`
}

// VLESSUser is the client identity sent to the server.
type VLESSUser struct {
	ID         string `json:"id" yaml:"id"`
	Flow       string `json:"flow" yaml:"flow"`
	Encryption string `json:"encryption" yaml:"encryption"`
}

// StreamSettings selects TCP transport with REALITY security.
type StreamSettings struct {
	Network         string          `json:"network" yaml:"network"`
	Security        string          `json:"security" yaml:"security"`
	RealitySettings RealitySettings `json:"realitySettings" yaml:"realitySettings"`
}

// RealitySettings carries the REALITY handshake parameters.
type RealitySettings struct {
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	ServerName  string `json:"serverName" yaml:"serverName"`
	PublicKey   string `json:"publicKey" yaml:"publicKey"`
	ShortID     string `json:"shortId" yaml:"shortId"`
	SpiderX     string `json:"spiderX" yaml:"spiderX"`
}

// OuterProfile is the Amnezia server description that travels in the link.
type OuterProfile struct {
	Containers       []Container `json:"containers" yaml:"containers"`
	DefaultContainer string      `json:"defaultContainer" yaml:"defaultContainer"`
	Description      string      `json:"description" yaml:"description"`
	DNS1             string      `json:"dns1" yaml:"dns1"`
	DNS2             string      `json:"dns2" yaml:"dns2"`
	HostName         string      `json:"hostName" yaml:"hostName"`
}

// Container is one entry of the outer containers list.
type Container struct {
	Container string      `json:"container" yaml:"container"`
	Xray      XrayProfile `json:"xray" yaml:"xray"`
}

// XrayProfile carries the serialized inner profile verbatim.
type XrayProfile struct {
	LastConfig     string `json:"last_config" yaml:"last_config"`
	Port           string `json:"port" yaml:"port"`
	TransportProto string `json:"transport_proto" yaml:"transport_proto"`
}

// BuildInnerProfile returns the Xray client config for one user.
func BuildInnerProfile(p ProfileParams) *InnerProfile {
	return &InnerProfile{
		Log: ClientLog{LogLevel: clientLogLevel},
		Inbounds: []LocalInbound{{
			Listen:   localSocksListen,
			Port:     localSocksPort,
			Protocol: "socks",
			Settings: LocalSettings{UDP: true},
		}},
		Outbounds: []VLESSOutbound{{
			Protocol: "vless",
			Settings: VLESSSettings{Vnext: []VNext{{
				Address: p.ServerIP,
				Port:    p.Port,
				Users: []VLESSUser{{
					ID:         p.ClientID,
					Flow:       FlowVision,
					Encryption: EncryptionNone,
				}},
			}}},
			StreamSettings: StreamSettings{
				Network:  TransportTCP,
				Security: SecurityReality,
				RealitySettings: RealitySettings{
					Fingerprint: FingerprintChrome,
					ServerName:  p.ServerName,
					PublicKey:   p.PublicKey,
					ShortID:     p.ShortID,
				},
			},
		}},
	}
}

// BuildOuterProfile wraps the inner profile for p into the Amnezia container
// structure.
func BuildOuterProfile(p ProfileParams) (*OuterProfile, error) {
	inner, err := marshalIndent(BuildInnerProfile(p))
	if err != nil {
		return nil, fmt.Errorf("marshal inner profile: %w", err)
	}
	return &OuterProfile{
		Containers: []Container{{
			Container: p.Container,
			Xray: XrayProfile{
				LastConfig:     string(inner),
				Port:           strconv.Itoa(p.Port),
				TransportProto: TransportTCP,
			},
		}},
		DefaultContainer: p.Container,
		Description:      p.Description,
		DNS1:             p.DNS1,
		DNS2:             p.DNS2,
		HostName:         p.ServerIP,
	}, nil
}

// MarshalIndent returns the canonical serialization that goes into the
// container: four-space indent, no HTML escaping, trailing newline.
func (o *OuterProfile) MarshalIndent() ([]byte, error) {
	return marshalIndent(o)
}

// Inner parses the embedded client config of the first container.
func (o *OuterProfile) Inner() (*InnerProfile, error) {
	if len(o.Containers) == 0 {
		return nil, fmt.Errorf("profile has no containers")
	}
	var inner InnerProfile
	if err := json.Unmarshal([]byte(o.Containers[0].Xray.LastConfig), &inner); err != nil {
		return nil, fmt.Errorf("parse last_config: %w", err)
	}
	return &inner, nil
}

// Inspect parses a serialized outer profile and its embedded inner profile.
func Inspect(outerJSON []byte) (*OuterProfile, *InnerProfile, error) {
	var outer OuterProfile
	if err := json.Unmarshal(outerJSON, &outer); err != nil {
		return nil, nil, fmt.Errorf("parse profile: %w", err)
	}
	inner, err := outer.Inner()
	if err != nil {
		return nil, nil, err
	}
	return &outer, inner, nil
}

func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
