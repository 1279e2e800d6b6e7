// Package share builds Amnezia-compatible share links and QR frame sequences
// for a single VLESS+REALITY client.
//
// The pipeline is pure: profile assembly, qCompress container, vpn:// token
// and QR framing all run in memory and are safe for concurrent use.
package share

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Observer is notified once per Build call.
type Observer interface {
	ObserveBuild(err error, payloadBytes, chunks int)
}

// Options controls the pipeline constants.
type Options struct {
	ChunkSize        int
	Magic            int16
	CompressionLevel int
	Observer         Observer
}

// DefaultOptions returns the values the Amnezia client expects.
func DefaultOptions() Options {
	return Options{
		ChunkSize:        DefaultChunkSize,
		Magic:            DefaultQRMagic,
		CompressionLevel: DefaultCompressionLevel,
	}
}

// ServerInfo is the app-level description of the server.
type ServerInfo struct {
	Host        string
	Description string
	DNS1        string
	DNS2        string
	Container   string
}

// Request describes one share.
type Request struct {
	ClientID   string
	Server     ServerInfo
	Port       int
	ServerName string
	PublicKey  string
	ShortID    string
}

// Result is the output of one share.
type Result struct {
	Link     string
	QRChunks []string
	Payload  []byte
	Profile  *OuterProfile
}

// Builder runs the share pipeline.
type Builder struct {
	opts   Options
	framer Framer
}

// NewBuilder creates a builder. A zero ChunkSize or Magic falls back to the
// default; CompressionLevel 0 is a valid (stored) level and is kept.
func NewBuilder(opts Options) *Builder {
	def := DefaultOptions()
	if opts.ChunkSize == 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.Magic == 0 {
		opts.Magic = def.Magic
	}
	return &Builder{
		opts:   opts,
		framer: Framer{ChunkSize: opts.ChunkSize, Magic: opts.Magic},
	}
}

// Framer returns the QR framing the builder uses.
func (b *Builder) Framer() Framer {
	return b.framer
}

// Build produces the vpn:// link and QR frames for req.
func (b *Builder) Build(req Request) (*Result, error) {
	res, err := b.build(req)
	if b.opts.Observer != nil {
		payloadBytes, chunks := 0, 0
		if res != nil {
			payloadBytes, chunks = len(res.Payload), len(res.QRChunks)
		}
		b.opts.Observer.ObserveBuild(err, payloadBytes, chunks)
	}
	return res, err
}

func (b *Builder) build(req Request) (*Result, error) {
	if err := validateClientID(req.ClientID); err != nil {
		return nil, err
	}
	if req.Port < 1 || req.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, req.Port)
	}

	profile, err := BuildOuterProfile(ProfileParams{
		ClientID:    req.ClientID,
		ServerIP:    req.Server.Host,
		PublicKey:   req.PublicKey,
		ShortID:     req.ShortID,
		Description: req.Server.Description,
		DNS1:        req.Server.DNS1,
		DNS2:        req.Server.DNS2,
		Container:   req.Server.Container,
		Port:        req.Port,
		ServerName:  req.ServerName,
	})
	if err != nil {
		return nil, err
	}
	outer, err := profile.MarshalIndent()
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}
	payload, err := Compress(outer, b.opts.CompressionLevel)
	if err != nil {
		return nil, err
	}
	chunks, err := b.framer.Frame(payload)
	if err != nil {
		return nil, fmt.Errorf("split QR chunks: %w", err)
	}

	return &Result{
		Link:     EncodeToken(payload),
		QRChunks: chunks,
		Payload:  payload,
		Profile:  profile,
	}, nil
}

// Decode turns a vpn:// link back into the outer profile JSON.
func Decode(link string) ([]byte, error) {
	payload, err := DecodeToken(link)
	if err != nil {
		return nil, err
	}
	return Decompress(payload)
}

// DecodeQR turns QR tokens (any order) back into the outer profile JSON.
func (b *Builder) DecodeQR(tokens []string) ([]byte, error) {
	payload, err := b.framer.ReassembleTokens(tokens)
	if err != nil {
		return nil, err
	}
	return Decompress(payload)
}

func validateClientID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidClientID)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidClientID, id, err)
	}
	// uuid.Parse also takes urn, braced and undashed forms; the id is copied
	// into the profile verbatim, so only the dashed form is accepted.
	if len(id) != 36 {
		return fmt.Errorf("%w: %q is not in 8-4-4-4-12 form", ErrInvalidClientID, id)
	}
	return nil
}
