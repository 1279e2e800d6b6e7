package share

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// QR frame wire format, all integers big-endian:
//
//	[Magic:2B int16][Total:1B][Index:1B][Length:4B][Data...]
//
// Amnezia scans the frames in any order and reassembles Data by Index.
const (
	DefaultChunkSize = 850
	DefaultQRMagic   = int16(1984)

	// MaxChunks is bounded by the single-byte Total and Index fields.
	MaxChunks = 255

	frameHeaderSize = 8
)

// Frame is one decoded QR chunk.
type Frame struct {
	Magic  int16
	Total  uint8
	Index  uint8
	Length uint32
	Data   []byte
}

// MarshalBinary encodes the frame header and data.
func (f Frame) MarshalBinary() ([]byte, error) {
	if uint64(len(f.Data)) != uint64(f.Length) {
		return nil, fmt.Errorf("%w: header %d, data %d", ErrFrameLength, f.Length, len(f.Data))
	}
	buf := make([]byte, frameHeaderSize+len(f.Data))
	binary.BigEndian.PutUint16(buf[0:2], uint16(f.Magic))
	buf[2] = f.Total
	buf[3] = f.Index
	binary.BigEndian.PutUint32(buf[4:8], f.Length)
	copy(buf[frameHeaderSize:], f.Data)
	return buf, nil
}

// UnmarshalBinary decodes a frame. The magic is not checked here.
func (f *Frame) UnmarshalBinary(b []byte) error {
	if len(b) < frameHeaderSize {
		return fmt.Errorf("%w: frame of %d bytes has no header", ErrFrameLength, len(b))
	}
	f.Magic = int16(binary.BigEndian.Uint16(b[0:2]))
	f.Total = b[2]
	f.Index = b[3]
	f.Length = binary.BigEndian.Uint32(b[4:8])
	data := b[frameHeaderSize:]
	if uint64(len(data)) != uint64(f.Length) {
		return fmt.Errorf("%w: header %d, data %d", ErrFrameLength, f.Length, len(data))
	}
	f.Data = append([]byte(nil), data...)
	return nil
}

// Framer splits container payloads into QR frames.
type Framer struct {
	ChunkSize int
	Magic     int16
}

// DefaultFramer returns the framing Amnezia expects.
func DefaultFramer() Framer {
	return Framer{ChunkSize: DefaultChunkSize, Magic: DefaultQRMagic}
}

// ChunkCount returns how many frames Frame would emit for n payload bytes.
func (f Framer) ChunkCount(n int) int {
	if f.ChunkSize <= 0 {
		return 0
	}
	chunks := (n + f.ChunkSize - 1) / f.ChunkSize
	if chunks < 1 {
		chunks = 1
	}
	return chunks
}

// Frame splits payload into ChunkSize windows and returns each frame as
// URL-safe base64 without padding, in ascending index order.
func (f Framer) Frame(payload []byte) ([]string, error) {
	if f.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, f.ChunkSize)
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	total := f.ChunkCount(len(payload))
	if total > MaxChunks {
		return nil, &TooManyChunksError{Chunks: total, ChunkSize: f.ChunkSize}
	}

	tokens := make([]string, 0, total)
	for idx, start := 0, 0; start < len(payload); idx, start = idx+1, start+f.ChunkSize {
		end := start + f.ChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		part := payload[start:end]
		raw, err := Frame{
			Magic:  f.Magic,
			Total:  uint8(total),
			Index:  uint8(idx),
			Length: uint32(len(part)),
			Data:   part,
		}.MarshalBinary()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, encodeRawURL(raw))
	}
	return tokens, nil
}

// DecodeFrame decodes one QR token and checks its magic.
func (f Framer) DecodeFrame(token string) (Frame, error) {
	raw, err := decodeRawURL(token)
	if err != nil {
		return Frame{}, fmt.Errorf("decode QR token: %w", err)
	}
	var fr Frame
	if err := fr.UnmarshalBinary(raw); err != nil {
		return Frame{}, err
	}
	if fr.Magic != f.Magic {
		return Frame{}, fmt.Errorf("%w: got %d, want %d", ErrBadMagic, fr.Magic, f.Magic)
	}
	return fr, nil
}

// Reassemble orders frames by index and concatenates their data. Every index
// from 0 to Total-1 must be present exactly once.
func Reassemble(frames []Frame) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrIncompleteSequence)
	}
	sorted := make([]Frame, len(frames))
	copy(sorted, frames)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	total := sorted[0].Total
	if int(total) != len(sorted) {
		return nil, fmt.Errorf("%w: have %d of %d frames", ErrIncompleteSequence, len(sorted), total)
	}
	size := 0
	for i, fr := range sorted {
		if fr.Total != total {
			return nil, fmt.Errorf("%w: frame %d says total %d, want %d", ErrIncompleteSequence, fr.Index, fr.Total, total)
		}
		if int(fr.Index) != i {
			return nil, fmt.Errorf("%w: missing or duplicate index %d", ErrIncompleteSequence, i)
		}
		size += len(fr.Data)
	}

	out := make([]byte, 0, size)
	for _, fr := range sorted {
		out = append(out, fr.Data...)
	}
	return out, nil
}

// ReassembleTokens decodes QR tokens in any order and rebuilds the payload.
func (f Framer) ReassembleTokens(tokens []string) ([]byte, error) {
	frames := make([]Frame, 0, len(tokens))
	for i, tok := range tokens {
		fr, err := f.DecodeFrame(tok)
		if err != nil {
			return nil, fmt.Errorf("QR token %d: %w", i, err)
		}
		frames = append(frames, fr)
	}
	return Reassemble(frames)
}
