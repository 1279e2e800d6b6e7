package share

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
)

// DefaultCompressionLevel matches what the Amnezia client writes itself.
const DefaultCompressionLevel = 8

const lengthPrefixSize = 4

// Compress wraps data in the Qt qCompress layout: the big-endian uncompressed
// length followed by a zlib stream.
func Compress(data []byte, level int) ([]byte, error) {
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if uint64(len(data)) > math.MaxUint32 {
		return nil, fmt.Errorf("payload of %d bytes exceeds container limit", len(data))
	}

	var buf bytes.Buffer
	buf.Grow(lengthPrefixSize + len(data)/2)
	var prefix [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	buf.Write(prefix[:])

	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("create zlib writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flush zlib stream: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress and checks the inflated size against the
// length prefix.
func Decompress(payload []byte) ([]byte, error) {
	if len(payload) < lengthPrefixSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedPayload, len(payload))
	}
	want := binary.BigEndian.Uint32(payload[:lengthPrefixSize])
	body := payload[lengthPrefixSize:]
	if want == 0 && len(body) == 0 {
		// qCompress of an empty buffer is a bare zero prefix.
		return []byte{}, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open zlib stream: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(out) != int(want) {
		return nil, &LengthMismatchError{Want: want, Got: len(out)}
	}
	return out, nil
}
