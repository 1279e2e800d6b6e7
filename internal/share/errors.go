package share

import (
	"errors"
	"fmt"
)

// Build-side errors.
var (
	// ErrInvalidClientID is returned for a blank or malformed client UUID.
	ErrInvalidClientID = errors.New("invalid client id")
	// ErrInvalidPort is returned for a server port outside 1-65535.
	ErrInvalidPort = errors.New("server port out of range")
	// ErrInvalidLevel is returned for a zlib level outside 0-9.
	ErrInvalidLevel = errors.New("compression level must be between 0 and 9")
	// ErrInvalidChunkSize is returned for a QR chunk size below 1.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	// ErrEmptyPayload is returned when framing zero bytes.
	ErrEmptyPayload = errors.New("cannot frame an empty payload")
	// ErrTooManyChunks matches every *TooManyChunksError.
	ErrTooManyChunks = errors.New("too many QR chunks")
)

// Decode-side errors.
var (
	// ErrTruncatedPayload is returned for a container without its length prefix.
	ErrTruncatedPayload = errors.New("payload shorter than length prefix")
	// ErrLengthMismatch matches every *LengthMismatchError.
	ErrLengthMismatch = errors.New("decompressed length mismatch")
	// ErrMissingScheme is returned for a link without the vpn:// prefix.
	ErrMissingScheme = errors.New("share link must start with " + Scheme)
	// ErrBadMagic is returned for a QR frame with a foreign magic number.
	ErrBadMagic = errors.New("bad QR frame magic")
	// ErrFrameLength is returned when a frame header disagrees with its data.
	ErrFrameLength = errors.New("QR frame length does not match data")
	// ErrIncompleteSequence is returned for missing, duplicate or mixed frames.
	ErrIncompleteSequence = errors.New("incomplete QR frame sequence")
)

// TooManyChunksError carries the computed frame count so callers can retry
// with a larger chunk size.
type TooManyChunksError struct {
	Chunks    int
	ChunkSize int
}

func (e *TooManyChunksError) Error() string {
	return fmt.Sprintf("too many QR chunks (%d); increase chunk size from %d", e.Chunks, e.ChunkSize)
}

func (e *TooManyChunksError) Is(target error) bool { return target == ErrTooManyChunks }

// LengthMismatchError reports a container whose prefix disagrees with the
// inflated body.
type LengthMismatchError struct {
	Want uint32
	Got  int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("decompressed length mismatch: prefix says %d, got %d", e.Want, e.Got)
}

func (e *LengthMismatchError) Is(target error) bool { return target == ErrLengthMismatch }
