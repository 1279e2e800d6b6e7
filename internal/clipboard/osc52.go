// Package clipboard copies share links to the terminal clipboard with an
// OSC-52 escape sequence.
package clipboard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aymanbagabas/go-osc52/v2"
)

// MaxPayload is the largest base64 body terminals reliably accept.
const MaxPayload = 120000

// ErrPayloadTooLarge is returned when text would exceed MaxPayload once
// base64-encoded.
var ErrPayloadTooLarge = errors.New("clipboard payload exceeds OSC-52 limits")

// Options selects the multiplexer wrapping of the sequence.
type Options struct {
	Tmux   bool
	Screen bool
}

// OptionsFromEnv wraps for tmux or screen when running inside one.
func OptionsFromEnv() Options {
	return Options{
		Tmux:   os.Getenv("TMUX") != "",
		Screen: os.Getenv("STY") != "",
	}
}

// Sequence returns the OSC-52 sequence that sets the system clipboard to text.
func Sequence(text string, opts Options) (string, error) {
	if n := base64.StdEncoding.EncodedLen(len(text)); n > MaxPayload {
		return "", fmt.Errorf("%w: %d base64 characters, limit %d", ErrPayloadTooLarge, n, MaxPayload)
	}
	seq := osc52.New(text)
	switch {
	case opts.Tmux:
		seq = seq.Tmux()
	case opts.Screen:
		seq = seq.Screen()
	}
	return seq.String(), nil
}

// Write sends the clipboard sequence for text to w.
func Write(w io.Writer, text string, opts Options) error {
	seq, err := Sequence(text, opts)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, seq); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}
	return nil
}

// WriteTTY writes the sequence straight to the controlling terminal so it
// is not captured when stdout is redirected.
func WriteTTY(text string, opts Options) error {
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}
	defer tty.Close()
	return Write(tty, text, opts)
}
