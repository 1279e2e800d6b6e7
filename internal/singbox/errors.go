package singbox

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when the document is not a sing-box config.
	ErrInvalidConfig = errors.New("invalid sing-box config")
	// ErrNoMatchingInbound means the config has no VLESS inbound at all.
	ErrNoMatchingInbound = errors.New("no VLESS inbound found in config")
	// ErrMissingPort is returned for an absent or non-numeric listen_port.
	ErrMissingPort = errors.New("inbound listen_port is missing or not numeric")
	// ErrMissingField matches every *MissingFieldError.
	ErrMissingField = errors.New("missing field")
)

// MissingFieldError names the dotted path of a required inbound field.
type MissingFieldError struct {
	Path string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field: %s", e.Path)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// PortRangeError reports a listen_port that parsed but cannot be dialed.
type PortRangeError struct {
	Port int
}

func (e *PortRangeError) Error() string {
	return fmt.Sprintf("listen_port %d out of range %d-%d", e.Port, MinPort, MaxPort)
}
