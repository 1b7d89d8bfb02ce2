package handle

import (
	"strings"

	"github.com/wippyai/particle-runtime/errors"
)

// Mode is the access the host granted on a handle.
type Mode uint8

const (
	ModeNone      Mode = 0
	ModeRead      Mode = 1 << 0
	ModeWrite     Mode = 1 << 1
	ModeReadWrite      = ModeRead | ModeWrite
)

// CanRead reports whether the host delivers data to the handle.
func (m Mode) CanRead() bool { return m&ModeRead != 0 }

// CanWrite reports whether particle writes reach the host.
func (m Mode) CanWrite() bool { return m&ModeWrite != 0 }

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModeReadWrite:
		return "readwrite"
	default:
		return "invalid"
	}
}

// ParseMode parses a mode name. Recipe-style direction names are accepted
// as aliases: "in", "out", "inout".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ModeNone, nil
	case "read", "in", "r":
		return ModeRead, nil
	case "write", "out", "w":
		return ModeWrite, nil
	case "readwrite", "inout", "rw":
		return ModeReadWrite, nil
	}
	return ModeNone, errors.InvalidInput(errors.PhaseConnect, "unknown handle mode "+s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so modes can be read
// from scenario manifests.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
