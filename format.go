package dieselshare

import (
	"fmt"
	"strings"
)

// Format is the pixel format tag carried by a shared surface.
type Format uint32

const (
	FormatNone Format = iota
	FormatRGBA8
	FormatDepth32
)

func (f Format) String() string {
	switch f {
	case FormatNone:
		return "none"
	case FormatRGBA8:
		return "rgba8"
	case FormatDepth32:
		return "depth32"
	}
	return fmt.Sprintf("format(%d)", uint32(f))
}

// Valid reports whether f names a shareable format.
func (f Format) Valid() bool {
	return f == FormatRGBA8 || f == FormatDepth32
}

func (f Format) IsDepth() bool {
	return f == FormatDepth32
}

// ParseFormat accepts the names produced by String, case insensitive.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rgba8", "rgba":
		return FormatRGBA8, nil
	case "depth32", "depth", "d32":
		return FormatDepth32, nil
	case "none", "":
		return FormatNone, nil
	}
	return FormatNone, fmt.Errorf("%w: %q", ErrBadFormat, s)
}
