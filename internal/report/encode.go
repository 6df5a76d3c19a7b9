package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format is a payload encoding for machine sinks.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat accepts "json" or "msgpack", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatMsgpack {
		return "application/msgpack"
	}
	return "application/json"
}

// Encode serializes r in the given format.
func Encode(f Format, r *Report) ([]byte, error) {
	switch f {
	case FormatJSON:
		b, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return b, nil
	case FormatMsgpack:
		b, err := msgpack.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode msgpack: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", f)
	}
}

// Decode parses a payload produced by Encode.
func Decode(f Format, data []byte) (*Report, error) {
	var r Report
	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, &r)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &r)
	default:
		return nil, fmt.Errorf("unknown report format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	return &r, nil
}
