// Package codec turns records into bytes and back.
//
// A filedump store frames every encoded record itself, so a Codec
// doesn't need to produce self-delimiting output.
// Changing the codec of an existing store makes old records undecodable.
package codec

import (
	"fmt"
	"strings"
)

// Codec encodes/decodes values of type T.
// Implementations must be safe for concurrent use.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(d []byte) (T, error)
	Name() string
}

// Bytes stores []byte records as-is
type Bytes struct{}

func (Bytes) Encode(v []byte) ([]byte, error) { return v, nil }

// Decode returns a copy because the store re-uses read buffers
func (Bytes) Decode(d []byte) ([]byte, error) {
	return append([]byte{}, d...), nil
}

func (Bytes) Name() string { return "bytes" }

// String stores string records as-is
type String struct{}

func (String) Encode(v string) ([]byte, error) { return []byte(v), nil }
func (String) Decode(d []byte) (string, error) { return string(d), nil }
func (String) Name() string                    { return "string" }

// ByName returns a []byte codec by its name: "bytes", "json" or "fields".
// A name can be suffixed with a compression, e.g. "json+zstd".
// Used by tools that move records without knowing their type.
func ByName(name string) (Codec[[]byte], error) {
	base, comp, _ := strings.Cut(name, "+")
	var c Codec[[]byte]
	switch base {
	case "bytes":
		c = Bytes{}
	case "json":
		c = RawJSON{}
	case "fields":
		c = RawFields{}
	default:
		return nil, fmt.Errorf("unknown codec '%s'", base)
	}
	switch comp {
	case "":
		return c, nil
	case "gzip":
		return Gzip(c), nil
	case "zstd":
		return Zstd(c), nil
	case "br", "brotli":
		return Brotli(c), nil
	}
	return nil, fmt.Errorf("unknown compression '%s'", comp)
}
