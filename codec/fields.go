package codec

import (
	"github.com/kjk/filedump/siser"
)

// Fields stores a list of key / value pairs in human-readable
// siser format ("key: value\n")
type Fields struct{}

func (Fields) Encode(v []siser.Entry) ([]byte, error) {
	return siser.MarshalEntries(v)
}

func (Fields) Decode(d []byte) ([]siser.Entry, error) {
	return siser.UnmarshalEntries(d)
}

func (Fields) Name() string { return "fields" }

// RawFields stores []byte records in Fields format without decoding
// them into entries. Records are parsed and re-serialized, so a single
// "key: value" line without the final '\n' is accepted.
type RawFields struct{}

func (RawFields) Encode(v []byte) ([]byte, error) {
	if n := len(v); n > 0 && v[n-1] != '\n' {
		v = append(v[:n:n], '\n')
	}
	entries, err := siser.UnmarshalEntries(v)
	if err != nil {
		return nil, err
	}
	return siser.MarshalEntries(entries)
}

func (RawFields) Decode(d []byte) ([]byte, error) {
	if _, err := siser.UnmarshalEntries(d); err != nil {
		return nil, err
	}
	return append([]byte{}, d...), nil
}

func (RawFields) Name() string { return "fields" }
