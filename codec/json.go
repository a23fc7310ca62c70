package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/toon-format/toon-go"
)

// JSON encodes records with encoding/json
type JSON[T any] struct{}

func (JSON[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON[T]) Decode(d []byte) (T, error) {
	var v T
	err := json.Unmarshal(d, &v)
	return v, err
}

func (JSON[T]) Name() string { return "json" }

// Toon encodes records in toon format, which is more compact
// than JSON for records with repeated structure
type Toon[T any] struct{}

func (Toon[T]) Encode(v T) ([]byte, error) {
	return toon.Marshal(v)
}

func (Toon[T]) Decode(d []byte) (T, error) {
	var v T
	err := toon.Unmarshal(d, &v)
	return v, err
}

func (Toon[T]) Name() string { return "toon" }

var errInvalidJSON = errors.New("invalid json")

// RawJSON stores []byte records that must be valid JSON.
// Records are compacted before storing.
type RawJSON struct{}

func (RawJSON) Encode(v []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidJSON, err)
	}
	return buf.Bytes(), nil
}

func (RawJSON) Decode(d []byte) ([]byte, error) {
	if !json.Valid(d) {
		return nil, errInvalidJSON
	}
	return append([]byte{}, d...), nil
}

func (RawJSON) Name() string { return "json" }
