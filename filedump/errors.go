package filedump

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned by Open when capacity conflicts with
	// the presence (or absence) of the metadata file
	ErrConfiguration = errors.New("filedump: invalid configuration")
	// ErrRange is returned for an invalid [begin, end) range
	ErrRange = errors.New("filedump: invalid range")
	// ErrClosed is returned for operations on a closed store
	ErrClosed = errors.New("filedump: store is closed")
	// ErrDecode is matched by errors.Is for every *DecodeError
	ErrDecode = errors.New("filedump: decode failed")
)

// DecodeError is returned when a shard doesn't contain a valid record
// where metadata says there should be one, e.g. after a crash in the
// middle of an append.
type DecodeError struct {
	Shard int
	// logical index of the record
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("filedump: decoding record %d in shard %d: %v", e.Index, e.Shard, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
