package siser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

var (
	// ErrTruncated is returned when the input ends in the middle of a frame
	ErrTruncated = errors.New("siser: truncated frame")
	// ErrBadHeader is returned when a frame header can't be parsed
	ErrBadHeader = errors.New("siser: invalid frame header")
)

var hdrPrefix = []byte("--- ")

// Reader reads frames written by Writer from a bufio.Reader
type Reader struct {
	r *bufio.Reader

	// must match Writer.NoTimestamp. If true, everything
	// after size in the header is the name
	NoTimestamp bool

	// Data / Name / Timestamp are available after ReadNextData.
	// They are over-written in next ReadNextData.
	Data      []byte
	Name      string
	Timestamp time.Time

	// position of the current frame within the reader.
	// We keep track of it so that callers can index frames
	// by offset and seek to it
	CurrRecordPos int64

	// position of the next frame within the reader.
	NextRecordPos int64

	err error

	// true if reached end of input exactly at a frame boundary
	done bool
}

// NewReader creates a new reader
func NewReader(r *bufio.Reader) *Reader {
	return &Reader{
		r: r,
	}
}

// Done returns true if we're finished reading from the reader
func (r *Reader) Done() bool {
	return r.err != nil || r.done
}

// Err returns error from last read. Clean end of input is not an error.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fail(err error, hdr []byte) bool {
	r.err = fmt.Errorf("%w at offset %d ('%s')", err, r.CurrRecordPos, bytes.TrimSpace(hdr))
	return false
}

// size comes from the header, which might be garbage, so we only
// pre-allocate small frames. Bigger ones grow as the data arrives
// and a short input fails before we allocate much.
const maxPreallocSize = 1024 * 1024

func (r *Reader) readData(size int64) error {
	if size > maxPreallocSize {
		var buf bytes.Buffer
		_, err := io.CopyN(&buf, r.r, size)
		r.Data = buf.Bytes()
		return err
	}
	// re-use r.Data as long as it doesn't grow too much
	if cap(r.Data) > maxPreallocSize {
		r.Data = nil
	}
	if size > int64(cap(r.Data)) {
		r.Data = make([]byte, size)
	} else {
		r.Data = r.Data[:size]
	}
	_, err := io.ReadFull(r.r, r.Data)
	return err
}

// ReadNextData reads the next frame. Returns false at end of input
// or on error; check Err() to tell them apart.
func (r *Reader) ReadNextData() bool {
	if r.Done() {
		return false
	}
	r.Name = ""
	r.Timestamp = zeroTime
	r.CurrRecordPos = r.NextRecordPos

	hdr, err := r.r.ReadBytes('\n')
	if err != nil {
		if err != io.EOF {
			r.err = err
			return false
		}
		if len(hdr) == 0 {
			r.done = true
			return false
		}
		// partial header line at the end of input
		return r.fail(ErrTruncated, hdr)
	}
	recSize := len(hdr)

	if !bytes.HasPrefix(hdr, hdrPrefix) {
		return r.fail(ErrBadHeader, hdr)
	}
	rest := hdr[len(hdrPrefix) : len(hdr)-1]

	var dataSize, timestamp, name []byte
	dataSize, rest, _ = bytes.Cut(rest, []byte{' '})
	if r.NoTimestamp {
		name = rest
	} else {
		timestamp, name, _ = bytes.Cut(rest, []byte{' '})
	}

	size, err := strconv.ParseInt(string(dataSize), 10, 64)
	if err != nil || size < 0 {
		return r.fail(ErrBadHeader, hdr)
	}
	if len(timestamp) > 0 {
		timeMs, err := strconv.ParseInt(string(timestamp), 10, 64)
		if err != nil {
			return r.fail(ErrBadHeader, hdr)
		}
		r.Timestamp = TimeFromUnixMillisecond(timeMs)
	}
	r.Name = string(name)

	if err = r.readData(size); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return r.fail(ErrTruncated, hdr)
		}
		r.err = err
		return false
	}
	recSize += len(r.Data)

	// same as needsNewline logic in MarshalLine
	if needsNewline(r.Data) {
		b, err := r.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return r.fail(ErrTruncated, hdr)
			}
			r.err = err
			return false
		}
		if b != '\n' {
			return r.fail(ErrBadHeader, hdr)
		}
		recSize++
	}
	r.NextRecordPos += int64(recSize)
	return true
}
