package siser

import (
	"bytes"
	"io"
	"strconv"
	"time"
)

// Writer writes self-delimiting frames to an io.Writer.
// A frame is a header line "--- ${size} [${timestamp_ms}] [${name}]\n"
// followed by size bytes of data and, for readability, a '\n'
// if data doesn't already end with one.
type Writer struct {
	w io.Writer
	// NoTimestamp disables writing timestamp, which
	// makes serialized data not depend on when they were written
	NoTimestamp bool

	writeBuf bytes.Buffer
}

// NewWriter creates a writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w: w,
	}
}

// Reset makes the writer write to w, keeping the internal buffer
func (w *Writer) Reset(wr io.Writer) {
	w.w = wr
}

// Write writes a block of data with optional timestamp and name.
// Returns number of bytes written (length of d + length of header)
func (w *Writer) Write(d []byte, t time.Time, name string) (int, error) {
	// most writes should be small. if buffer gets big, don't keep it
	// around (unbounded cache is a mem leak)
	if w.writeBuf.Cap() > 100*1024 && len(d) < 50*1024 {
		w.writeBuf = bytes.Buffer{}
	}

	if w.NoTimestamp {
		t = zeroTime
	} else if t.IsZero() {
		t = time.Now()
	}

	d2 := MarshalLine(name, t, d, &w.writeBuf)
	return w.w.Write(d2)
}

// WriteData writes a frame with no name. Timestamp depends on NoTimestamp.
func (w *Writer) WriteData(d []byte) (int, error) {
	return w.Write(d, zeroTime, "")
}

func needsNewline(d []byte) bool {
	n := len(d)
	return n > 0 && d[n-1] != '\n'
}

// MarshalLine serializes d as a single frame.
// if t is time.Zero(), it's not marshalled
// if wb is given, the result is valid until the next use of wb
func MarshalLine(name string, t time.Time, d []byte, wb *bytes.Buffer) []byte {
	if wb == nil {
		wb = &bytes.Buffer{}
	} else {
		wb.Reset()
	}
	// it's ok to estimate more, estimating less will require an alloc
	wb.Grow(len(hdrPrefix) + len(name) + len(d) + 48)

	wb.Write(hdrPrefix)
	wb.WriteString(strconv.Itoa(len(d)))
	if !t.IsZero() {
		wb.WriteByte(' ')
		wb.WriteString(strconv.FormatInt(TimeToUnixMillisecond(t), 10))
	}
	if name != "" {
		wb.WriteByte(' ')
		wb.WriteString(name)
	}
	wb.WriteByte('\n')
	wb.Write(d)
	if needsNewline(d) {
		wb.WriteByte('\n')
	}
	return wb.Bytes()
}
