package siser

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

/*
Serialize/Deserialize array of key/value pairs in a format that is easy
to serialize/parse and human-readable.

The basic format is line-oriented: "key: value\n"

When value is long (> 120 chars) or has \n in it, we serialize it as:
key:+$len\n
value\n
*/

// Entry is a single key / value pair
type Entry struct {
	Key   string
	Value string
}

var zeroTime time.Time

// return true if value needs to be serialized in long,
// size-prefixed format
func needsLongFormat(s string) bool {
	return len(s) == 0 || len(s) > 120 || !serializableOnLine(s)
}

func appendKeyVal(buf *bytes.Buffer, key, val string) {
	buf.WriteString(key)
	if !needsLongFormat(val) {
		buf.WriteString(": ")
		buf.WriteString(val)
		buf.WriteByte('\n')
		return
	}
	buf.WriteString(":+")
	buf.WriteString(strconv.Itoa(len(val)))
	buf.WriteByte('\n')
	buf.WriteString(val)
	// ensure the next key always starts on a new line
	if len(val) > 0 && val[len(val)-1] != '\n' {
		buf.WriteByte('\n')
	}
}

// MarshalEntries serializes key / value pairs.
// Keys can't be empty or contain ':' or '\n'.
func MarshalEntries(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("empty key")
		}
		if bytes.ContainsAny([]byte(e.Key), ":\n") {
			return nil, fmt.Errorf("key '%s' contains ':' or newline", e.Key)
		}
		appendKeyVal(&buf, e.Key, e.Value)
	}
	return buf.Bytes(), nil
}

// UnmarshalEntries decodes data created by MarshalEntries
func UnmarshalEntries(d []byte) ([]Entry, error) {
	var res []Entry
	for len(d) > 0 {
		idx := bytes.IndexByte(d, '\n')
		if idx == -1 {
			return nil, fmt.Errorf("missing '\\n' at the end of '%s'", d)
		}
		line := d[:idx]
		d = d[idx+1:]
		key, val, ok := bytes.Cut(line, []byte{':'})
		// at this point val must be at least one character (' ' or '+')
		if !ok || len(val) < 1 {
			return nil, fmt.Errorf("line in unrecognized format: '%s'", line)
		}
		kind := val[0]
		val = val[1:]
		if kind == ' ' {
			res = append(res, Entry{Key: string(key), Value: string(val)})
			continue
		}
		if kind != '+' {
			return nil, fmt.Errorf("line in unrecognized format: '%s'", line)
		}

		n, err := strconv.Atoi(string(val))
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative length %d of data", n)
		}
		if n > len(d) {
			return nil, fmt.Errorf("length of value %d greater than remaining data of size %d", n, len(d))
		}
		val = d[:n]
		d = d[n:]
		// encoder might put optional newline
		if len(d) > 0 && d[0] == '\n' {
			d = d[1:]
		}
		res = append(res, Entry{Key: string(key), Value: string(val)})
	}
	return res, nil
}
