package u

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicBzip2 = []byte("BZh")
)

// io.Closer goes to os.File, io.Reader goes to decompressing reader
type readerWrappedFile struct {
	f     *os.File
	r     io.Reader
	close func()
}

func (rc *readerWrappedFile) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

func (rc *readerWrappedFile) Close() error {
	if rc.close != nil {
		rc.close()
	}
	return rc.f.Close()
}

// Compression returns compression of data that starts with hdr, based on
// magic bytes. Brotli has no magic so we fall back to file extension.
// Returns "" for uncompressed data.
func Compression(hdr []byte, path string) string {
	switch {
	case bytes.HasPrefix(hdr, magicGzip):
		return "gzip"
	case bytes.HasPrefix(hdr, magicZstd):
		return "zstd"
	case bytes.HasPrefix(hdr, magicBzip2):
		return "bzip2"
	}
	if strings.ToLower(filepath.Ext(path)) == ".br" {
		return "brotli"
	}
	return ""
}

// OpenFileMaybeCompressed opens a file that might be compressed with gzip,
// zstd, bzip2 or brotli and returns a reader of uncompressed data
func OpenFileMaybeCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	// error is io.EOF for short files, in which case hdr is what we have
	hdr, _ := br.Peek(4)
	rc := &readerWrappedFile{f: f, r: br}
	switch Compression(hdr, path) {
	case "gzip":
		zr, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, err
		}
		rc.r = zr
	case "zstd":
		zr, err := zstd.NewReader(br)
		if err != nil {
			f.Close()
			return nil, err
		}
		rc.r = zr
		rc.close = zr.Close
	case "bzip2":
		rc.r = bzip2.NewReader(br)
	case "brotli":
		rc.r = brotli.NewReader(br)
	}
	return rc, nil
}

// ReadFileMaybeCompressed reads a file, decompressing it if needed
func ReadFileMaybeCompressed(path string) ([]byte, error) {
	r, err := OpenFileMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
