package u

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContent = "line 1\nline 2\nline 3\n"

func writeTestFile(t *testing.T, name string, d []byte) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, d, 0644))
	return path
}

func TestReadFileMaybeCompressed(t *testing.T) {
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write([]byte(testContent))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	zw, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zd := zw.EncodeAll([]byte(testContent), nil)
	zw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, err = bw.Write([]byte(testContent))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	tests := []struct {
		name string
		d    []byte
		comp string
	}{
		{"plain.txt", []byte(testContent), ""},
		// name doesn't matter for formats with magic bytes
		{"lines.dat", gz.Bytes(), "gzip"},
		{"lines.zst", zd, "zstd"},
		{"lines.txt.br", br.Bytes(), "brotli"},
		{"empty.txt", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTestFile(t, tc.name, tc.d)
			assert.Equal(t, tc.comp, Compression(tc.d, path))
			got, err := ReadFileMaybeCompressed(path)
			require.NoError(t, err)
			if tc.d == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, testContent, string(got))
		})
	}
}

func TestOpenFileMaybeCompressedBadGzip(t *testing.T) {
	path := writeTestFile(t, "bad.gz", []byte{0x1f, 0x8b})
	_, err := OpenFileMaybeCompressed(path)
	assert.Error(t, err)

	_, err = OpenFileMaybeCompressed(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestPanicIf(t *testing.T) {
	assert.NotPanics(t, func() { PanicIf(false, "nope") })
	assert.PanicsWithValue(t, "condition failed", func() { PanicIf(true) })
	assert.PanicsWithValue(t, "bad value 3", func() { PanicIf(true, "bad value %d", 3) })
	assert.NotPanics(t, func() { PanicIfErr(nil) })
	assert.Panics(t, func() { PanicIfErr(os.ErrNotExist, "opening %s", "foo") })
}
