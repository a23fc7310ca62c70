package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kjk/filedump/filedump"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestCreateAppendCat(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	out, err := runCmd(t, "", "create", "-dir", dir, "-capacity", "2")
	require.NoError(t, err)
	assert.Equal(t, "created '"+dir+"' with capacity 2\n", out)

	_, err = runCmd(t, "", "create", "-dir", dir, "-capacity", "2")
	assert.ErrorIs(t, err, filedump.ErrConfiguration)

	_, err = runCmd(t, "a\nbb\nccc\n", "append", "-dir", dir)
	require.NoError(t, err)
	_, err = runCmd(t, "dddd\n", "append", "-dir", dir, "-nosync")
	require.NoError(t, err)

	out, err = runCmd(t, "", "cat", "-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "a\nbb\nccc\ndddd\n", out)

	out, err = runCmd(t, "", "cat", "-dir", dir, "-begin", "1", "-end", "3")
	require.NoError(t, err)
	assert.Equal(t, "bb\nccc\n", out)

	_, err = runCmd(t, "", "cat", "-dir", dir, "-begin", "3", "-end", "9")
	assert.ErrorIs(t, err, filedump.ErrRange)
}

func TestAppendFromCompressedFile(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte("one\ntwo\nthree\n"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	in := filepath.Join(t.TempDir(), "lines.gz")
	require.NoError(t, os.WriteFile(in, buf.Bytes(), 0644))

	dir := t.TempDir()
	_, err = runCmd(t, "", "create", "-dir", dir, "-capacity", "2")
	require.NoError(t, err)
	_, err = runCmd(t, "ignored\n", "append", "-dir", dir, "-in", in)
	require.NoError(t, err)
	out, err := runCmd(t, "", "cat", "-dir", dir, "-begin", "2")
	require.NoError(t, err)
	assert.Equal(t, "three\n", out)
}

func TestCatEmpty(t *testing.T) {
	dir := t.TempDir()
	_, err := runCmd(t, "", "create", "-dir", dir, "-capacity", "3")
	require.NoError(t, err)
	out, err := runCmd(t, "", "cat", "-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestCompressedCodec(t *testing.T) {
	dir := t.TempDir()
	_, err := runCmd(t, "", "create", "-dir", dir, "-capacity", "10", "-codec", "bytes+zstd")
	require.NoError(t, err)
	_, err = runCmd(t, "hello\nworld\n", "append", "-dir", dir, "-codec", "bytes+zstd")
	require.NoError(t, err)
	out, err := runCmd(t, "", "cat", "-dir", dir, "-codec", "bytes+zstd")
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", out)

	// without a codec we get compressed bytes
	out, err = runCmd(t, "", "cat", "-dir", dir)
	require.NoError(t, err)
	assert.NotEqual(t, "hello\nworld\n", out)

	_, err = runCmd(t, "", "append", "-dir", dir, "-codec", "bytes+lz4")
	assert.Error(t, err)
}

func TestValidatingCodecs(t *testing.T) {
	dir := t.TempDir()
	_, err := runCmd(t, "", "create", "-dir", dir, "-capacity", "10")
	require.NoError(t, err)
	_, err = runCmd(t, "{\"a\": 1}\n[1, 2]\n", "append", "-dir", dir, "-codec", "json")
	require.NoError(t, err)
	_, err = runCmd(t, "not json\n", "append", "-dir", dir, "-codec", "json")
	assert.Error(t, err)
	_, err = runCmd(t, "k: v\n", "append", "-dir", dir, "-codec", "fields")
	require.NoError(t, err)
	_, err = runCmd(t, "no separator\n", "append", "-dir", dir, "-codec", "fields")
	assert.Error(t, err)

	out, err := runCmd(t, "", "cat", "-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n[1,2]\nk: v\n", out)

	// a record that isn't json fails to decode
	_, err = runCmd(t, "", "cat", "-dir", dir, "-codec", "json")
	assert.ErrorIs(t, err, filedump.ErrDecode)
}

func TestMinioConfigFromEnv(t *testing.T) {
	t.Setenv("MINIO_BUCKET", "backups")
	t.Setenv("MINIO_INSECURE", "1")
	var trace bytes.Buffer
	c := minioConfigFromEnv(&trace)
	assert.Equal(t, "backups", c.Bucket)
	assert.True(t, c.Insecure)
	assert.Same(t, &trace, c.RequestTrace)
	assert.Nil(t, minioConfigFromEnv(nil).RequestTrace)
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	_, err := runCmd(t, "", "create", "-dir", dir, "-capacity", "2", "-meta", "meta.bin")
	require.NoError(t, err)
	_, err = runCmd(t, "1\n2\n3\n", "append", "-dir", dir, "-meta", "meta.bin")
	require.NoError(t, err)

	out, err := runCmd(t, "", "stat", "-dir", dir, "-meta", "meta.bin")
	require.NoError(t, err)
	var si statInfo
	require.NoError(t, json.Unmarshal([]byte(out), &si))
	assert.Equal(t, statInfo{Dir: dir, Capacity: 2, Count: 3, Shards: 2}, si)

	_, err = runCmd(t, "", "stat", "-dir", dir)
	assert.ErrorIs(t, err, filedump.ErrConfiguration)
}

func TestCheckRepair(t *testing.T) {
	dir := t.TempDir()
	_, err := runCmd(t, "", "create", "-dir", dir, "-capacity", "2")
	require.NoError(t, err)
	_, err = runCmd(t, "x\ny\nz\n", "append", "-dir", dir)
	require.NoError(t, err)

	out, err := runCmd(t, "", "check", "-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `"Found": 3`)

	// simulate a crash after a record was written but before metadata commit
	f, err := os.OpenFile(filepath.Join(dir, filedump.ShardFileName(1)), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("--- 1\nw\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = runCmd(t, "", "check", "-dir", dir)
	assert.ErrorIs(t, err, errCheckFailed)

	_, err = runCmd(t, "", "repair", "-dir", dir)
	require.NoError(t, err)
	out, err = runCmd(t, "", "cat", "-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "x\ny\nz\nw\n", out)
}

func TestBadArgs(t *testing.T) {
	_, err := runCmd(t, "")
	assert.Error(t, err)
	_, err = runCmd(t, "", "frobnicate")
	assert.Error(t, err)
	_, err = runCmd(t, "", "cat")
	assert.Error(t, err)
	_, err = runCmd(t, "", "create", "-dir", t.TempDir())
	assert.Error(t, err)
	_, err = runCmd(t, "", "backup", "-dir", t.TempDir())
	assert.Error(t, err)
}
