package filedump

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kjk/filedump/siser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardID(t *testing.T) {
	tests := []struct {
		index, capacity, exp int
	}{
		{0, 1, 0},
		{5, 1, 5},
		{0, 5, 0},
		{4, 5, 0},
		{5, 5, 1},
		{12, 5, 2},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.exp, ShardID(tc.index, tc.capacity), "ShardID(%d, %d)", tc.index, tc.capacity)
	}
}

func TestShardFileName(t *testing.T) {
	assert.Equal(t, "0", ShardFileName(0))
	assert.Equal(t, "17", ShardFileName(17))

	for _, name := range []string{"0", "1", "123"} {
		id, ok := ParseShardFileName(name)
		assert.True(t, ok, name)
		assert.Equal(t, name, ShardFileName(id))
	}
	for _, name := range []string{"", "007", "-1", "+1", "metadata", "1.tmp"} {
		_, ok := ParseShardFileName(name)
		assert.False(t, ok, name)
	}
}

func TestListShardsIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10", "2", "0", "metadata", "01", "metadata.tmp123"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "3"), 0755))
	assert.Equal(t, []int{0, 2, 10}, shardFiles(t, dir))
}

func TestRouterEnsure(t *testing.T) {
	dir := t.TempDir()
	r := newShardRouter(dir, 2)
	require.NoError(t, r.ensure(0))
	f := r.file
	require.NoError(t, r.ensure(1))
	assert.Same(t, f, r.file, "same shard keeps the handle")
	require.NoError(t, r.append([]byte("a"), false))
	require.NoError(t, r.append([]byte("b"), true))

	require.NoError(t, r.ensure(2))
	assert.Equal(t, 1, r.id)
	require.NoError(t, r.append([]byte("c"), false))
	assert.Equal(t, int64(len("--- 1\nc\n")), r.size)

	require.NoError(t, r.close())
	require.NoError(t, r.close())
	assert.Error(t, r.append([]byte("d"), false))

	// re-opening an existing shard appends at its end
	require.NoError(t, r.ensure(3))
	assert.Equal(t, int64(len("--- 1\nc\n")), r.size)
	require.NoError(t, r.close())
	assert.Equal(t, []int{0, 1}, shardFiles(t, dir))
}

// halfWriter writes half of the data and fails, like a write
// interrupted by a full disk
type halfWriter struct {
	f *os.File
}

var errDiskFull = errors.New("disk full")

func (w *halfWriter) Write(d []byte) (int, error) {
	n, err := w.f.Write(d[:len(d)/2])
	if err != nil {
		return n, err
	}
	return n, errDiskFull
}

func readShardFrames(t *testing.T, path string) []string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := siser.NewReader(bufio.NewReader(f))
	r.NoTimestamp = true
	var res []string
	for r.ReadNextData() {
		res = append(res, string(r.Data))
	}
	require.NoError(t, r.Err())
	return res
}

func TestRouterTruncatesFailedWrite(t *testing.T) {
	dir := t.TempDir()
	r := newShardRouter(dir, 10)
	defer r.close()
	require.NoError(t, r.ensure(0))
	require.NoError(t, r.append([]byte("first"), true))
	path := r.path(0)
	goodSize := fileSize(t, path)
	assert.Equal(t, goodSize, r.size)

	r.w.Reset(&halfWriter{f: r.file})
	err := r.append([]byte("this record is only half written"), true)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, goodSize, fileSize(t, path))
	assert.Equal(t, goodSize, r.size)

	r.w.Reset(r.file)
	require.NoError(t, r.append([]byte("second"), true))
	assert.Equal(t, []string{"first", "second"}, readShardFrames(t, path))
}
