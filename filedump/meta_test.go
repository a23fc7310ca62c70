package filedump

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMarshal(t *testing.T) {
	st := State{Capacity: 5, Count: 12}
	d := st.marshal()
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 5, 0, 0, 0, 0, 0, 0, 0, 12}, d)
	got, err := unmarshalState(d)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestUnmarshalStateErrors(t *testing.T) {
	bad := [][]byte{
		nil,
		make([]byte, 15),
		make([]byte, 17),
		// capacity 0
		make([]byte, 16),
		// count doesn't fit in int
		{0, 0, 0, 0, 0, 0, 0, 1, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}
	for _, d := range bad {
		_, err := unmarshalState(d)
		assert.ErrorIs(t, err, ErrDecode, "d: %v", d)
	}
}

func TestCreateAndLoadMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta")
	_, err := loadMeta(path)
	assert.ErrorIs(t, err, ErrConfiguration)

	m, err := createMeta(path, 3)
	require.NoError(t, err)
	assert.Equal(t, State{Capacity: 3}, m.state)

	_, err = createMeta(path, 3)
	assert.ErrorIs(t, err, ErrConfiguration)

	require.NoError(t, m.commit(1))
	require.NoError(t, m.commit(2))
	m2, err := loadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, State{Capacity: 3, Count: 2}, m2.state)

	d, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, d, metaSize, "commit over-writes the file")

	require.NoError(t, m.close())
	assert.ErrorIs(t, m.commit(3), ErrClosed)
}

func TestCreateMetaInvalidCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta")
	_, err := createMeta(path, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenCorruptMeta(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultMetaFileName), []byte("junk"), 0644))
	_, err := Open[string](dir, nil)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestStateShards(t *testing.T) {
	st := State{Capacity: 5, Count: 12}
	assert.Equal(t, 3, st.ShardCount())
	assert.True(t, st.IsSealed(0))
	assert.True(t, st.IsSealed(1))
	assert.False(t, st.IsSealed(2))

	st = State{Capacity: 5, Count: 10}
	assert.Equal(t, 2, st.ShardCount())
	assert.True(t, st.IsSealed(1))
	assert.Equal(t, 0, State{Capacity: 5}.ShardCount())
}

func TestReadState(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadState(dir, "")
	assert.ErrorIs(t, err, ErrConfiguration)

	s, err := Open(dir, &Options[string]{Capacity: 4})
	require.NoError(t, err)
	require.NoError(t, s.Append("a"))
	require.NoError(t, s.Close())
	st, err := ReadState(dir, "")
	require.NoError(t, err)
	assert.Equal(t, State{Capacity: 4, Count: 1}, st)
}
