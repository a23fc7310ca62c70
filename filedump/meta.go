package filedump

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/kjk/filedump/atomicfile"
)

// DefaultMetaFileName is the name of the metadata file if not set in Options
const DefaultMetaFileName = "metadata"

// size of the metadata file: capacity and count as big-endian uint64
const metaSize = 16

// State is the durable part of a store
type State struct {
	// number of records per shard, fixed at creation
	Capacity int
	// number of records stored
	Count int
}

// ShardCount returns number of shards that hold records
func (st State) ShardCount() int {
	if st.Count == 0 {
		return 0
	}
	return ShardID(st.Count-1, st.Capacity) + 1
}

// IsSealed returns true if shard id is full. Full shards never change.
func (st State) IsSealed(id int) bool {
	return (id+1)*st.Capacity <= st.Count
}

// ReadState reads metadata of the store in dir without opening it
func ReadState(dir string, metaFileName string) (State, error) {
	if metaFileName == "" {
		metaFileName = DefaultMetaFileName
	}
	m, err := loadMeta(filepath.Join(dir, metaFileName))
	if err != nil {
		return State{}, err
	}
	return m.state, nil
}

func (st State) marshal() []byte {
	d := make([]byte, metaSize)
	binary.BigEndian.PutUint64(d[0:8], uint64(st.Capacity))
	binary.BigEndian.PutUint64(d[8:16], uint64(st.Count))
	return d
}

func unmarshalState(d []byte) (State, error) {
	if len(d) != metaSize {
		return State{}, fmt.Errorf("%w: metadata is %d bytes, expected %d", ErrDecode, len(d), metaSize)
	}
	capacity := binary.BigEndian.Uint64(d[0:8])
	count := binary.BigEndian.Uint64(d[8:16])
	if capacity < 1 || capacity > math.MaxInt || count > math.MaxInt {
		return State{}, fmt.Errorf("%w: invalid metadata (capacity: %d, count: %d)", ErrDecode, capacity, count)
	}
	return State{Capacity: int(capacity), Count: int(count)}, nil
}

// metaFile owns State and mirrors it to the metadata file
type metaFile struct {
	path   string
	state  State
	closed bool
}

func metaExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// createMeta writes the metadata of an empty store
func createMeta(path string, capacity int) (*metaFile, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be >= 1, got %d", ErrConfiguration, capacity)
	}
	exists, err := metaExists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: metadata file '%s' already exists", ErrConfiguration, path)
	}
	m := &metaFile{
		path:  path,
		state: State{Capacity: capacity},
	}
	if err = m.write(); err != nil {
		return nil, err
	}
	return m, nil
}

func loadMeta(path string) (*metaFile, error) {
	d, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no metadata file '%s'", ErrConfiguration, path)
		}
		return nil, err
	}
	st, err := unmarshalState(d)
	if err != nil {
		return nil, fmt.Errorf("loading '%s': %w", path, err)
	}
	return &metaFile{
		path:  path,
		state: st,
	}, nil
}

func (m *metaFile) write() error {
	if err := atomicfile.WriteFile(m.path, m.state.marshal()); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// commit records count in memory and replaces the metadata file.
// In-memory count is updated even if writing fails because it must
// match what's in the shards. The next commit will persist it.
func (m *metaFile) commit(count int) error {
	if m.closed {
		return ErrClosed
	}
	m.state.Count = count
	return m.write()
}

func (m *metaFile) close() error {
	m.closed = true
	return nil
}
