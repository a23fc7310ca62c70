package filedump

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/kjk/filedump/log"
	"github.com/kjk/filedump/siser"
)

// ShardID returns id of the shard that holds record at logical index
func ShardID(index int, capacity int) int {
	return index / capacity
}

// ShardFileName returns name of the file for shard id.
// It's the id as a decimal number: "0", "1", ...
func ShardFileName(id int) string {
	return strconv.Itoa(id)
}

// ParseShardFileName is the inverse of ShardFileName.
// Returns false for names that ShardFileName wouldn't produce
func ParseShardFileName(name string) (int, bool) {
	id, err := strconv.Atoi(name)
	if err != nil || id < 0 || ShardFileName(id) != name {
		return 0, false
	}
	return id, true
}

// listShards returns sorted ids of shard files in dir
func listShards(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if id, ok := ParseShardFileName(e.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// shardRouter manages the file handle of the shard we append to.
// It switches to a new file when the shard id of the next record changes.
type shardRouter struct {
	dir      string
	capacity int

	// valid if file != nil
	id   int
	file *os.File
	// size of the file, we truncate to it if a write fails
	size int64
	w    *siser.Writer
}

func newShardRouter(dir string, capacity int) *shardRouter {
	w := siser.NewWriter(nil)
	w.NoTimestamp = true
	return &shardRouter{
		dir:      dir,
		capacity: capacity,
		w:        w,
	}
}

func (r *shardRouter) path(id int) string {
	return filepath.Join(r.dir, ShardFileName(id))
}

// ensure opens the shard for record number count if it's not already open
func (r *shardRouter) ensure(count int) error {
	id := ShardID(count, r.capacity)
	if r.file != nil && r.id == id {
		return nil
	}
	if err := r.close(); err != nil {
		return err
	}
	path := r.path(id)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.id = id
	r.file = f
	r.size = st.Size()
	r.w.Reset(f)
	log.Verbosef("filedump: opened shard '%s' for append at offset %d\n", path, r.size)
	return nil
}

// append writes d as a single frame to the active shard.
// If the write fails we truncate partially written frame so that
// the shard stays a sequence of valid frames.
func (r *shardRouter) append(d []byte, sync bool) error {
	if r.file == nil {
		return fmt.Errorf("no active shard")
	}
	n, err := r.w.WriteData(d)
	if err == nil && sync {
		err = r.file.Sync()
	}
	if err != nil {
		errTrunc := r.file.Truncate(r.size)
		log.IfErrf(errTrunc, "filedump: truncating shard %d to %d failed with '%s'\n", r.id, r.size, errTrunc)
		return fmt.Errorf("appending to shard %d: %w", r.id, err)
	}
	r.size += int64(n)
	return nil
}

// close closes the active shard, if any. Safe to call multiple times.
func (r *shardRouter) close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.w.Reset(nil)
	return err
}
