package filedump

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kjk/filedump/log"
	"github.com/kjk/filedump/siser"
)

// Report describes how metadata compares with the content of shards
type Report struct {
	Capacity int
	// number of records according to metadata
	Count int
	// number of complete records found by scanning shards
	Found int
	// number of shard files
	Shards int
	// shard with incomplete or garbled frame at the end, -1 if none
	TornShard int
	// offset of the first bad frame in TornShard
	TornOffset int64
	// inconsistencies that Repair can't fix
	Problems []string
}

// OK returns true if metadata and shards agree
func (r *Report) OK() bool {
	return r.Count == r.Found && r.TornShard < 0 && len(r.Problems) == 0
}

func (r *Report) addProblem(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// countFrames returns number of valid frames at the start of a shard and,
// if the shard ends with a bad frame, its offset (-1 otherwise)
func countFrames(path string) (int, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, -1, err
	}
	defer f.Close()
	r := siser.NewReader(bufio.NewReader(f))
	r.NoTimestamp = true
	n := 0
	for r.ReadNextData() {
		n++
	}
	err = r.Err()
	if err == nil {
		return n, -1, nil
	}
	if errors.Is(err, siser.ErrTruncated) || errors.Is(err, siser.ErrBadHeader) {
		return n, r.CurrRecordPos, nil
	}
	return 0, -1, err
}

// Check scans shards of a store in dir and reports whether they agree
// with the metadata. It doesn't modify anything.
// It must not be called while the store is open for appending.
func Check(dir string, metaFileName string) (*Report, error) {
	if metaFileName == "" {
		metaFileName = DefaultMetaFileName
	}
	meta, err := loadMeta(filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, err
	}
	ids, err := listShards(dir)
	if err != nil {
		return nil, err
	}
	c := meta.state.Capacity
	res := &Report{
		Capacity:  c,
		Count:     meta.state.Count,
		Shards:    len(ids),
		TornShard: -1,
	}
	partial := -1
	for i, id := range ids {
		if id != i {
			res.addProblem("shard %d is missing", i)
			break
		}
		if partial >= 0 {
			res.addProblem("shard %d follows partially filled shard %d", id, partial)
			break
		}
		path := filepath.Join(dir, ShardFileName(id))
		n, tornAt, err := countFrames(path)
		if err != nil {
			return nil, err
		}
		if n > c {
			res.addProblem("shard %d has %d records, more than capacity %d", id, n, c)
			break
		}
		res.Found += n
		if tornAt >= 0 {
			res.TornShard = id
			res.TornOffset = tornAt
		}
		if n < c || tornAt >= 0 {
			partial = id
		}
	}
	return res, nil
}

// Repair makes metadata agree with shards: it truncates a bad frame at
// the end of the last shard and sets the count to the number of records
// found. Records past a missing or partially filled shard can't be
// recovered and Repair returns an error without changing anything.
func Repair(dir string, metaFileName string) (*Report, error) {
	res, err := Check(dir, metaFileName)
	if err != nil {
		return nil, err
	}
	if len(res.Problems) > 0 {
		return res, fmt.Errorf("can't repair '%s': %s", dir, res.Problems[0])
	}
	if res.OK() {
		return res, nil
	}
	if res.TornShard >= 0 {
		path := filepath.Join(dir, ShardFileName(res.TornShard))
		if err = os.Truncate(path, res.TornOffset); err != nil {
			return res, err
		}
		log.Verbosef("filedump: truncated '%s' to %d bytes\n", path, res.TornOffset)
	}
	if metaFileName == "" {
		metaFileName = DefaultMetaFileName
	}
	meta := &metaFile{
		path:  filepath.Join(dir, metaFileName),
		state: State{Capacity: res.Capacity},
	}
	if err = meta.commit(res.Found); err != nil {
		return res, err
	}
	log.Event("filedump.repair", "dir", dir, "count", res.Count, "found", res.Found, "torn", res.TornShard)
	res.Count = res.Found
	res.TornShard = -1
	res.TornOffset = 0
	return res, nil
}
