package filedump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/kjk/filedump/codec"
	"github.com/kjk/filedump/siser"
)

// rangeReader reads records [begin, end) from shards in dir.
// It doesn't share any state with the Store it was created from.
type rangeReader[T any] struct {
	dir      string
	capacity int
	codec    codec.Codec[T]
	begin    int
	end      int
}

// Read returns an iterator over records with index begin <= i < end.
//
// The range is validated up front. Errors that happen while reading
// (I/O errors, *DecodeError) are yielded once as the last element.
// The iterator can be used many times, each iteration opens its own
// shard files, one at a time.
func (s *Store[T]) Read(begin, end int) (iter.Seq2[T, error], error) {
	if s.closed {
		return nil, ErrClosed
	}
	if end <= begin || begin < 0 || end < 0 {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrRange, begin, end)
	}
	if n := s.meta.state.Count; end > n {
		return nil, fmt.Errorf("%w: end %d > number of records %d", ErrRange, end, n)
	}
	// we read shards with separate handles, never via the one used for appending
	if err := s.router.close(); err != nil {
		return nil, err
	}
	rr := &rangeReader[T]{
		dir:      s.dir,
		capacity: s.meta.state.Capacity,
		codec:    s.codec,
		begin:    begin,
		end:      end,
	}
	return rr.all, nil
}

// ReadAll returns records with index begin <= i < end
func (s *Store[T]) ReadAll(begin, end int) ([]T, error) {
	seq, err := s.Read(begin, end)
	if err != nil {
		return nil, err
	}
	res := make([]T, 0, end-begin)
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

// All returns an iterator over all records. It's empty for an empty store.
func (s *Store[T]) All() iter.Seq2[T, error] {
	var seq iter.Seq2[T, error]
	var err error
	if s.closed {
		err = ErrClosed
	} else if n := s.meta.state.Count; n > 0 {
		seq, err = s.Read(0, n)
	}
	if err != nil {
		return func(yield func(T, error) bool) {
			var zero T
			yield(zero, err)
		}
	}
	if seq == nil {
		return func(yield func(T, error) bool) {}
	}
	return seq
}

func (rr *rangeReader[T]) all(yield func(T, error) bool) {
	c := rr.capacity
	shard := ShardID(rr.begin, c)
	// shard ShardID(end, c) has no records in range if end is a multiple
	// of capacity, so we stop before opening it
	for pos := shard * c; pos < rr.end; pos += c {
		if !rr.readShard(shard, pos, yield) {
			return
		}
		shard++
	}
}

// readShard decodes records of a shard starting at logical index start.
// Returns false if iteration should stop.
func (rr *rangeReader[T]) readShard(shard int, start int, yield func(T, error) bool) bool {
	var zero T
	f, err := os.Open(filepath.Join(rr.dir, ShardFileName(shard)))
	if err != nil {
		yield(zero, fmt.Errorf("opening shard %d: %w", shard, err))
		return false
	}
	defer f.Close()

	r := siser.NewReader(bufio.NewReader(f))
	r.NoTimestamp = true
	stop := min(start+rr.capacity, rr.end)
	for i := start; i < stop; i++ {
		if !r.ReadNextData() {
			yield(zero, frameError(shard, i, r.Err()))
			return false
		}
		if i < rr.begin {
			continue
		}
		v, err := rr.codec.Decode(r.Data)
		if err != nil {
			yield(zero, &DecodeError{Shard: shard, Index: i, Err: err})
			return false
		}
		if !yield(v, nil) {
			return false
		}
	}
	return true
}

func frameError(shard int, index int, err error) error {
	switch {
	case err == nil:
		// metadata claims more records than the shard has
		err = io.ErrUnexpectedEOF
	case errors.Is(err, siser.ErrTruncated), errors.Is(err, siser.ErrBadHeader):
	default:
		return fmt.Errorf("reading shard %d: %w", shard, err)
	}
	return &DecodeError{Shard: shard, Index: index, Err: err}
}
