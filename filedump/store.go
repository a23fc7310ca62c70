package filedump

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kjk/filedump/codec"
	"github.com/kjk/filedump/log"
)

// Options configures Open
type Options[T any] struct {
	// Capacity is the number of records per shard.
	// Must be set when creating a new store and must be 0
	// when opening an existing one (it's read from metadata).
	Capacity int
	// MetaFileName is the name of metadata file inside the store
	// directory. DefaultMetaFileName if empty.
	MetaFileName string
	// Codec encodes records. Can be omitted if T is []byte or string.
	Codec codec.Codec[T]
	// if true, we don't fsync shard after every append.
	// Metadata is always written durably.
	NoSync bool
}

// Store is an append-only sequence of records sharded
// into files with Capacity records each.
// It's not safe for concurrent use by multiple goroutines.
type Store[T any] struct {
	dir    string
	codec  codec.Codec[T]
	noSync bool

	// durable state
	meta *metaFile
	// transient state
	router *shardRouter

	closed bool
}

func defaultCodec[T any]() codec.Codec[T] {
	var v any
	var zero T
	switch any(zero).(type) {
	case []byte:
		v = codec.Bytes{}
	case string:
		v = codec.String{}
	default:
		return nil
	}
	return v.(codec.Codec[T])
}

// Open opens the store in dir or creates it if there's no metadata file.
// The directory is created if it doesn't exist.
func Open[T any](dir string, opts *Options[T]) (*Store[T], error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: directory is not set. For current directory, use '.'", ErrConfiguration)
	}
	if opts == nil {
		opts = &Options[T]{}
	}
	c := opts.Codec
	if c == nil {
		c = defaultCodec[T]()
		if c == nil {
			var zero T
			return nil, fmt.Errorf("%w: must provide Codec for records of type %T", ErrConfiguration, zero)
		}
	}
	metaName := opts.MetaFileName
	if metaName == "" {
		metaName = DefaultMetaFileName
	}
	if _, isShard := ParseShardFileName(metaName); isShard || filepath.Base(metaName) != metaName {
		return nil, fmt.Errorf("%w: invalid metadata file name '%s'", ErrConfiguration, metaName)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	metaPath := filepath.Join(dir, metaName)
	exists, err := metaExists(metaPath)
	if err != nil {
		return nil, err
	}

	var meta *metaFile
	if exists {
		if opts.Capacity != 0 {
			return nil, fmt.Errorf("%w: metadata file found, cannot set capacity to %d", ErrConfiguration, opts.Capacity)
		}
		meta, err = loadMeta(metaPath)
	} else {
		if opts.Capacity == 0 {
			return nil, fmt.Errorf("%w: no metadata file found, capacity must be set", ErrConfiguration)
		}
		meta, err = createMeta(metaPath, opts.Capacity)
	}
	if err != nil {
		return nil, err
	}

	st := meta.state
	log.Verbosef("filedump: opened '%s', capacity: %d, count: %d, codec: %s\n", dir, st.Capacity, st.Count, c.Name())
	log.Event("filedump.open", "dir", dir, "capacity", st.Capacity, "count", st.Count, "created", !exists)
	return &Store[T]{
		dir:    dir,
		codec:  c,
		noSync: opts.NoSync,
		meta:   meta,
		router: newShardRouter(dir, st.Capacity),
	}, nil
}

// With opens the store, calls fn and closes the store even if fn fails or panics
func With[T any](dir string, opts *Options[T], fn func(*Store[T]) error) (err error) {
	s, err := Open(dir, opts)
	if err != nil {
		return err
	}
	defer func() {
		errClose := s.Close()
		if err == nil {
			err = errClose
		}
	}()
	return fn(s)
}

// Append encodes v and appends it as the record at index Len()
func (s *Store[T]) Append(v T) error {
	if s.closed {
		return ErrClosed
	}
	d, err := s.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encoding record with %s: %w", s.codec.Name(), err)
	}
	count := s.meta.state.Count
	if err = s.router.ensure(count); err != nil {
		return err
	}
	if err = s.router.append(d, !s.noSync); err != nil {
		return err
	}
	return s.meta.commit(count + 1)
}

// Len returns number of records in the store
func (s *Store[T]) Len() int {
	return s.meta.state.Count
}

// Capacity returns number of records per shard
func (s *Store[T]) Capacity() int {
	return s.meta.state.Capacity
}

// State returns a copy of the durable state
func (s *Store[T]) State() State {
	return s.meta.state
}

// Dir returns the store directory
func (s *Store[T]) Dir() string {
	return s.dir
}

// ShardCount returns number of shard files that hold records
func (s *Store[T]) ShardCount() int {
	return s.meta.state.ShardCount()
}

// Close closes the metadata and shard files.
// Iterators returned by Read keep working after Close.
// Calling Close more than once is a no-op.
func (s *Store[T]) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	err1 := s.router.close()
	err2 := s.meta.close()
	if err1 != nil {
		return err1
	}
	return err2
}
