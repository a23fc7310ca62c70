// Package filedump stores a sequence of records in a directory, sharded
// into files with a fixed number of records each.
//
// # Store Structure
//
// A store directory contains:
//   - a metadata file (default: "metadata") with the number of records
//     per shard (capacity) and the number of stored records, as two
//     big-endian uint64 values. It's re-written after every append.
//   - shard files named "0", "1", ... Shard k holds records with index
//     k*capacity <= i < (k+1)*capacity, each encoded with a codec and
//     written as a siser frame: "--- ${len}\n${data}" followed by '\n'
//     if data doesn't end with one.
//
// Shard files are created when the first record for them is appended,
// so an empty store has no shard files.
//
// # Basic Usage
//
//	s, err := filedump.Open[string]("./data", &filedump.Options[string]{Capacity: 1000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	err = s.Append("record 1")
//
//	seq, err := s.Read(0, s.Len())
//	for rec, err := range seq {
//	    // ...
//	}
//
// When re-opening a store, Capacity must be 0 because it's read from
// the metadata file.
//
// # Crash Safety
//
// Append writes the record, fsyncs the shard and only then replaces
// the metadata file. A crash between the two leaves metadata with a count
// lower than the number of records in shards. Check and Repair re-derive
// the count from shards; Open never does that on its own.
//
// # Thread Safety
//
// A Store is meant for a single writer and has no locking.
// Iterators returned by Read use their own file handles and can be
// used concurrently with each other.
package filedump
