package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kjk/filedump/codec"
	"github.com/kjk/filedump/filedump"
	"github.com/kjk/filedump/log"
	"github.com/kjk/filedump/minioutil"
	"github.com/kjk/filedump/u"
	"github.com/tidwall/pretty"
)

const usage = `usage: filedump <command> [flags]

commands:
  create   create a new store
  append   append lines from stdin or a file, one record per line
  cat      print records in [begin, end)
  stat     print metadata
  check    compare metadata with shards
  repair   make metadata agree with shards
  backup   upload store to s3-compatible storage
  restore  download store from s3-compatible storage

run 'filedump <command> -h' to see flags of a command
`

type cmdFlags struct {
	fs       *flag.FlagSet
	dir      string
	metaName string
	codec    string
	verbose  bool
	logDir   string
}

func newFlags(name string, out io.Writer) *cmdFlags {
	f := &cmdFlags{
		fs: flag.NewFlagSet(name, flag.ContinueOnError),
	}
	f.fs.SetOutput(out)
	f.fs.StringVar(&f.dir, "dir", "", "store directory")
	f.fs.StringVar(&f.metaName, "meta", filedump.DefaultMetaFileName, "name of metadata file")
	f.fs.StringVar(&f.codec, "codec", "bytes", "record codec: 'bytes', 'json' or 'fields', optionally compressed e.g. 'json+zstd'")
	f.fs.BoolVar(&f.verbose, "v", false, "verbose logging")
	f.fs.StringVar(&f.logDir, "logdir", "", "if set, write logs and events to this directory")
	return f
}

func (f *cmdFlags) parse(args []string) error {
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	if f.dir == "" {
		return fmt.Errorf("-dir is required")
	}
	log.Verbose = f.verbose
	if f.logDir != "" {
		log.Init(&log.Config{Dir: f.logDir, Verbose: f.verbose})
	}
	return nil
}

func (f *cmdFlags) options(capacity int) (*filedump.Options[[]byte], error) {
	c, err := codec.ByName(f.codec)
	if err != nil {
		return nil, err
	}
	return &filedump.Options[[]byte]{
		Capacity:     capacity,
		MetaFileName: f.metaName,
		Codec:        c,
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	d, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(d))
	return err
}

func cmdCreate(args []string, stdout io.Writer) error {
	f := newFlags("create", stdout)
	capacity := f.fs.Int("capacity", 0, "records per shard")
	if err := f.parse(args); err != nil {
		return err
	}
	if *capacity < 1 {
		return fmt.Errorf("-capacity must be >= 1")
	}
	opts, err := f.options(*capacity)
	if err != nil {
		return err
	}
	return filedump.With(f.dir, opts, func(s *filedump.Store[[]byte]) error {
		_, err := fmt.Fprintf(stdout, "created '%s' with capacity %d\n", s.Dir(), s.Capacity())
		return err
	})
}

func cmdAppend(args []string, stdin io.Reader, stdout io.Writer) error {
	f := newFlags("append", stdout)
	noSync := f.fs.Bool("nosync", false, "don't fsync after every record")
	in := f.fs.String("in", "", "read lines from this file instead of stdin, can be compressed")
	if err := f.parse(args); err != nil {
		return err
	}
	if *in != "" {
		rc, err := u.OpenFileMaybeCompressed(*in)
		if err != nil {
			return err
		}
		defer rc.Close()
		stdin = rc
	}
	opts, err := f.options(0)
	if err != nil {
		return err
	}
	opts.NoSync = *noSync
	return filedump.With(f.dir, opts, func(s *filedump.Store[[]byte]) error {
		scanner := bufio.NewScanner(stdin)
		scanner.Buffer(nil, 16*1024*1024)
		n := 0
		for scanner.Scan() {
			if err := s.Append(scanner.Bytes()); err != nil {
				return err
			}
			n++
		}
		log.Verbosef("appended %d records, total: %d\n", n, s.Len())
		return scanner.Err()
	})
}

func cmdCat(args []string, stdout io.Writer) error {
	f := newFlags("cat", stdout)
	begin := f.fs.Int("begin", 0, "index of first record")
	end := f.fs.Int("end", -1, "index past the last record, defaults to number of records")
	if err := f.parse(args); err != nil {
		return err
	}
	opts, err := f.options(0)
	if err != nil {
		return err
	}
	return filedump.With(f.dir, opts, func(s *filedump.Store[[]byte]) error {
		e := *end
		if e < 0 {
			e = s.Len()
		}
		if e == *begin && e == s.Len() {
			// nothing to print, not an error
			return nil
		}
		seq, err := s.Read(*begin, e)
		if err != nil {
			return err
		}
		w := bufio.NewWriter(stdout)
		for rec, err := range seq {
			if err != nil {
				return err
			}
			w.Write(rec)
			if len(rec) == 0 || rec[len(rec)-1] != '\n' {
				w.WriteByte('\n')
			}
		}
		return w.Flush()
	})
}

type statInfo struct {
	Dir      string `json:"dir"`
	Capacity int    `json:"capacity"`
	Count    int    `json:"count"`
	Shards   int    `json:"shards"`
}

func cmdStat(args []string, stdout io.Writer) error {
	f := newFlags("stat", stdout)
	if err := f.parse(args); err != nil {
		return err
	}
	st, err := filedump.ReadState(f.dir, f.metaName)
	if err != nil {
		return err
	}
	return writeJSON(stdout, statInfo{
		Dir:      f.dir,
		Capacity: st.Capacity,
		Count:    st.Count,
		Shards:   st.ShardCount(),
	})
}

var errCheckFailed = errors.New("metadata doesn't agree with shards")

func cmdCheck(args []string, stdout io.Writer, repair bool) error {
	name := "check"
	if repair {
		name = "repair"
	}
	f := newFlags(name, stdout)
	if err := f.parse(args); err != nil {
		return err
	}
	fn := filedump.Check
	if repair {
		fn = filedump.Repair
	}
	res, err := fn(f.dir, f.metaName)
	if res != nil {
		if errJSON := writeJSON(stdout, res); errJSON != nil {
			return errJSON
		}
	}
	if err != nil {
		return err
	}
	if !res.OK() {
		return errCheckFailed
	}
	return nil
}

func minioConfigFromEnv(trace io.Writer) *minioutil.Config {
	return &minioutil.Config{
		Access:       os.Getenv("MINIO_ACCESS"),
		Secret:       os.Getenv("MINIO_SECRET"),
		Bucket:       os.Getenv("MINIO_BUCKET"),
		Endpoint:     os.Getenv("MINIO_ENDPOINT"),
		Region:       os.Getenv("MINIO_REGION"),
		Insecure:     os.Getenv("MINIO_INSECURE") == "1",
		RequestTrace: trace,
	}
}

func cmdBackup(args []string, stdout io.Writer, restore bool) error {
	name := "backup"
	if restore {
		name = "restore"
	}
	f := newFlags(name, stdout)
	remote := f.fs.String("remote", "", "remote directory (object prefix)")
	compress := f.fs.Bool("compress", false, "compress uploads with brotli")
	trace := f.fs.Bool("trace", false, "print http requests to the object storage")
	if err := f.parse(args); err != nil {
		return err
	}
	if *remote == "" {
		return fmt.Errorf("-remote is required")
	}
	ctx := context.Background()
	var traceWriter io.Writer
	if *trace {
		traceWriter = stdout
	}
	c, err := minioutil.New(ctx, minioConfigFromEnv(traceWriter))
	if err != nil {
		return err
	}
	opts := &minioutil.BackupOptions{
		MetaFileName: f.metaName,
		Compress:     *compress,
	}
	if restore {
		files, err := c.RestoreStore(ctx, *remote, f.dir, opts)
		fmt.Fprintf(stdout, "restored %d files to '%s'\n", len(files), f.dir)
		return err
	}
	res, err := c.BackupStore(ctx, f.dir, *remote, opts)
	if res != nil {
		fmt.Fprintf(stdout, "uploaded %d files, skipped %d\n", len(res.Uploaded), len(res.Skipped))
	}
	return err
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return flag.ErrHelp
	}
	cmd, rest := args[0], args[1:]
	switch strings.ToLower(cmd) {
	case "create":
		return cmdCreate(rest, stdout)
	case "append":
		return cmdAppend(rest, stdin, stdout)
	case "cat":
		return cmdCat(rest, stdout)
	case "stat":
		return cmdStat(rest, stdout)
	case "check":
		return cmdCheck(rest, stdout, false)
	case "repair":
		return cmdCheck(rest, stdout, true)
	case "backup":
		return cmdBackup(rest, stdout, false)
	case "restore":
		return cmdBackup(rest, stdout, true)
	}
	fmt.Fprint(stdout, usage)
	return fmt.Errorf("unknown command '%s'", cmd)
}

func main() {
	err := run(os.Args[1:], os.Stdin, os.Stdout)
	log.Close()
	if err == nil {
		return
	}
	if !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
	}
	os.Exit(1)
}
