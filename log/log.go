package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kjk/filedump/siser"
	"github.com/kjk/filedump/u"

	"github.com/toon-format/toon-go"
)

var (
	// nil until Init
	logFile    *dailyFile
	errorsFile *dailyFile
	eventsFile *dailyFile
	muFiles    sync.RWMutex

	// if true, Verbosef() will log messages
	Verbose bool

	// where Logf() echoes messages, os.Stdout by default
	Output io.Writer = os.Stdout
)

type Config struct {
	// each log kind (regular, errors, events) goes to its own
	// subdirectory of Dir, one file per day
	Dir     string
	Verbose bool
}

// Init starts writing logs to files in config.Dir.
// Without Init, messages only go to Output and events are dropped.
func Init(config *Config) {
	muFiles.Lock()
	defer muFiles.Unlock()
	Verbose = config.Verbose
	logFile = newDailyFile(filepath.Join(config.Dir, "log"))
	errorsFile = newDailyFile(filepath.Join(config.Dir, "errors"))
	eventsFile = newDailyFile(filepath.Join(config.Dir, "events"))
}

// Close flushes and closes log files. Logging after Close works
// as if Init was never called.
func Close() {
	muFiles.Lock()
	defer muFiles.Unlock()
	for _, f := range []**dailyFile{&logFile, &errorsFile, &eventsFile} {
		(*f).close()
		*f = nil
	}
}

// errors writing to log files are ignored, there's nowhere to report them
func writeTo(f **dailyFile, d []byte) {
	muFiles.RLock()
	w := *f
	muFiles.RUnlock()
	_ = w.write(d)
}

func sprintf(format string, args []any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Logf writes a message to Output and, after Init, to the log file
func Logf(format string, args ...any) {
	s := sprintf(format, args)
	if Output != nil {
		io.WriteString(Output, s)
	}
	writeTo(&logFile, []byte(s))
}

func Verbosef(format string, args ...any) {
	if Verbose {
		Logf(format, args...)
	}
}

// callstack returns "file:line" of callers, one per line
func callstack(skip int) string {
	var pcs [32]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	var lines []string
	for {
		fr, more := frames.Next()
		lines = append(lines, fr.File+":"+strconv.Itoa(fr.Line))
		if !more {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// Errorf logs a message followed by the callstack of the caller.
// It also goes to the errors log.
func Errorf(format string, args ...any) {
	s := sprintf(format, args)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	s += callstack(1) + "\n"
	Logf("%s", s)
	writeTo(&errorsFile, []byte(s))
}

// IfErrf logs with Errorf and returns true if err is not nil.
// Without args it logs err, otherwise args[0] is a format string.
func IfErrf(err error, args ...any) bool {
	if err == nil {
		return false
	}
	if len(args) == 0 {
		Errorf("%s", err)
		return true
	}
	Errorf("%s", sprintf(fmt.Sprint(args[0]), args[1:]))
	return true
}

// MarshalEvent serializes an event as a siser frame named name,
// with key / value pairs encoded as toon. Keys must be strings.
func MarshalEvent(name string, t time.Time, vals ...any) []byte {
	n := len(vals)
	u.PanicIf(n%2 != 0, "odd number of values (%d) for event '%s'", n, name)
	var d []byte
	if n > 0 {
		m := make(map[string]any, n/2)
		for i := 0; i < n; i += 2 {
			k, ok := vals[i].(string)
			u.PanicIf(!ok, "key %d of event '%s' is %T, not string", i/2, name, vals[i])
			m[k] = vals[i+1]
		}
		d, _ = toon.Marshal(m)
	}
	return siser.MarshalLine(name, t, d, nil)
}

// Event records an event in the events log. It's a no-op until Init.
func Event(name string, vals ...any) {
	muFiles.RLock()
	enabled := eventsFile != nil
	muFiles.RUnlock()
	if !enabled {
		return
	}
	writeTo(&eventsFile, MarshalEvent(name, time.Now().UTC(), vals...))
}

// EventWithDuration is Event with an extra "durmicro" value
func EventWithDuration(name string, dur time.Duration, vals ...any) {
	Event(name, append(vals, "durmicro", dur.Microseconds())...)
}
