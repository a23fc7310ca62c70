package log

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// dailyFile appends to a file named after the current UTC day
// (dir/2006-01-02.txt), switching files when the day changes.
// Methods are safe on a nil receiver, which discards writes.
type dailyFile struct {
	dir string

	mu  sync.Mutex
	day string
	f   *os.File
}

func newDailyFile(dir string) *dailyFile {
	return &dailyFile{dir: dir}
}

// must hold w.mu
func (w *dailyFile) ensureOpen(now time.Time) error {
	day := now.UTC().Format("2006-01-02")
	if w.f != nil && w.day == day {
		return nil
	}
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(w.dir, day+".txt")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	w.f = f
	w.day = day
	return nil
}

func (w *dailyFile) write(d []byte) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureOpen(time.Now()); err != nil {
		return err
	}
	_, err := w.f.Write(d)
	return err
}

func (w *dailyFile) closeLocked() error {
	if w.f == nil {
		return nil
	}
	errSync := w.f.Sync()
	err := w.f.Close()
	w.f = nil
	w.day = ""
	if errSync != nil {
		return errSync
	}
	return err
}

func (w *dailyFile) close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}
