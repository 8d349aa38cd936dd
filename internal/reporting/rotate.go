package reporting

import (
	"fmt"
	"os"
	"sync"
)

// rotatingWriter is a size-based rotating io.Writer for debug.log_file: once
// the current file reaches maxSize bytes, it is renamed to a numbered
// backup and a fresh file opened in its place, keeping at most backups
// rotated files (oldest dropped). No ready-made rotation library ships in
// the example pack (see DESIGN.md), so this wraps plain os.File size
// checks rather than leaving debug.log_max_size/log_backup unimplemented.
type rotatingWriter struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	backups int
	file    *os.File
	size    int64
}

func newRotatingWriter(path string, maxSize int64, backups int) (*rotatingWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &rotatingWriter{path: path, maxSize: maxSize, backups: backups, file: f, size: info.Size()}, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxSize > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) rotateLocked() error {
	if err := w.file.Close(); err != nil {
		return err
	}

	if w.backups > 0 {
		oldest := fmt.Sprintf("%s.%d", w.path, w.backups)
		os.Remove(oldest)
		for i := w.backups - 1; i >= 1; i-- {
			src := fmt.Sprintf("%s.%d", w.path, i)
			dst := fmt.Sprintf("%s.%d", w.path, i+1)
			os.Rename(src, dst)
		}
		os.Rename(w.path, fmt.Sprintf("%s.1", w.path))
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.size = 0
	return nil
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
