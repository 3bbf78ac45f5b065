// Package journal maintains the append-only per-package release transcript.
// Every command the pipeline runs is teed into the journal verbatim, and
// stage transitions are recorded as timestamped lines, so a release can be
// reconstructed after the fact without re-running anything.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/releasekit/releasekit/pkg/runctx"
)

// FileJournal appends to .releasekit/logs/<package>.log. It implements
// interfaces.Journal: raw Writes stream command output, Printf records one
// timestamped line. All writes are serialized.
type FileJournal struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Dir returns the journal directory for a project
func Dir(rc *runctx.RuntimeContext) string {
	return filepath.Join(rc.StateDir(), "logs")
}

// PathFor returns the journal location for a package
func PathFor(rc *runctx.RuntimeContext, packageName string) string {
	return filepath.Join(Dir(rc), packageName+".log")
}

// New opens (creating if needed) the journal for a package. The file is
// opened append-only so transcripts accumulate across runs.
func New(rc *runctx.RuntimeContext, packageName string) (*FileJournal, error) {
	dir := Dir(rc)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	path := PathFor(rc, packageName)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}

	return &FileJournal{path: path, file: file}, nil
}

// Write appends raw bytes, implementing io.Writer for command output tees
func (j *FileJournal) Write(p []byte) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return 0, os.ErrClosed
	}
	return j.file.Write(p)
}

// Printf appends one timestamped line. The stamp carries the date: the
// file accumulates across runs that can be days apart.
func (j *FileJournal) Printf(format string, args ...interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return
	}
	fmt.Fprintf(j.file, "[%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), fmt.Sprintf(format, args...))
}

// Path returns the journal file location
func (j *FileJournal) Path() string {
	return j.path
}

// Close flushes and closes the underlying file. Writes after Close are
// rejected with os.ErrClosed.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
