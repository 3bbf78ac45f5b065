package journal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// TailLines returns the last n lines of the journal at path
func TailLines(path string, n int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	allLines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(allLines) == 1 && allLines[0] == "" {
		return "", nil
	}

	start := 0
	if len(allLines) > n {
		start = len(allLines) - n
	}

	return strings.Join(allLines[start:], "\n") + "\n", nil
}

// Follow streams bytes appended to the journal at path into out until ctx
// is canceled. The file's current contents are skipped; callers wanting
// history should print TailLines first. A truncated journal is re-read
// from the beginning.
func Follow(ctx context.Context, path string, out io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek journal: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory rather than the file so rotation does not
	// silently drop the watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch journal directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path || event.Op&fsnotify.Write != fsnotify.Write {
				continue
			}

			offset, err = drain(file, offset, out)
			if err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("journal watch failed: %w", err)
		}
	}
}

// drain copies bytes between offset and EOF to out and returns the new
// offset, rewinding when the file shrank underneath us
func drain(file *os.File, offset int64, out io.Writer) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("failed to stat journal: %w", err)
	}

	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return offset, nil
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("failed to seek journal: %w", err)
	}

	copied, err := io.Copy(out, file)
	if err != nil {
		return offset, fmt.Errorf("failed to stream journal: %w", err)
	}

	return offset + copied, nil
}
