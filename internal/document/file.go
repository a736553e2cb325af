package document

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileDocument is a Buffer mirrored to a file on disk. Writes made by an
// external editor are picked up by Watch and surfaced as change events.
// Apply replaces the file atomically while holding the buffer lock and
// Reload reads under the same lock, so the echo of an own write always
// matches memory and is dropped.
type FileDocument struct {
	*Buffer
	abs string
}

// OpenFile loads path into a FileDocument. An empty languageID is derived
// from the file extension.
func OpenFile(path, languageID string) (*FileDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read document: %w", err)
	}

	if languageID == "" {
		languageID = LanguageFromPath(abs)
	}

	buf := NewBuffer("file://"+abs, languageID, string(data))
	buf.path = abs
	buf.persist = func(text string) error {
		return writeFile(abs, text)
	}

	return &FileDocument{Buffer: buf, abs: abs}, nil
}

// Watch follows external writes to the file until ctx is cancelled. The
// parent directory is watched so editors that save by rename are covered.
func (d *FileDocument) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(d.abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(d.abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != d.abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			d.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; keep following the file.
			slog.Warn("document watcher error", "path", d.abs, "error", err)
		}
	}
}

// Reload re-reads the file and emits a change if it differs from memory.
func (d *FileDocument) Reload() {
	err := d.reload(func() (string, error) {
		data, err := os.ReadFile(d.abs)
		return string(data), err
	})
	if err != nil {
		slog.Warn("reload document", "path", d.abs, "error", err)
	}
}

// writeFile replaces path through a temporary file in the same directory
// so readers never see a truncated document.
func writeFile(path, text string) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
