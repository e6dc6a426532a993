// Package watcher discovers new video files dropped into a directory tree.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

type fileState struct {
	size    int64
	modTime time.Time
}

// Watcher polls a directory tree for video files. A file is reported once,
// after two consecutive scans have seen it with the same size and
// modification time, so files still being copied are not picked up early.
type Watcher struct {
	root     string
	interval time.Duration
	exts     map[string]bool
	logger   *slog.Logger

	seen    map[string]bool
	pending map[string]fileState
}

const defaultInterval = 5 * time.Second

// New creates a Watcher for root. Extensions are matched case-insensitively
// and default to .mp4.
func New(root string, interval time.Duration, logger *slog.Logger, exts ...string) *Watcher {
	if interval <= 0 {
		interval = defaultInterval
	}
	if len(exts) == 0 {
		exts = []string{".mp4"}
	}
	w := &Watcher{
		root:     root,
		interval: interval,
		exts:     make(map[string]bool, len(exts)),
		logger:   logger,
		seen:     make(map[string]bool),
		pending:  make(map[string]fileState),
	}
	for _, ext := range exts {
		w.exts[strings.ToLower(ext)] = true
	}
	return w
}

// Scan walks the tree once and returns the files that became ready since
// the previous scan, in lexical order.
func (w *Watcher) Scan() ([]string, error) {
	var ready []string
	current := make(map[string]bool)

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !w.exts[strings.ToLower(filepath.Ext(path))] || w.seen[path] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			// Removed between listing and stat.
			return nil
		}

		current[path] = true
		state := fileState{size: info.Size(), modTime: info.ModTime()}
		if prev, ok := w.pending[path]; ok && prev == state {
			delete(w.pending, path)
			w.seen[path] = true
			ready = append(ready, path)
			return nil
		}
		w.pending[path] = state
		return nil
	})

	for path := range w.pending {
		if !current[path] {
			delete(w.pending, path)
		}
	}
	return ready, err
}

// Watch marks the files already present as seen, then scans every interval
// until ctx is done, sending each newly ready file on the returned channel.
// The channel is closed when watching stops.
func (w *Watcher) Watch(ctx context.Context) (<-chan string, error) {
	if err := w.markExisting(); err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			ready, err := w.Scan()
			if err != nil {
				w.logger.Warn("scan failed", "dir", w.root, "error", err)
			}
			for _, path := range ready {
				select {
				case out <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (w *Watcher) markExisting() error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && w.exts[strings.ToLower(filepath.Ext(path))] {
			w.seen[path] = true
		}
		return nil
	})
}
