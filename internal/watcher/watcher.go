// Package watcher re-runs build stages when source files change.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/sitesmith/internal/logging"
)

// SourceWatcher reports batches of changed source files. Changes arriving
// within the debounce window are merged and deduplicated by path.
type SourceWatcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   logging.Logger
}

// NewSourceWatcher creates a watcher. Folders are added with AddTree.
func NewSourceWatcher(debounce time.Duration, logger logging.Logger) (*SourceWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if debounce <= 0 {
		debounce = time.Millisecond
	}
	return &SourceWatcher{
		fs:       w,
		debounce: debounce,
		logger:   logger.WithComponent("watcher"),
	}, nil
}

// AddTree watches root and every folder below it.
func (w *SourceWatcher) AddTree(root string) error {
	root = filepath.Clean(root)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignoredName(path) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// Run delivers batches to onBatch until ctx is cancelled. onBatch is called
// from the Run goroutine, one batch at a time. The watcher is closed when Run
// returns.
func (w *SourceWatcher) Run(ctx context.Context, onBatch func(paths []string)) error {
	defer w.fs.Close()

	var (
		batch batcher
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.accept(ctx, event) {
				continue
			}
			batch.add(event.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, err, "File watcher error")
		case <-fire:
			fire = nil
			if paths := batch.flush(); len(paths) > 0 {
				onBatch(paths)
			}
		}
	}
}

// Close stops a watcher whose Run was never started.
func (w *SourceWatcher) Close() error {
	return w.fs.Close()
}

// accept reports whether event names a source file change. New folders are
// watched on the fly so files created inside them are seen.
func (w *SourceWatcher) accept(ctx context.Context, event fsnotify.Event) bool {
	if !relevant(event.Op) || ignoredName(event.Name) {
		return false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Removed or renamed away; the stage still has to run.
		return true
	}
	if !info.IsDir() {
		return true
	}
	if event.Op.Has(fsnotify.Create) {
		if err := w.AddTree(event.Name); err != nil {
			w.logger.Warn(ctx, err, "Failed to watch new folder", "path", event.Name)
		}
	}
	return false
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) ||
		op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}

// ignoredName skips dot files and editor backups.
func ignoredName(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") || strings.HasPrefix(base, "#")
}

// batcher collects changed paths between flushes.
type batcher struct {
	pending map[string]struct{}
}

func (b *batcher) add(path string) {
	if b.pending == nil {
		b.pending = make(map[string]struct{})
	}
	b.pending[path] = struct{}{}
}

// flush returns the collected paths sorted and starts a new batch.
func (b *batcher) flush() []string {
	if len(b.pending) == 0 {
		return nil
	}
	paths := make([]string, 0, len(b.pending))
	for p := range b.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	b.pending = nil
	return paths
}
