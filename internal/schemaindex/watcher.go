/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package schemaindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pgedge-nla/internal/logging"
	"pgedge-nla/internal/schemadocs"
)

// DefaultDebounce coalesces bursts of file events into one reindex
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-indexes when schema documentation changes on disk
type Watcher struct {
	watcher  *fsnotify.Watcher
	index    *Index
	root     string
	isDir    bool
	debounce time.Duration
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Watch starts watching the index's docs path. Editors often replace
// files on save, so a single file is watched through its directory.
func (ix *Index) Watch(ctx context.Context) (*Watcher, error) {
	if ix.opts.DocsPath == "" {
		return nil, fmt.Errorf("no docs path to watch")
	}

	info, err := os.Stat(ix.opts.DocsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", ix.opts.DocsPath, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		index:    ix,
		root:     filepath.Clean(ix.opts.DocsPath),
		isDir:    info.IsDir(),
		debounce: ix.opts.Debounce,
		done:     make(chan struct{}),
	}

	dirs := []string{filepath.Dir(w.root)}
	if w.isDir {
		dirs, err = subdirectories(w.root)
		if err != nil {
			fw.Close()
			return nil, err
		}
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	w.wg.Add(1)
	go w.run(ctx)
	logging.Info("schema_docs_watch_started", "path", w.root, "directories", len(dirs))
	return w, nil
}

// Stop stops watching and waits for the event loop to exit
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	stopTimer := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}
	defer stopTimer()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if w.isDir && event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(event.Name) //nolint:errcheck // best effort for new subdirectories
				}
			}

			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() { w.reindex(ctx) })
			timerMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("schema_docs_watch_error", "path", w.root, "error", err)

		case <-ctx.Done():
			return

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	if !w.isDir {
		return name == w.root
	}
	return schemadocs.IsSupported(name) || event.Has(fsnotify.Create)
}

func (w *Watcher) reindex(ctx context.Context) {
	select {
	case <-w.done:
		return
	default:
	}

	n, err := w.index.Reindex(ctx)
	if err != nil {
		logging.Error("schema_docs_reindex_failed", "path", w.root, "error", err)
		return
	}
	logging.Info("schema_docs_reindexed", "path", w.root, "entries", n)
}

func subdirectories(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return dirs, nil
}
