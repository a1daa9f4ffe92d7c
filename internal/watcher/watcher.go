// Package watcher reports files created under a set of directory trees.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceTime is how long events are collected before handling.
const DefaultDebounceTime = 200 * time.Millisecond

// Watcher watches directory trees and calls a handler once for each new
// regular file, after events for it have settled.
type Watcher struct {
	roots    []string
	onCreate func(path string)

	includeHidden bool
	skipDir       func(name string) bool

	// debounce holds pending file events to batch process
	debounce     map[string]fsnotify.Op
	debounceMu   sync.Mutex
	debounceTime time.Duration

	onReady func()
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounceTime sets the debounce duration for batching events.
func WithDebounceTime(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceTime = d
	}
}

// WithIncludeHidden also watches hidden files and directories.
func WithIncludeHidden(include bool) Option {
	return func(w *Watcher) {
		w.includeHidden = include
	}
}

// WithSkipDir sets a predicate for directory names that are not watched.
func WithSkipDir(fn func(name string) bool) Option {
	return func(w *Watcher) {
		w.skipDir = fn
	}
}

// WithReadyCallback sets a function called once every directory is watched.
func WithReadyCallback(fn func()) Option {
	return func(w *Watcher) {
		w.onReady = fn
	}
}

// New creates a new file watcher over roots. onCreate is called from the
// watcher's goroutine with the absolute path of each created file.
func New(roots []string, onCreate func(path string), opts ...Option) (*Watcher, error) {
	w := &Watcher{
		onCreate:     onCreate,
		debounce:     make(map[string]fsnotify.Op),
		debounceTime: DefaultDebounceTime,
		skipDir:      func(string) bool { return false },
		onReady:      func() {},
	}

	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		w.roots = append(w.roots, absRoot)
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching for file changes. Blocks until context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Add all directories recursively
	for _, root := range w.roots {
		w.addDirectories(watcher, root)
	}

	log.Debug("Watching for new files", "roots", w.roots)
	w.onReady()

	// Start debounce processor; it is stopped and joined on return
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.processDebounced(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, watcher)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watcher error", "error", err)
		}
	}
}

// addDirectories recursively adds all directories under root to the watcher.
func (w *Watcher) addDirectories(watcher *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && w.shouldSkipDir(d.Name()) {
			return filepath.SkipDir
		}

		if err := watcher.Add(path); err != nil {
			log.Debug("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// shouldSkipDir returns true if directory should not be watched.
func (w *Watcher) shouldSkipDir(name string) bool {
	if name == ".git" {
		return true
	}
	if !w.includeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	return w.skipDir(name)
}

// handleEvent processes a single file system event.
func (w *Watcher) handleEvent(event fsnotify.Event, watcher *fsnotify.Watcher) {
	path := event.Name

	// Skip hidden files
	if !w.includeHidden && strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	// New directories are watched too; files moved in with them are not
	// reported
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.shouldSkipDir(filepath.Base(path)) {
				w.addDirectories(watcher, path)
				log.Debug("Added directory to watch", "path", path)
			}
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	// Add to debounce queue
	w.debounceMu.Lock()
	w.debounce[path] |= event.Op
	w.debounceMu.Unlock()
}

// processDebounced processes debounced file events periodically.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flushDebounced(ctx)
		}
	}
}

// flushDebounced handles all pending debounced events. Files that were only
// written to are dropped: lines already ingested are never replaced.
func (w *Watcher) flushDebounced(ctx context.Context) {
	w.debounceMu.Lock()
	if len(w.debounce) == 0 {
		w.debounceMu.Unlock()
		return
	}

	// Swap out the map
	events := w.debounce
	w.debounce = make(map[string]fsnotify.Op)
	w.debounceMu.Unlock()

	for path, op := range events {
		if ctx.Err() != nil {
			return
		}
		if !op.Has(fsnotify.Create) {
			continue
		}

		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		log.Debug("New file", "path", path)
		w.onCreate(path)
	}
}
