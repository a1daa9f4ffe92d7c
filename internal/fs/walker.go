package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// Ignorer defines the interface for pattern matching.
type Ignorer interface {
	MatchesPath(path string) bool
}

// combinedIgnorer wraps two ignorers.
type combinedIgnorer struct {
	file     *gitignore.GitIgnore
	patterns *gitignore.GitIgnore
}

// MatchesPath returns true if the path matches any ignore pattern.
func (c *combinedIgnorer) MatchesPath(path string) bool {
	return c.file.MatchesPath(path) || c.patterns.MatchesPath(path)
}

// walkRoot is a resolved traversal root with its own ignore rules.
type walkRoot struct {
	path    string
	isDir   bool
	ignorer Ignorer
}

// Walker is a parallel directory walker. Directories are read by a fixed
// pool of NumThreads goroutines and every file or directory reached is handed to a
// VisitFunc, which may stop the walk early by returning WalkQuit.
type Walker struct {
	opts   WalkOptions
	roots  []walkRoot
	extSet map[string]bool

	// seen holds xxhash digests of directories already walked, so roots
	// that overlap are only traversed once.
	seen sync.Map

	filesFound   atomic.Int64
	filesSkipped atomic.Int64
	dirsVisited  atomic.Int64
	dirsSkipped  atomic.Int64
}

// NewWalker creates a new walker. Roots that cannot be resolved are logged
// and dropped; an empty root list yields a walker that visits nothing.
func NewWalker(opts WalkOptions) (*Walker, error) {
	if opts.NumThreads <= 0 {
		opts.NumThreads = runtime.NumCPU()
	}

	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %q", pattern)
		}
	}

	w := &Walker{
		opts: opts,
	}

	// Build extension set for fast lookup
	if len(opts.Extensions) > 0 {
		w.extSet = make(map[string]bool)
		for _, ext := range opts.Extensions {
			// Normalize extension to have leading dot
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.extSet[strings.ToLower(ext)] = true
		}
	}

	for _, root := range opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			log.Warn("Failed to resolve root path", "path", root, "error", err)
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			log.Warn("Root path does not exist", "path", abs, "error", err)
			continue
		}
		w.roots = append(w.roots, walkRoot{
			path:    abs,
			isDir:   info.IsDir(),
			ignorer: w.newIgnorer(abs),
		})
	}

	return w, nil
}

// Roots returns the resolved absolute roots of the walk.
func (w *Walker) Roots() []string {
	roots := make([]string, len(w.roots))
	for i, r := range w.roots {
		roots[i] = r.path
	}
	return roots
}

// newIgnorer builds the gitignore matcher for one root.
func (w *Walker) newIgnorer(root string) Ignorer {
	var patterns []string

	// Add custom ignore patterns
	patterns = append(patterns, w.opts.IgnorePatterns...)

	// Version control metadata is never searchable
	patterns = append(patterns, vcsDirs...)

	// Load .gitignore from root if it exists
	if w.opts.UseGitignore {
		gitignorePath := filepath.Join(root, ".gitignore")
		if _, err := os.Stat(gitignorePath); err == nil {
			gi, err := gitignore.CompileIgnoreFile(gitignorePath)
			if err != nil {
				log.Warn("Failed to parse .gitignore", "path", gitignorePath, "error", err)
			} else {
				return &combinedIgnorer{
					file:     gi,
					patterns: gitignore.CompileIgnoreLines(patterns...),
				}
			}
		}
	}

	return gitignore.CompileIgnoreLines(patterns...)
}

// dirJob is a directory waiting to be read, or a root waiting to be
// started.
type dirJob struct {
	root  *walkRoot
	start bool
	dir   string
	rel   string
	depth int
}

// walk holds the state of a single Run. NumThreads workers drain a LIFO
// queue of directories; workers read directories and push the
// subdirectories they find.
type walk struct {
	w    *Walker
	ctx  context.Context
	fn   VisitFunc
	g    errgroup.Group
	quit atomic.Bool

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []dirJob
	active int // jobs queued or being read
}

// Run walks every root and calls fn for each file and directory reached.
// It blocks until the walk is exhausted, fn returns WalkQuit, or ctx is
// cancelled (in which case ctx.Err() is returned). Entries already being
// processed when the walk is stopped are allowed to finish.
func (w *Walker) Run(ctx context.Context, fn VisitFunc) error {
	w.seen.Clear()

	wk := &walk{
		w:   w,
		ctx: ctx,
		fn:  fn,
	}
	wk.cond = sync.NewCond(&wk.mu)

	stop := context.AfterFunc(ctx, wk.wake)
	defer stop()

	for i := range w.roots {
		wk.push(dirJob{root: &w.roots[i], start: true})
	}
	for range w.opts.NumThreads {
		wk.g.Go(func() error {
			wk.work()
			return nil
		})
	}

	_ = wk.g.Wait()
	return ctx.Err()
}

// Stats returns the walk statistics.
func (w *Walker) Stats() WalkStats {
	return WalkStats{
		FilesFound:   w.filesFound.Load(),
		FilesSkipped: w.filesSkipped.Load(),
		DirsVisited:  w.dirsVisited.Load(),
		DirsSkipped:  w.dirsSkipped.Load(),
	}
}

func (wk *walk) stopped() bool {
	return wk.quit.Load() || wk.ctx.Err() != nil
}

// work runs jobs until the queue is drained or the walk is stopped.
func (wk *walk) work() {
	for {
		job, ok := wk.next()
		if !ok {
			return
		}
		if job.start {
			wk.startRoot(job.root)
		} else {
			wk.readDir(job.root, job.dir, job.rel, job.depth)
		}
		wk.finish()
	}
}

func (wk *walk) push(job dirJob) {
	wk.mu.Lock()
	wk.queue = append(wk.queue, job)
	wk.active++
	wk.mu.Unlock()
	wk.cond.Signal()
}

// next blocks until a job is queued. It reports false once every job is
// done or the walk has stopped.
func (wk *walk) next() (dirJob, bool) {
	wk.mu.Lock()
	defer wk.mu.Unlock()

	for len(wk.queue) == 0 && wk.active > 0 && !wk.stopped() {
		wk.cond.Wait()
	}
	if len(wk.queue) == 0 || wk.stopped() {
		return dirJob{}, false
	}

	n := len(wk.queue) - 1
	job := wk.queue[n]
	wk.queue[n] = dirJob{}
	wk.queue = wk.queue[:n]
	return job, true
}

func (wk *walk) finish() {
	wk.mu.Lock()
	wk.active--
	idle := wk.active == 0
	wk.mu.Unlock()
	if idle {
		wk.cond.Broadcast()
	}
}

// wake releases every waiting worker so it can notice the walk stopped.
func (wk *walk) wake() {
	wk.mu.Lock()
	defer wk.mu.Unlock()
	wk.cond.Broadcast()
}

// deliver hands an entry to the visit callback.
func (wk *walk) deliver(e Entry) WalkState {
	if wk.stopped() {
		return WalkQuit
	}
	state := wk.fn(e)
	if state == WalkQuit {
		wk.quit.Store(true)
		wk.wake()
	}
	return state
}

func (wk *walk) startRoot(root *walkRoot) {
	info, err := os.Stat(root.path)
	if err != nil {
		log.Debug("Error accessing root", "path", root.path, "error", err)
		return
	}

	if !root.isDir {
		if !info.Mode().IsRegular() {
			return
		}
		wk.w.filesFound.Add(1)
		wk.deliver(Entry{
			Path:    root.path,
			RelPath: filepath.Base(root.path),
			Root:    filepath.Dir(root.path),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return
	}

	if !wk.w.markSeen(root.path) {
		return
	}
	state := wk.deliver(Entry{
		Path:    root.path,
		RelPath: ".",
		Root:    root.path,
		IsDir:   true,
		ModTime: info.ModTime(),
	})
	if state != WalkContinue {
		return
	}
	wk.readDir(root, root.path, ".", 0)
}

// readDir lists one directory, delivers its entries and fans out to its
// subdirectories.
func (wk *walk) readDir(root *walkRoot, dir, rel string, depth int) {
	w := wk.w

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Debug("Error reading directory", "path", dir, "error", err)
		return
	}
	w.dirsVisited.Add(1)

	for _, d := range entries {
		if wk.stopped() {
			return
		}

		name := d.Name()
		path := filepath.Join(dir, name)
		relPath := name
		if rel != "." {
			relPath = filepath.Join(rel, name)
		}

		// Symlinks are not followed
		if d.Type()&os.ModeSymlink != 0 {
			w.filesSkipped.Add(1)
			continue
		}

		if d.IsDir() {
			childDepth := depth + 1
			if w.opts.MaxDepth > 0 && childDepth > w.opts.MaxDepth {
				w.dirsSkipped.Add(1)
				continue
			}
			if w.shouldSkipDir(root, name, relPath) {
				w.dirsSkipped.Add(1)
				continue
			}
			if !w.markSeen(path) {
				continue
			}

			entry := Entry{
				Path:    path,
				RelPath: relPath,
				Root:    root.path,
				IsDir:   true,
				Depth:   childDepth,
			}
			if info, err := d.Info(); err == nil {
				entry.ModTime = info.ModTime()
			}

			switch wk.deliver(entry) {
			case WalkQuit:
				return
			case WalkSkip:
				continue
			}

			if w.opts.MaxDepth > 0 && childDepth >= w.opts.MaxDepth {
				continue
			}
			wk.push(dirJob{root: root, dir: path, rel: relPath, depth: childDepth})
			continue
		}

		if !d.Type().IsRegular() {
			w.filesSkipped.Add(1)
			continue
		}

		if w.shouldSkipFile(root, name, relPath) {
			w.filesSkipped.Add(1)
			continue
		}

		info, err := d.Info()
		if err != nil {
			log.Debug("Failed to get file info", "path", path, "error", err)
			continue
		}

		w.filesFound.Add(1)
		if wk.deliver(Entry{
			Path:    path,
			RelPath: relPath,
			Root:    root.path,
			Depth:   depth + 1,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}) == WalkQuit {
			return
		}
	}
}

// markSeen records a directory and reports whether it was new.
func (w *Walker) markSeen(path string) bool {
	_, loaded := w.seen.LoadOrStore(xxhash.Sum64String(path), struct{}{})
	return !loaded
}

// shouldSkipDir checks if a directory should be skipped.
func (w *Walker) shouldSkipDir(root *walkRoot, name, relPath string) bool {
	// Always skip .git
	if name == ".git" {
		return true
	}

	// Skip hidden directories unless configured otherwise
	if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}

	slashPath := filepath.ToSlash(relPath)

	// Check gitignore patterns
	if root.ignorer != nil && root.ignorer.MatchesPath(slashPath+"/") {
		return true
	}

	return w.excluded(slashPath)
}

// shouldSkipFile checks if a file should be skipped.
func (w *Walker) shouldSkipFile(root *walkRoot, name, relPath string) bool {
	// Skip hidden files unless configured otherwise
	if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}

	slashPath := filepath.ToSlash(relPath)

	// Check gitignore patterns
	if root.ignorer != nil && root.ignorer.MatchesPath(slashPath) {
		return true
	}

	if w.excluded(slashPath) {
		return true
	}

	// Check extension filter
	if w.extSet != nil {
		ext := strings.ToLower(filepath.Ext(name))
		if !w.extSet[ext] {
			return true
		}
	}

	return false
}

// excluded reports whether a slash-separated relative path matches any
// exclude glob.
func (w *Walker) excluded(slashPath string) bool {
	for _, pattern := range w.opts.Exclude {
		if matched, err := doublestar.Match(pattern, slashPath); err == nil && matched {
			return true
		}
	}
	return false
}

// Version control metadata directories.
var vcsDirs = []string{
	".git/",
	".hg/",
	".svn/",
}
