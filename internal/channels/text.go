package channels

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"

	"github.com/nickcecere/fzgrep/internal/fs"
	"github.com/nickcecere/fzgrep/internal/matcher"
	"github.com/nickcecere/fzgrep/internal/watcher"
)

// lineBudget is the soft ceiling on lines a channel keeps in memory. It is
// shared by every producer of one channel; concurrent producers may each
// overshoot it by one file.
type lineBudget struct {
	used    atomic.Int64
	ceiling int64
}

func newLineBudget(ceiling int64) *lineBudget {
	return &lineBudget{ceiling: ceiling}
}

func (b *lineBudget) exhausted() bool {
	return b.used.Load() >= b.ceiling
}

func (b *lineBudget) add(n int) {
	b.used.Add(int64(n))
}

// ingested remembers the files a watching channel has read, so a file
// reached by both the crawl and the watcher is read once. A nil set claims
// every path.
type ingested struct {
	seen sync.Map
}

func (s *ingested) claim(path string) bool {
	if s == nil {
		return true
	}
	_, loaded := s.seen.LoadOrStore(xxhash.Sum64String(path), struct{}{})
	return !loaded
}

// TextChannel searches the lines of text files.
type TextChannel struct {
	*base[fs.CandidateLine]

	// watchReady is closed once watch mode is watching the crawl roots, or
	// has failed to.
	watchReady chan struct{}
	readyOnce  sync.Once
}

func projectLine(c fs.CandidateLine) string { return c.Line }

func lineEntry(it matcher.Item[fs.CandidateLine]) Entry {
	c := it.Inner
	return Entry{
		Name:        c.Path,
		Value:       it.MatchedString,
		MatchRanges: matchRanges(it.MatchedString, it.MatchIndices),
		LineNumber:  c.LineNumber,
		Icon:        fs.IconHint(c.Path, false),
		Preview:     Preview{Kind: PreviewFile, Path: c.Path},
	}
}

func newTextChannel(opts Options) *TextChannel {
	return &TextChannel{
		base:       newBase(KindText, opts.Matcher, lineEntry),
		watchReady: make(chan struct{}),
	}
}

// NewText starts a text channel crawling the given directories. Every
// directory after the first is an extra root of the same walk.
//
// In watch mode the roots are watched before the crawl starts, so a file
// created while the crawl runs is picked up by one or the other.
func NewText(dirs []string, opts Options) *TextChannel {
	ch := newTextChannel(opts)
	ch.start(func(ctx context.Context, inj matcher.Injector[fs.CandidateLine]) {
		budget := newLineBudget(opts.MaxLinesInMem)
		if !opts.Watch || len(dirs) == 0 {
			crawlForCandidates(ctx, dirs, opts, inj, budget, nil)
			return
		}

		claimed := &ingested{}
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.watch(ctx, dirs, opts, inj, budget, claimed)
		}()

		select {
		case <-ch.watchReady:
			crawlForCandidates(ctx, dirs, opts, inj, budget, claimed)
		case <-ctx.Done():
		}
		wg.Wait()
	})
	return ch
}

// NewTextFromFiles starts a text channel over an explicit list of files,
// stopping once the line budget is spent.
func NewTextFromFiles(paths []string, opts Options) *TextChannel {
	ch := newTextChannel(opts)
	ch.start(func(ctx context.Context, inj matcher.Injector[fs.CandidateLine]) {
		budget := newLineBudget(opts.MaxLinesInMem)
		for _, path := range paths {
			if ctx.Err() != nil || budget.exhausted() {
				return
			}
			info, err := os.Stat(path)
			if err != nil {
				log.Debug("Error accessing file", "path", path, "error", err)
				continue
			}
			if !info.Mode().IsRegular() {
				continue
			}
			ingestFile(ctx, path, info.Size(), opts, inj, budget)
		}
	})
	return ch
}

// NewTextFromEntries starts a text channel seeded with lines that were
// already extracted, keeping their paths and line numbers.
func NewTextFromEntries(entries []Entry, opts Options) *TextChannel {
	ch := newTextChannel(opts)
	ch.start(func(ctx context.Context, inj matcher.Injector[fs.CandidateLine]) {
		limit := min(int64(len(entries)), opts.MaxLinesInMem)
		for i, e := range entries[:limit] {
			if i%1024 == 0 && ctx.Err() != nil {
				return
			}
			if e.Value == "" {
				continue
			}
			inj.Push(fs.CandidateLine{
				Path:       e.Name,
				Line:       e.Value,
				LineNumber: e.LineNumber,
			}, projectLine)
		}
	})
	return ch
}

// crawlForCandidates walks roots in parallel and ingests every text file
// found until the budget is spent. Errors are logged, never returned.
func crawlForCandidates(ctx context.Context, roots []string, opts Options, inj matcher.Injector[fs.CandidateLine], budget *lineBudget, claimed *ingested) {
	if len(roots) == 0 {
		return
	}

	walker, err := fs.NewWalker(opts.walkOptions(roots))
	if err != nil {
		log.Warn("Failed to create walker", "error", err)
		return
	}

	err = walker.Run(ctx, func(e fs.Entry) fs.WalkState {
		if budget.exhausted() {
			return fs.WalkQuit
		}
		if e.IsDir || !claimed.claim(e.Path) {
			return fs.WalkContinue
		}
		ingestFile(ctx, e.Path, e.Size, opts, inj, budget)
		return fs.WalkContinue
	})
	if err != nil {
		log.Debug("Crawl cancelled", "error", err)
		return
	}

	stats := walker.Stats()
	log.Debug("Crawl finished",
		"roots", len(walker.Roots()),
		"files", stats.FilesFound,
		"skipped", stats.FilesSkipped,
		"lines", budget.used.Load(),
	)
}

// ingestFile applies the size gate and pushes the lines of one file.
func ingestFile(ctx context.Context, path string, size int64, opts Options, inj matcher.Injector[fs.CandidateLine], budget *lineBudget) {
	if size > opts.MaxFileSize {
		log.Debug("Skipping large file", "path", path, "size", size)
		return
	}

	n, err := fs.ExtractLines(ctx, path, opts.BaseDir, func(c fs.CandidateLine) {
		inj.Push(c, projectLine)
	})
	if err != nil {
		log.Warn("Error opening file", "path", path, "error", err)
		return
	}
	budget.add(n)
}

// watch ingests files created under roots until ctx is cancelled.
func (ch *TextChannel) watch(ctx context.Context, roots []string, opts Options, inj matcher.Injector[fs.CandidateLine], budget *lineBudget, claimed *ingested) {
	defer ch.markWatchReady()

	ignoredDirs := ignoredDirNames(opts.IgnorePatterns)
	w, err := watcher.New(roots, func(path string) {
		if budget.exhausted() || !claimed.claim(path) {
			return
		}
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		ingestFile(ctx, path, info.Size(), opts, inj, budget)
	},
		watcher.WithIncludeHidden(opts.IncludeHidden),
		watcher.WithSkipDir(func(name string) bool { return ignoredDirs[name] }),
		watcher.WithReadyCallback(ch.markWatchReady),
	)
	if err != nil {
		log.Warn("Failed to create watcher", "error", err)
		return
	}

	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		log.Warn("Watcher stopped", "error", err)
	}
}

func (ch *TextChannel) markWatchReady() {
	ch.readyOnce.Do(func() { close(ch.watchReady) })
}

// ignoredDirNames picks the plain directory names out of gitignore-style
// patterns such as "node_modules/". Patterns with globs or slashes inside
// are left to the crawl.
func ignoredDirNames(patterns []string) map[string]bool {
	names := make(map[string]bool)
	for _, p := range patterns {
		name, ok := strings.CutSuffix(p, "/")
		if !ok || name == "" || strings.ContainsAny(name, "*?[/!") {
			continue
		}
		names[name] = true
	}
	return names
}
