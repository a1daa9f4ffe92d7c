package channels

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/fzgrep/internal/fs"
	"github.com/nickcecere/fzgrep/internal/matcher"
)

// pathItem is a file or directory found by a path channel.
type pathItem struct {
	path string // Relative to the base directory when possible
	dir  bool
	repo bool
}

func projectPath(p pathItem) string { return p.path }

func pathEntry(it matcher.Item[pathItem]) Entry {
	p := it.Inner
	e := Entry{
		Name:        p.path,
		Value:       it.MatchedString,
		MatchRanges: matchRanges(it.MatchedString, it.MatchIndices),
		Icon:        fs.IconHint(p.path, p.dir),
		Preview:     Preview{Kind: PreviewFile, Path: p.path},
	}
	if p.dir {
		e.Preview.Kind = PreviewDirectory
	}
	if p.repo {
		e.Icon = fs.IconGitRepo
	}
	return e
}

// PathChannel searches file or directory paths. It backs the files, dirs and
// git-repos kinds.
type PathChannel struct {
	*base[pathItem]
}

func newPathChannel(kind Kind, opts Options) *PathChannel {
	return &PathChannel{base: newBase(kind, opts.Matcher, pathEntry)}
}

// NewFiles starts a channel listing the regular files under roots.
func NewFiles(roots []string, opts Options) *PathChannel {
	ch := newPathChannel(KindFiles, opts)
	ch.start(func(ctx context.Context, inj matcher.Injector[pathItem]) {
		walkPaths(ctx, roots, opts.walkOptions(roots), func(e fs.Entry) fs.WalkState {
			if !e.IsDir {
				inj.Push(pathItem{path: fs.RelativePath(opts.BaseDir, e.Path)}, projectPath)
			}
			return fs.WalkContinue
		})
	})
	return ch
}

// NewFilesFromPaths starts a files channel over an explicit list of paths.
// Paths that are not regular files are dropped.
func NewFilesFromPaths(paths []string, opts Options) *PathChannel {
	ch := newPathChannel(KindFiles, opts)
	ch.start(func(ctx context.Context, inj matcher.Injector[pathItem]) {
		for _, path := range paths {
			if ctx.Err() != nil {
				return
			}
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			inj.Push(pathItem{path: fs.RelativePath(opts.BaseDir, path)}, projectPath)
		}
	})
	return ch
}

// NewDirs starts a channel listing the directories under roots, roots
// excluded.
func NewDirs(roots []string, opts Options) *PathChannel {
	ch := newPathChannel(KindDirs, opts)
	ch.start(func(ctx context.Context, inj matcher.Injector[pathItem]) {
		walkPaths(ctx, roots, opts.walkOptions(roots), func(e fs.Entry) fs.WalkState {
			if e.IsDir && e.Depth > 0 {
				inj.Push(pathItem{path: fs.RelativePath(opts.BaseDir, e.Path), dir: true}, projectPath)
			}
			return fs.WalkContinue
		})
	})
	return ch
}

// NewGitRepos starts a channel listing git repositories under roots,
// including the roots themselves. Nested repositories are found too.
func NewGitRepos(roots []string, opts Options) *PathChannel {
	ch := newPathChannel(KindGitRepos, opts)
	walkOpts := opts.walkOptions(roots)
	walkOpts.MaxDepth = opts.GitReposMaxDepth
	walkOpts.UseGitignore = false

	ch.start(func(ctx context.Context, inj matcher.Injector[pathItem]) {
		walkPaths(ctx, roots, walkOpts, func(e fs.Entry) fs.WalkState {
			if e.IsDir && isGitRepo(e.Path) {
				inj.Push(pathItem{path: fs.RelativePath(opts.BaseDir, e.Path), dir: true, repo: true}, projectPath)
			}
			return fs.WalkContinue
		})
	})
	return ch
}

// isGitRepo reports whether dir has a .git entry. Worktrees and submodules
// use a .git file rather than a directory.
func isGitRepo(dir string) bool {
	_, err := os.Lstat(filepath.Join(dir, ".git"))
	return err == nil
}

func walkPaths(ctx context.Context, roots []string, opts fs.WalkOptions, fn fs.VisitFunc) {
	if len(roots) == 0 {
		return
	}
	walker, err := fs.NewWalker(opts)
	if err != nil {
		log.Warn("Failed to create walker", "error", err)
		return
	}
	if err := walker.Run(ctx, fn); err != nil {
		log.Debug("Walk cancelled", "error", err)
	}
}
