package channels

import (
	"fmt"
	"path/filepath"
)

// New starts a channel of the given kind over roots. Stdin channels need a
// reader and are built with NewStdin.
func New(kind Kind, roots []string, opts Options) (OnAir, error) {
	switch kind {
	case KindText:
		return NewText(roots, opts), nil
	case KindFiles:
		return NewFiles(roots, opts), nil
	case KindDirs:
		return NewDirs(roots, opts), nil
	case KindGitRepos:
		return NewGitRepos(roots, opts), nil
	default:
		return nil, fmt.Errorf("%w: %s cannot be started from directories", ErrUnknownKind, kind)
	}
}

// Pipe starts a new channel of kind target seeded with a snapshot of src's
// current results. The new channel keeps no reference to src, and entries
// whose paths cannot be resolved are dropped.
//
// Seeding depends on the source:
//   - files: the first MaxPipedFiles results become an explicit file list
//     (all of them when piping into files);
//   - dirs and git-repos: all results are crawled as roots;
//   - text: the first MaxLinesInMem lines are re-pushed verbatim into a
//     text channel, or their distinct paths seed a files channel.
func Pipe(src OnAir, target Kind, opts Options) (OnAir, error) {
	if target != KindText && target != KindFiles {
		return nil, fmt.Errorf("%w: cannot pipe %s into %s", ErrUnsupportedPipe, src.Kind(), target)
	}

	switch src.Kind() {
	case KindFiles:
		if target == KindText {
			count := min(int64(src.ResultCount()), MaxPipedFiles(opts))
			paths := canonicalPaths(src.Results(uint32(count), 0), opts.BaseDir)
			return NewTextFromFiles(paths, opts), nil
		}
		paths := canonicalPaths(src.Results(src.ResultCount(), 0), opts.BaseDir)
		return NewFilesFromPaths(paths, opts), nil

	case KindDirs, KindGitRepos:
		roots := canonicalPaths(src.Results(src.ResultCount(), 0), opts.BaseDir)
		if target == KindText {
			return NewText(roots, opts), nil
		}
		return NewFiles(roots, opts), nil

	case KindText:
		if target == KindText {
			count := min(int64(src.ResultCount()), opts.MaxLinesInMem)
			return NewTextFromEntries(src.Results(uint32(count), 0), opts), nil
		}
		entries := distinctPaths(src.Results(src.ResultCount(), 0))
		return NewFilesFromPaths(canonicalPaths(entries, opts.BaseDir), opts), nil

	default:
		return nil, fmt.Errorf("%w: cannot pipe %s into %s", ErrUnsupportedPipe, src.Kind(), target)
	}
}

// canonicalPaths resolves entry names to absolute paths with symlinks
// evaluated. Relative names are taken from baseDir.
func canonicalPaths(entries []Entry, baseDir string) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		path := e.Name
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			continue
		}
		paths = append(paths, resolved)
	}
	return paths
}

// distinctPaths keeps the first entry of each path, in rank order.
func distinctPaths(entries []Entry) []Entry {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		out = append(out, e)
	}
	return out
}
