// Package fs provides file system crawling, text classification and line
// extraction for the search channels.
package fs

import (
	"time"
)

// CandidateLine is one unit of searchable content: a single non-empty,
// normalized line of a text file.
type CandidateLine struct {
	Path       string // Relative to the base directory when possible, absolute otherwise
	Line       string // Normalized line content, never empty
	LineNumber int    // 1-indexed position within the source file
}

// Entry is a directory entry delivered to a walk callback.
type Entry struct {
	Path    string    // Absolute path
	RelPath string    // Path relative to the walk root that reached it
	Root    string    // Absolute walk root
	IsDir   bool      // True for directories
	Depth   int       // 0 for a root, 1 for its direct children, ...
	Size    int64     // File size in bytes (0 for directories)
	ModTime time.Time // Last modification time
}

// WalkState tells the walker how to proceed after visiting an entry.
type WalkState int

const (
	// WalkContinue keeps walking (and descends into a directory).
	WalkContinue WalkState = iota
	// WalkSkip does not descend into the visited directory.
	WalkSkip
	// WalkQuit stops the whole walk cooperatively.
	WalkQuit
)

// VisitFunc is called for every file and directory the walker reaches.
// It may be called concurrently from several goroutines.
type VisitFunc func(Entry) WalkState

// WalkOptions configures the walker.
type WalkOptions struct {
	// Roots are the paths to walk. The first is the primary root, every
	// other one is added as an extra traversal root of the same walk.
	Roots []string

	// NumThreads bounds the number of directories read concurrently.
	// Zero means runtime.NumCPU().
	NumThreads int

	// MaxDepth limits descent below a root. Zero means unlimited.
	MaxDepth int

	// IgnorePatterns are additional patterns to ignore (gitignore syntax).
	IgnorePatterns []string

	// Exclude are doublestar globs matched against the slash-separated
	// path relative to the root.
	Exclude []string

	// IncludeHidden includes hidden files and directories.
	IncludeHidden bool

	// UseGitignore respects the .gitignore file of each root.
	UseGitignore bool

	// Extensions limits files to specific extensions (e.g., ".go", ".ts").
	// Empty means all files.
	Extensions []string
}

// DefaultWalkOptions returns sensible defaults for walking.
func DefaultWalkOptions() WalkOptions {
	return WalkOptions{
		UseGitignore: true,
	}
}

// WalkStats contains statistics from a directory walk.
type WalkStats struct {
	FilesFound   int64 // Files delivered to the callback
	FilesSkipped int64 // Files skipped due to pattern/extension/type
	DirsVisited  int64 // Directories read
	DirsSkipped  int64 // Directories skipped
}
