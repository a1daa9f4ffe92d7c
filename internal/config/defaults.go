package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default configuration values
const (
	// Channel defaults
	DefaultMaxFileSize      = 4 << 20 // 4MB
	DefaultMaxLinesInMem    = 5_000_000
	DefaultAvgLinesPerFile  = 200
	DefaultGitReposMaxDepth = 5

	// Matcher defaults
	DefaultTickBudget = 100_000

	// UI defaults
	DefaultTickRate       = 50 * time.Millisecond
	DefaultPreviewContext = 5
	DefaultPreviewStyle   = "monokai"

	// History
	DefaultHistoryLimit    = 20
	DefaultHistoryFileName = "history.db"

	// RCFileName is the project-local config file searched upward from cwd.
	RCFileName = ".fzgreprc.yaml"
)

// DefaultIgnorePatterns returns the default list of file patterns to ignore.
// Binary formats are left to the text classifier; these are trees that are
// rarely worth searching.
func DefaultIgnorePatterns() []string {
	return []string{
		// Dependencies
		"node_modules/",
		".venv/",
		"venv/",
		"__pycache__/",

		// Build outputs
		"target/",
		".next/",
		".nuxt/",

		// Version control
		".git/",
		".svn/",
		".hg/",

		// Minified
		"*.min.js",
		"*.min.css",
		"*.map",

		// Misc
		".DS_Store",
		"Thumbs.db",
	}
}

// DefaultConfigDir returns the default configuration directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/fzgrep"
	}
	return filepath.Join(home, ".config", "fzgrep")
}

// DefaultDataDir returns the default data directory path.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".local/share/fzgrep"
	}
	return filepath.Join(home, ".local", "share", "fzgrep")
}

// DefaultHistoryPath returns the default query history database path.
func DefaultHistoryPath() string {
	return filepath.Join(DefaultDataDir(), DefaultHistoryFileName)
}
