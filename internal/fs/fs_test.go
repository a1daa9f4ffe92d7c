package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDetectLanguage tests language detection from file paths.
func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"main.go", LangGo},
		{"app.ts", LangTypeScript},
		{"script.js", LangJavaScript},
		{"utils.py", LangPython},
		{"lib.rs", LangRust},
		{"main.cpp", LangCPP},
		{"config.yaml", LangYAML},
		{"README.md", LangMarkdown},
		{"notes.txt", LangText},
		{"Makefile", LangShell},
		{"unknown.xyz", LangUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectLanguage(tt.path))
		})
	}
}

func TestIconHint(t *testing.T) {
	tests := []struct {
		path     string
		isDir    bool
		expected string
	}{
		{"src", true, IconDirectory},
		{"main.go", true, IconDirectory},
		{"main.go", false, LangGo},
		{"docs/README.md", false, LangMarkdown},
		{"logo.PNG", false, IconImage},
		{"release.tar", false, IconArchive},
		{"data.bin", false, IconFile},
		{"LICENSE", false, IconFile},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, IconHint(tt.path, tt.isDir))
		})
	}
}

// walkFixture lays out a small project:
//
//	main.go, utils.go, subdir/nested.go, .hidden, README.md,
//	node_modules/pkg/index.js, .git/config and a .gitignore
//	ignoring *.md and node_modules/.
func walkFixture(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	files := map[string]string{
		"main.go":                   "package main\n",
		"utils.go":                  "package main\n",
		"subdir/nested.go":          "package subdir\n",
		".hidden":                   "secret\n",
		"README.md":                 "# readme\n",
		"node_modules/pkg/index.js": "module.exports = {}\n",
		".git/config":               "[core]\n",
		".gitignore":                "*.md\nnode_modules/\n",
	}
	for path, content := range files {
		fullPath := filepath.Join(tmpDir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0644))
	}
	return tmpDir
}

// collect runs the walker and returns the sorted RelPaths of the files and
// directories it delivered.
func collect(t *testing.T, w *Walker) (files, dirs []string) {
	t.Helper()
	var mu sync.Mutex
	err := w.Run(context.Background(), func(e Entry) WalkState {
		mu.Lock()
		defer mu.Unlock()
		if e.IsDir {
			dirs = append(dirs, filepath.ToSlash(e.RelPath))
		} else {
			files = append(files, filepath.ToSlash(e.RelPath))
		}
		return WalkContinue
	})
	require.NoError(t, err)
	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs
}

func TestWalker(t *testing.T) {
	tmpDir := walkFixture(t)

	t.Run("walks directory and honours gitignore", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{Roots: []string{tmpDir}, UseGitignore: true})
		require.NoError(t, err)

		files, dirs := collect(t, w)
		assert.Equal(t, []string{"main.go", "subdir/nested.go", "utils.go"}, files)
		assert.Equal(t, []string{".", "subdir"}, dirs)
	})

	t.Run("includes hidden files but never .git", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{Roots: []string{tmpDir}, IncludeHidden: true})
		require.NoError(t, err)

		files, _ := collect(t, w)
		assert.Contains(t, files, ".hidden")
		assert.Contains(t, files, ".gitignore")
		assert.Contains(t, files, "README.md")
		assert.Contains(t, files, "node_modules/pkg/index.js")
		for _, f := range files {
			assert.False(t, strings.HasPrefix(f, ".git/"), "unexpected file: %s", f)
		}
	})

	t.Run("respects extension filter", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{Roots: []string{tmpDir}, Extensions: []string{"md"}})
		require.NoError(t, err)

		files, _ := collect(t, w)
		assert.Equal(t, []string{"README.md"}, files)
	})

	t.Run("respects exclude globs", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{
			Roots:        []string{tmpDir},
			UseGitignore: true,
			Exclude:      []string{"subdir/**", "utils.*"},
		})
		require.NoError(t, err)

		files, _ := collect(t, w)
		assert.Equal(t, []string{"main.go"}, files)
	})

	t.Run("respects custom ignore patterns", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{
			Roots:          []string{tmpDir},
			UseGitignore:   true,
			IgnorePatterns: []string{"main.go"},
		})
		require.NoError(t, err)

		files, _ := collect(t, w)
		assert.Equal(t, []string{"subdir/nested.go", "utils.go"}, files)
	})

	t.Run("respects max depth", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{Roots: []string{tmpDir}, UseGitignore: true, MaxDepth: 1})
		require.NoError(t, err)

		files, dirs := collect(t, w)
		assert.Equal(t, []string{"main.go", "utils.go"}, files)
		assert.Contains(t, dirs, "subdir")
	})

	t.Run("skip does not descend", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{Roots: []string{tmpDir}, UseGitignore: true})
		require.NoError(t, err)

		var mu sync.Mutex
		var files []string
		err = w.Run(context.Background(), func(e Entry) WalkState {
			if e.IsDir && e.RelPath == "subdir" {
				return WalkSkip
			}
			mu.Lock()
			defer mu.Unlock()
			if !e.IsDir {
				files = append(files, e.RelPath)
			}
			return WalkContinue
		})
		require.NoError(t, err)
		assert.NotContains(t, files, filepath.Join("subdir", "nested.go"))
		assert.Len(t, files, 2)
	})

	t.Run("quit stops the walk", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{Roots: []string{tmpDir}, NumThreads: 1, IncludeHidden: true})
		require.NoError(t, err)

		var mu sync.Mutex
		visited := 0
		err = w.Run(context.Background(), func(e Entry) WalkState {
			mu.Lock()
			defer mu.Unlock()
			visited++
			return WalkQuit
		})
		require.NoError(t, err)
		assert.Equal(t, 1, visited)
	})

	t.Run("overlapping roots are walked once", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{
			Roots:        []string{tmpDir, filepath.Join(tmpDir, "subdir")},
			UseGitignore: true,
		})
		require.NoError(t, err)
		assert.Len(t, w.Roots(), 2)

		var mu sync.Mutex
		seen := make(map[string]int)
		err = w.Run(context.Background(), func(e Entry) WalkState {
			mu.Lock()
			defer mu.Unlock()
			if !e.IsDir {
				seen[e.Path]++
			}
			return WalkContinue
		})
		require.NoError(t, err)
		assert.Equal(t, 1, seen[filepath.Join(tmpDir, "subdir", "nested.go")])
		assert.Len(t, seen, 3)
	})

	t.Run("file root is a single entry", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{Roots: []string{filepath.Join(tmpDir, "main.go")}})
		require.NoError(t, err)

		files, dirs := collect(t, w)
		assert.Equal(t, []string{"main.go"}, files)
		assert.Empty(t, dirs)
	})

	t.Run("provides accurate stats", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{Roots: []string{tmpDir}, UseGitignore: true})
		require.NoError(t, err)

		collect(t, w)
		stats := w.Stats()
		assert.Equal(t, int64(3), stats.FilesFound)
		assert.Equal(t, int64(2), stats.DirsVisited)
		assert.Greater(t, stats.FilesSkipped, int64(0))
		assert.Greater(t, stats.DirsSkipped, int64(0))
	})

	t.Run("cancelled context", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{Roots: []string{tmpDir}})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = w.Run(ctx, func(Entry) WalkState { return WalkContinue })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// TestWalkerWideTree checks that a wide tree is read by a fixed number of
// goroutines rather than one per directory.
func TestWalkerWideTree(t *testing.T) {
	tmpDir := t.TempDir()
	const width = 200
	for i := range width {
		dir := filepath.Join(tmpDir, fmt.Sprintf("dir%03d", i))
		require.NoError(t, os.Mkdir(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x\n"), 0644))
	}

	const threads = 2
	w, err := NewWalker(WalkOptions{Roots: []string{tmpDir}, NumThreads: threads})
	require.NoError(t, err)

	baseline := runtime.NumGoroutine()
	var mu sync.Mutex
	peak, files := 0, 0
	err = w.Run(context.Background(), func(e Entry) WalkState {
		mu.Lock()
		defer mu.Unlock()
		peak = max(peak, runtime.NumGoroutine())
		if !e.IsDir {
			files++
		}
		return WalkContinue
	})
	require.NoError(t, err)

	assert.Equal(t, width, files)
	assert.LessOrEqual(t, peak, baseline+threads+1)
}

// TestWalkerErrors tests error handling.
func TestWalkerErrors(t *testing.T) {
	t.Run("missing root is dropped", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{Roots: []string{"/nonexistent/path"}})
		require.NoError(t, err)
		assert.Empty(t, w.Roots())

		files, dirs := collect(t, w)
		assert.Empty(t, files)
		assert.Empty(t, dirs)
	})

	t.Run("no roots", func(t *testing.T) {
		w, err := NewWalker(WalkOptions{})
		require.NoError(t, err)

		files, _ := collect(t, w)
		assert.Empty(t, files)
	})

	t.Run("invalid exclude pattern", func(t *testing.T) {
		_, err := NewWalker(WalkOptions{Exclude: []string{"[unclosed"}})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid exclude pattern")
	})
}

// TestDefaultOptions tests default options.
func TestDefaultOptions(t *testing.T) {
	opts := DefaultWalkOptions()
	assert.True(t, opts.UseGitignore)
	assert.False(t, opts.IncludeHidden)
	assert.Zero(t, opts.MaxDepth)
}
