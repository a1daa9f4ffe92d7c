package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickcecere/fzgrep/internal/channels"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// setupWorkspace creates a small tree, moves into it and points the
// configuration at a private home and history database.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	files := map[string]string{
		"notes.txt":    "hello world\nnothing here\n",
		"main.go":      "package main\n\n// hello from go\nfunc main() {}\n",
		"sub/util.go":  "package sub\n",
		"sub/data.bin": "\x00\x01\x02hello",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv("FZGREP_HISTORY_PATH", filepath.Join(t.TempDir(), "history.db"))
	t.Chdir(dir)
	return dir
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func executeJSON(t *testing.T, stdin io.Reader, args ...string) jsonPage {
	t.Helper()
	out, err := execute(t, stdin, append(args, "--json")...)
	require.NoError(t, err, out)

	var page jsonPage
	require.NoError(t, json.Unmarshal([]byte(out), &page), out)
	return page
}

func resultNames(page jsonPage) []string {
	names := make([]string, len(page.Results))
	for i, r := range page.Results {
		names[i] = r.Name
	}
	return names
}

func TestTextCommand(t *testing.T) {
	setupWorkspace(t)

	page := executeJSON(t, nil, "text", "-q", "hello")
	assert.Equal(t, "text", page.Channel)
	assert.Equal(t, "hello", page.Query)
	assert.False(t, page.Running)
	assert.Equal(t, uint32(2), page.Matched)
	assert.ElementsMatch(t, []string{"notes.txt", "main.go"}, resultNames(page))

	for _, r := range page.Results {
		assert.Positive(t, r.Line)
		assert.NotEmpty(t, r.Matches)
		assert.Equal(t, "file", r.Preview)
	}
}

func TestTextCommandLimitAndOffset(t *testing.T) {
	setupWorkspace(t)

	all := executeJSON(t, nil, "text")
	require.Equal(t, uint32(6), all.Total)
	require.Len(t, all.Results, 6)

	page := executeJSON(t, nil, "text", "-m", "2", "--offset", "1")
	assert.Len(t, page.Results, 2)
	for _, r := range page.Results {
		assert.Contains(t, all.Results, r)
	}

	page = executeJSON(t, nil, "text", "--offset", "5")
	assert.Len(t, page.Results, 1)

	page = executeJSON(t, nil, "text", "--offset", "10")
	assert.Empty(t, page.Results)

	_, err := execute(t, nil, "text", "-m", "-1")
	assert.Error(t, err)

	page = executeJSON(t, nil, "text", "-m", "4294967295", "--offset", "1")
	assert.Len(t, page.Results, 5)

	_, err = execute(t, nil, "text", "-m", "4294967296")
	assert.ErrorContains(t, err, "must not exceed")

	_, err = execute(t, nil, "text", "--offset", "4294967296")
	assert.ErrorContains(t, err, "must not exceed")
}

func TestTextCommandPlainOutput(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, nil, "text", "-q", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "notes.txt:2  nothing here")
	assert.Contains(t, out, "1/6")

	out, err = execute(t, nil, "text", "-q", "zzzz")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestTextCommandPreview(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, nil, "text", "-q", "nothing", "-p")
	require.NoError(t, err)
	assert.Contains(t, out, "   1│ hello world")
	assert.Contains(t, out, "   2│ nothing here")
}

func TestFilesCommand(t *testing.T) {
	setupWorkspace(t)

	page := executeJSON(t, nil, "files", "-q", "util")
	assert.Equal(t, "files", page.Channel)
	assert.Equal(t, []string{filepath.Join("sub", "util.go")}, resultNames(page))

	out, err := execute(t, nil, "files", "-q", "main")
	require.NoError(t, err)
	assert.Contains(t, out, "main.go")
}

func TestDirsCommandWithPreview(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, nil, "dirs", "-p")
	require.NoError(t, err)
	assert.Contains(t, out, "sub")
	assert.Contains(t, out, "util.go")
}

func TestGitReposCommand(t *testing.T) {
	dir := setupWorkspace(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "repo", ".git"), 0755))

	page := executeJSON(t, nil, "git-repos")
	assert.Equal(t, []string{"repo"}, resultNames(page))
	assert.Equal(t, "git", page.Results[0].Icon)
}

func TestPipeFlag(t *testing.T) {
	setupWorkspace(t)

	page := executeJSON(t, nil, "files", "-q", ".go", "--pipe", "text", "--pipe-query", "package")
	assert.Equal(t, "text", page.Channel)
	assert.Equal(t, "package", page.Query)
	assert.ElementsMatch(t, []string{"main.go", filepath.Join("sub", "util.go")}, resultNames(page))
}

func TestPipeFlagErrors(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, nil, "files", "--pipe", "dirs")
	assert.ErrorIs(t, err, channels.ErrUnsupportedPipe)

	_, err = execute(t, nil, "files", "--pipe", "bogus")
	assert.ErrorIs(t, err, channels.ErrUnknownKind)
}

func TestMissingRoot(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, nil, "text", "/nonexistent/dir")
	assert.ErrorContains(t, err, "path does not exist")
}

func TestWorkdirFlag(t *testing.T) {
	dir := setupWorkspace(t)
	t.Chdir(t.TempDir())

	page := executeJSON(t, nil, "files", "-C", dir, "-q", "notes")
	assert.Equal(t, []string{"notes.txt"}, resultNames(page))
}

func TestWatchTimeout(t *testing.T) {
	setupWorkspace(t)

	page := executeJSON(t, nil, "text", "-q", "hello", "--watch", "--timeout", "300ms")
	assert.Len(t, page.Results, 2)
}

func TestStdinCommand(t *testing.T) {
	setupWorkspace(t)

	page := executeJSON(t, strings.NewReader("alpha\nbeta\n\ngamma\n"), "stdin", "-q", "ta")
	assert.Equal(t, "stdin", page.Channel)
	assert.Equal(t, uint32(3), page.Total)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "beta", page.Results[0].Value)
	assert.Equal(t, "basic", page.Results[0].Preview)
}

func TestRootCommand(t *testing.T) {
	setupWorkspace(t)
	orig := stdinIsPiped
	t.Cleanup(func() { stdinIsPiped = orig })

	stdinIsPiped = func() bool { return true }
	page := executeJSON(t, strings.NewReader("alpha\nbeta\n"), "-q", "al")
	assert.Equal(t, []string{"alpha"}, resultNames(page))

	stdinIsPiped = func() bool { return false }
	out, err := execute(t, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
}

func TestHistoryCommand(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, nil, "text", "-q", "hello")
	require.NoError(t, err)
	_, err = execute(t, nil, "files", "-q", "main")
	require.NoError(t, err)
	_, err = execute(t, nil, "files")
	require.NoError(t, err)

	out, err := execute(t, nil, "history", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.NotContains(t, out, "main")

	out, err = execute(t, nil, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "main")

	out, err = execute(t, nil, "history", "files", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 queries")

	_, err = execute(t, nil, "history", "bogus")
	assert.ErrorIs(t, err, channels.ErrUnknownKind)
}

func TestHistoryDisabled(t *testing.T) {
	setupWorkspace(t)
	t.Setenv("FZGREP_HISTORY_ENABLED", "false")

	_, err := execute(t, nil, "text", "-q", "hello")
	require.NoError(t, err)

	out, err := execute(t, nil, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No history.")
}

func TestConfigCommand(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, nil, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "Tick Budget: 100000")
	assert.Contains(t, out, "Max Lines In Memory: 5000000")

	out, err = execute(t, nil, "config", "--path")
	require.NoError(t, err)
	assert.Contains(t, out, "History:")
	assert.Contains(t, out, ".fzgreprc.yaml")
}

func TestVersionCommand(t *testing.T) {
	setupWorkspace(t)
	SetVersionInfo("1.2.3", "abc123", "today")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fzgrep 1.2.3")
	assert.Contains(t, out, "abc123")
}

func TestFormatEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry channels.Entry
		want  string
	}{
		{
			name: "text line",
			entry: channels.Entry{
				Name:        "main.go",
				Value:       "func main() {}",
				LineNumber:  4,
				MatchRanges: []channels.MatchRange{{Start: 0, End: 4}},
				Preview:     channels.Preview{Kind: channels.PreviewFile, Path: "main.go"},
			},
			want: "main.go:4  func main() {}",
		},
		{
			name: "path",
			entry: channels.Entry{
				Name:    "sub/util.go",
				Value:   "sub/util.go",
				Preview: channels.Preview{Kind: channels.PreviewFile, Path: "sub/util.go"},
			},
			want: "sub/util.go",
		},
		{
			name: "piped line",
			entry: channels.Entry{
				Name:    "beta",
				Value:   "beta",
				Preview: channels.Preview{Kind: channels.PreviewBasic},
			},
			want: "beta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatEntry(tt.entry))
		})
	}
}
