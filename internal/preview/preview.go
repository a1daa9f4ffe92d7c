// Package preview renders the context around a result: a highlighted window
// of a file, or the listing of a directory.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/log"

	"github.com/nickcecere/fzgrep/internal/fs"
	"github.com/nickcecere/fzgrep/internal/ui"
)

// ErrNotText is returned when asked to preview a file that is not text.
var ErrNotText = errors.New("not a text file")

// Formatter names accepted by WithFormatter.
const (
	FormatterPlain     = "noop"
	FormatterTrueColor = "terminal16m"
	Formatter256       = "terminal256"
)

// maxDirEntries caps a directory listing.
const maxDirEntries = 50

// Window is a run of lines around a focus line.
type Window struct {
	Path  string
	Start int // Line number of Lines[0]
	Focus int
	Lines []string
}

// Previewer renders previews with a fixed style.
type Previewer struct {
	context   int
	style     *chroma.Style
	formatter chroma.Formatter
}

// Option configures a Previewer.
type Option func(*Previewer)

// WithStyle selects a chroma style by name. Unknown names fall back to
// chroma's default style.
func WithStyle(name string) Option {
	return func(p *Previewer) {
		p.style = styles.Get(name)
	}
}

// WithFormatter selects a chroma formatter by name, such as FormatterPlain.
func WithFormatter(name string) Option {
	return func(p *Previewer) {
		p.formatter = formatters.Get(name)
	}
}

// New creates a previewer showing contextLines lines on each side of the
// focus line.
func New(contextLines int, opts ...Option) *Previewer {
	p := &Previewer{
		context:   max(contextLines, 0),
		style:     styles.Fallback,
		formatter: formatters.Get(FormatterTrueColor),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.formatter == nil {
		p.formatter = formatters.Fallback
	}
	return p
}

// Window reads the lines around line from path. A line of 0 or less
// focuses the start of the file.
func (p *Previewer) Window(path string, line int) (Window, error) {
	f, err := os.Open(path)
	if err != nil {
		return Window{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sample, err := fs.ReadSample(f)
	if err != nil {
		return Window{}, fmt.Errorf("failed to read file: %w", err)
	}
	if len(sample) > 0 && !fs.IsSearchableText(sample) {
		return Window{}, ErrNotText
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Window{}, fmt.Errorf("failed to rewind file: %w", err)
	}

	focus := max(line, 1)
	w := Window{
		Path:  path,
		Start: max(focus-p.context, 1),
		Focus: focus,
	}
	last := focus + p.context

	lines := fs.NewLineReader(f)
	for {
		text, n, err := lines.Next()
		if errors.Is(err, io.EOF) || n > last {
			break
		}
		if err != nil {
			log.Debug("Preview stopped early", "path", path, "line", n, "error", err)
			break
		}
		if n >= w.Start {
			w.Lines = append(w.Lines, text)
		}
	}
	return w, nil
}

// Render returns the highlighted window around line, each line prefixed
// with its number.
func (p *Previewer) Render(path string, line int) (string, error) {
	w, err := p.Window(path, line)
	if err != nil {
		return "", err
	}
	if len(w.Lines) == 0 {
		return "", nil
	}

	highlighted := p.highlight(path, w.Lines)
	var sb strings.Builder
	for i, text := range highlighted {
		n := w.Start + i
		sb.WriteString(ui.FormatGutter(n, n == w.Focus))
		sb.WriteString(" ")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// highlight tokenises the window as a whole and splits it back into lines.
// It returns the input unchanged when chroma fails.
func (p *Previewer) highlight(path string, lines []string) []string {
	lexer := lexers.Match(path)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, strings.Join(lines, "\n"))
	if err != nil {
		return lines
	}
	var buf bytes.Buffer
	if err := p.formatter.Format(&buf, p.style, iterator); err != nil {
		return lines
	}

	out := strings.Split(buf.String(), "\n")
	if len(out) == len(lines)+1 {
		// A trailing newline, possibly followed by a colour reset
		tail := out[len(lines)]
		out = out[:len(lines)]
		out[len(lines)-1] += tail
	}
	if len(out) != len(lines) {
		return lines
	}
	return out
}

// RenderDir lists the entries of a directory, directories first.
func (p *Previewer) RenderDir(path string) (string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("failed to read directory: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].IsDir() && !entries[j].IsDir()
	})

	var sb strings.Builder
	for i, e := range entries {
		if i == maxDirEntries {
			sb.WriteString(ui.Dim.Render(fmt.Sprintf("     ... %d more", len(entries)-maxDirEntries)))
			sb.WriteString("\n")
			break
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		sb.WriteString("     ")
		sb.WriteString(ui.Icon.Render(fs.IconHint(name, e.IsDir())))
		sb.WriteString(" ")
		sb.WriteString(name)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
