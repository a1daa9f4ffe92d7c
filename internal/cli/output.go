package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/nickcecere/fzgrep/internal/channels"
	"github.com/nickcecere/fzgrep/internal/preview"
	"github.com/nickcecere/fzgrep/internal/ui"
)

// resultPage is one page of results and the channel state it came from.
type resultPage struct {
	Channel channels.Kind
	Query   string
	Entries []channels.Entry
	Matched uint32
	Total   uint32
	Running bool
}

// writeResults prints a page for a terminal, with an optional preview under
// each entry.
func writeResults(w io.Writer, page resultPage, p *preview.Previewer) error {
	if len(page.Entries) == 0 {
		fmt.Fprintln(w, ui.Dim.Render("No results found."))
	}

	for _, e := range page.Entries {
		fmt.Fprintln(w, formatEntry(e))
		if p != nil {
			if body := renderPreview(p, e); body != "" {
				fmt.Fprint(w, body)
				fmt.Fprintln(w)
			}
		}
	}

	fmt.Fprintln(w, ui.FormatCounts(page.Matched, page.Total, page.Running))
	return nil
}

// formatEntry renders one result line: the location and matched line for
// text entries, the highlighted value for everything else.
func formatEntry(e channels.Entry) string {
	spans := make([]ui.Span, len(e.MatchRanges))
	for i, r := range e.MatchRanges {
		spans[i] = ui.Span{Start: r.Start, End: r.End}
	}

	if e.LineNumber > 0 {
		return ui.FormatLocation(e.Name, e.LineNumber) + "  " + ui.HighlightSpans(e.Value, spans, ui.ResultText)
	}

	var base lipgloss.Style
	switch e.Preview.Kind {
	case channels.PreviewFile, channels.PreviewDirectory:
		base = ui.FilePath
	default:
		base = ui.ResultText
	}
	return ui.HighlightSpans(e.Value, spans, base)
}

func renderPreview(p *preview.Previewer, e channels.Entry) string {
	var (
		body string
		err  error
	)
	switch e.Preview.Kind {
	case channels.PreviewFile:
		body, err = p.Render(e.Preview.Path, e.LineNumber)
	case channels.PreviewDirectory:
		body, err = p.RenderDir(e.Preview.Path)
	default:
		return ""
	}
	if err != nil {
		if !errors.Is(err, preview.ErrNotText) {
			log.Debug("Preview failed", "path", e.Preview.Path, "error", err)
		}
		return ""
	}
	return body
}

// jsonEntry is the JSON form of a result.
type jsonEntry struct {
	Name        string   `json:"name"`
	Line        int      `json:"line,omitempty"`
	Value       string   `json:"value"`
	Matches     [][2]int `json:"matches,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Preview     string   `json:"preview"`
	PreviewPath string   `json:"preview_path,omitempty"`
}

type jsonPage struct {
	Channel string      `json:"channel"`
	Query   string      `json:"query"`
	Matched uint32      `json:"matched"`
	Total   uint32      `json:"total"`
	Running bool        `json:"running"`
	Results []jsonEntry `json:"results"`
}

func writeJSON(w io.Writer, page resultPage) error {
	out := jsonPage{
		Channel: page.Channel.String(),
		Query:   page.Query,
		Matched: page.Matched,
		Total:   page.Total,
		Running: page.Running,
		Results: make([]jsonEntry, 0, len(page.Entries)),
	}
	for _, e := range page.Entries {
		je := jsonEntry{
			Name:        e.Name,
			Line:        e.LineNumber,
			Value:       e.Value,
			Icon:        e.Icon,
			Preview:     e.Preview.Kind.String(),
			PreviewPath: e.Preview.Path,
		}
		for _, r := range e.MatchRanges {
			je.Matches = append(je.Matches, [2]int{r.Start, r.End})
		}
		out.Results = append(out.Results, je)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
