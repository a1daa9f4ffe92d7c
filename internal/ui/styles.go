package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorPrimary   = lipgloss.Color("39")  // Cyan
	ColorSecondary = lipgloss.Color("212") // Pink
	ColorSuccess   = lipgloss.Color("82")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorError     = lipgloss.Color("196") // Red
	ColorMuted     = lipgloss.Color("245") // Gray
	ColorHighlight = lipgloss.Color("226") // Yellow
)

var (
	Bold   = lipgloss.NewStyle().Bold(true)
	Dim    = lipgloss.NewStyle().Foreground(ColorMuted)
	Header = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)

	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Error   = lipgloss.NewStyle().Foreground(ColorError)

	// Result line styles
	FilePath   = lipgloss.NewStyle().Foreground(ColorPrimary)
	LineNum    = lipgloss.NewStyle().Foreground(ColorMuted)
	FocusLine  = lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
	Match      = lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true).Underline(true)
	Icon       = lipgloss.NewStyle().Foreground(ColorSecondary)
	ResultText = lipgloss.NewStyle()

	SectionTitle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true).
			MarginTop(1)
	Divider = lipgloss.NewStyle().
		Foreground(ColorMuted)
)

// Span is a half-open byte range of a string.
type Span struct {
	Start int
	End   int
}

// HighlightSpans renders text with the spans in the Match style and the
// rest in base. Spans must be sorted and non-overlapping; out-of-range or
// inverted spans are ignored.
func HighlightSpans(text string, spans []Span, base lipgloss.Style) string {
	if len(spans) == 0 {
		return base.Render(text)
	}

	var sb strings.Builder
	pos := 0
	for _, s := range spans {
		if s.Start < pos || s.End > len(text) || s.Start >= s.End {
			continue
		}
		if s.Start > pos {
			sb.WriteString(base.Render(text[pos:s.Start]))
		}
		sb.WriteString(Match.Render(text[s.Start:s.End]))
		pos = s.End
	}
	if pos < len(text) {
		sb.WriteString(base.Render(text[pos:]))
	}
	return sb.String()
}

// HorizontalRule returns a styled horizontal divider.
func HorizontalRule(width int) string {
	return Divider.Render(strings.Repeat("─", max(width, 0)))
}

// FormatLocation formats a path with an optional line number.
func FormatLocation(path string, line int) string {
	if line <= 0 {
		return FilePath.Render(path)
	}
	return FilePath.Render(path) + LineNum.Render(fmt.Sprintf(":%d", line))
}

// FormatCounts formats matched over total entries.
func FormatCounts(matched, total uint32, running bool) string {
	s := fmt.Sprintf("%d/%d", matched, total)
	if running {
		s += " (still indexing)"
	}
	return Dim.Render(s)
}

// FormatGutter formats a preview line number, marking the focused line.
func FormatGutter(line int, focus bool) string {
	gutter := fmt.Sprintf("%4d│", line)
	if focus {
		return FocusLine.Render(gutter)
	}
	return LineNum.Render(gutter)
}
