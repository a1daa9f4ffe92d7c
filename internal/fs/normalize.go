package fs

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const (
	// MaxLineLength is the number of bytes of a line that are kept. The rest
	// of the line is discarded before it is ever normalized.
	MaxLineLength = 300

	// tabWidth is the number of spaces a TAB expands to.
	tabWidth = 4
)

var tabReplacement = strings.Repeat(" ", tabWidth)

// lineCleaner fixes ill-formed UTF-8 and drops characters that would break
// a single terminal row.
var lineCleaner = transform.Chain(
	runes.ReplaceIllFormed(),
	runes.Remove(runes.Predicate(isNonPrintable)),
)

// isNonPrintable matches C0/C1 control characters (TAB excepted, it is
// expanded separately) and format characters such as BOMs and zero-width
// joiners.
func isNonPrintable(r rune) bool {
	if r == '\t' {
		return false
	}
	return unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
}

// PreprocessLine normalizes a raw line so it renders safely on one terminal
// row. The result may be empty, in which case the line is not searchable.
func PreprocessLine(line string) string {
	line = strings.TrimRight(line, "\r\n\x00")
	line = truncateAtRuneBoundary(line, MaxLineLength)

	if isPlainASCII(line) {
		return line
	}

	cleaned, _, err := transform.String(lineCleaner, line)
	if err != nil {
		// Only a transformer bug gets here; keep what is certainly safe
		cleaned = strings.ToValidUTF8(line, string(utf8.RuneError))
	}
	return strings.ReplaceAll(cleaned, "\t", tabReplacement)
}

// isPlainASCII reports whether s only holds printable ASCII.
func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// truncateAtRuneBoundary cuts s to at most n bytes without splitting a
// multi-byte rune.
func truncateAtRuneBoundary(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	// Invalid input may have no rune start in range
	if cut == 0 {
		cut = n
	}
	return s[:cut]
}
