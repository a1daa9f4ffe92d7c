package channels

import (
	"bufio"
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/fzgrep/internal/fs"
	"github.com/nickcecere/fzgrep/internal/matcher"
)

// stdinBufferSize is the longest piped line accepted. A longer line ends
// the stream with an error.
const stdinBufferSize = 1 << 20

// StdinChannel searches lines piped into the process.
type StdinChannel struct {
	*base[string]
}

func identityLine(s string) string { return s }

func stdinEntry(it matcher.Item[string]) Entry {
	return Entry{
		Name:        it.Inner,
		Value:       it.MatchedString,
		MatchRanges: matchRanges(it.MatchedString, it.MatchIndices),
		Preview:     Preview{Kind: PreviewBasic},
	}
}

// NewStdin starts a channel reading lines from r until EOF, an error or
// shutdown. Lines are normalized and empty ones dropped.
//
// A blocked Read on r cannot be interrupted: the background goroutine
// only notices shutdown between lines.
func NewStdin(r io.Reader, opts Options) *StdinChannel {
	ch := &StdinChannel{base: newBase(KindStdin, opts.Matcher, stdinEntry)}
	ch.start(func(ctx context.Context, inj matcher.Injector[string]) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), stdinBufferSize)

		var pushed int64
		for scanner.Scan() {
			if ctx.Err() != nil || pushed >= opts.MaxLinesInMem {
				return
			}
			line := fs.PreprocessLine(scanner.Text())
			if line == "" {
				continue
			}
			inj.Push(line, identityLine)
			pushed++
		}
		if err := scanner.Err(); err != nil {
			log.Warn("Error reading stdin", "error", err)
		}
	})
	return ch
}
