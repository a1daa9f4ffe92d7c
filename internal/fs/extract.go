package fs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

// maxKeptBytes is how much of a physical line is buffered. The extra bytes
// let truncation land on a rune boundary and leave room for a trailing CRLF.
const maxKeptBytes = MaxLineLength + utf8.UTFMax

// cancelCheckInterval is how many lines are read between context checks.
const cancelCheckInterval = 1024

// ExtractLines streams the non-empty normalized lines of a text file to emit
// and returns how many were emitted. Paths are reported relative to baseDir
// when the file lives under it.
//
// Only a failure to open the file is returned as an error. Files that are
// empty or not text yield (0, nil). A read error in the middle of the file
// is logged and ends extraction; lines already emitted are kept.
func ExtractLines(ctx context.Context, path, baseDir string, emit func(CandidateLine)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sample, err := ReadSample(f)
	if err != nil {
		log.Debug("Failed to read sample", "path", path, "error", err)
		return 0, nil
	}
	if !IsSearchableText(sample) {
		return 0, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		log.Debug("Failed to rewind file", "path", path, "error", err)
		return 0, nil
	}

	relPath := RelativePath(baseDir, path)
	lines := NewLineReader(f)

	count := 0
	for {
		if lines.LineNumber()%cancelCheckInterval == 0 && ctx.Err() != nil {
			return count, nil
		}

		line, lineNumber, err := lines.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			log.Warn("Error reading line", "path", path, "line", lineNumber, "error", err)
			return count, nil
		}
		if line == "" {
			continue
		}
		emit(CandidateLine{
			Path:       relPath,
			Line:       line,
			LineNumber: lineNumber,
		})
		count++
	}
}

// LineReader yields the normalized physical lines of a reader. Each line is
// read through a bounded buffer, so a huge line costs no more memory than a
// short one.
type LineReader struct {
	r          *bufio.Reader
	buf        []byte
	lineNumber int
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:   bufio.NewReader(r),
		buf: make([]byte, 0, maxKeptBytes),
	}
}

// Next returns the next line after PreprocessLine and its 1-based number.
// It returns io.EOF once the input is exhausted; on other errors the line
// number is the one that failed.
func (lr *LineReader) Next() (string, int, error) {
	raw, err := readBoundedLine(lr.r, lr.buf)
	if errors.Is(err, io.EOF) {
		return "", lr.lineNumber, io.EOF
	}
	if err != nil {
		return "", lr.lineNumber + 1, err
	}
	lr.lineNumber++
	return PreprocessLine(string(raw)), lr.lineNumber, nil
}

// LineNumber is the number of the last line returned by Next.
func (lr *LineReader) LineNumber() int { return lr.lineNumber }

// readBoundedLine reads one physical line into buf, keeping at most
// maxKeptBytes of it and discarding the rest. It returns io.EOF only when no
// bytes were left to read.
func readBoundedLine(r *bufio.Reader, buf []byte) ([]byte, error) {
	buf = buf[:0]
	read := 0
	for {
		chunk, err := r.ReadSlice('\n')
		read += len(chunk)
		if room := maxKeptBytes - len(buf); room > 0 {
			buf = append(buf, chunk[:min(len(chunk), room)]...)
		}

		switch {
		case err == nil:
			return buf, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if read == 0 {
				return nil, io.EOF
			}
			// Last line without a trailing newline
			return buf, nil
		default:
			return nil, err
		}
	}
}

// RelativePath returns path relative to baseDir when path lives under it,
// and the absolute path otherwise.
func RelativePath(baseDir, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if baseDir == "" {
		return abs
	}
	rel, err := filepath.Rel(baseDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}
	return rel
}
