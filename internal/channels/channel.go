// Package channels implements the searchable channels: each one owns a fuzzy
// index and a background task feeding it, behind the OnAir contract.
package channels

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/nickcecere/fzgrep/internal/config"
	"github.com/nickcecere/fzgrep/internal/fs"
	"github.com/nickcecere/fzgrep/internal/matcher"
)

var (
	// ErrUnsupportedPipe is returned when a channel kind cannot seed another.
	ErrUnsupportedPipe = errors.New("unsupported pipe")

	// ErrUnknownKind is returned for a channel name that is not recognised.
	ErrUnknownKind = errors.New("unknown channel kind")
)

// OnAir is the lifecycle and query contract every channel implements.
// Results, counters and Running never block on ingestion.
type OnAir interface {
	// Kind identifies the channel variant.
	Kind() Kind
	// Find replaces the active query.
	Find(pattern string)
	// Results advances scoring by one tick and returns up to count ranked
	// entries starting at offset.
	Results(count, offset uint32) []Entry
	// GetResult returns the entry ranked at index.
	GetResult(index uint32) (Entry, bool)
	// ResultCount is the number of entries matching the query so far.
	ResultCount() uint32
	// TotalCount is the number of entries ingested so far.
	TotalCount() uint32
	// Running reports whether the index still has unscored entries.
	Running() bool
	// Shutdown stops ingestion. It is idempotent and does not wait.
	Shutdown()
	// Done is closed once background ingestion has ended.
	Done() <-chan struct{}
}

// Kind is the closed set of channel variants.
type Kind int

const (
	KindFiles Kind = iota
	KindDirs
	KindGitRepos
	KindText
	KindStdin
)

var kindNames = map[Kind]string{
	KindFiles:    "files",
	KindDirs:     "dirs",
	KindGitRepos: "git-repos",
	KindText:     "text",
	KindStdin:    "stdin",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a channel name such as "text" or "git-repos".
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// PreviewKind tells a front end how to preview an entry.
type PreviewKind int

const (
	PreviewFile PreviewKind = iota
	PreviewDirectory
	PreviewBasic
)

func (p PreviewKind) String() string {
	switch p {
	case PreviewFile:
		return "file"
	case PreviewDirectory:
		return "directory"
	default:
		return "basic"
	}
}

// Preview locates what to show for an entry.
type Preview struct {
	Kind PreviewKind
	Path string
}

// MatchRange is a half-open byte range of Entry.Value hit by the query.
type MatchRange struct {
	Start int
	End   int
}

// Entry is a result, derived fresh from the index on every call.
type Entry struct {
	Name        string       // Display path or raw value
	Value       string       // Text the query was matched against
	MatchRanges []MatchRange // Query hits within Value
	LineNumber  int          // 1-based, 0 when not applicable
	Icon        string       // File-type hint
	Preview     Preview
}

// DisplayName is the name with the line number appended when there is one.
func (e Entry) DisplayName() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("%s:%d", e.Name, e.LineNumber)
	}
	return e.Name
}

// Options configures channel ingestion.
type Options struct {
	// BaseDir is the directory paths are reported relative to.
	BaseDir string

	// MaxFileSize skips larger files without opening them.
	MaxFileSize int64

	// MaxLinesInMem is the soft ceiling on lines ingested per channel.
	MaxLinesInMem int64

	// AvgLinesPerFile sizes the file cap when piping into a text channel.
	AvgLinesPerFile int64

	// NumThreads bounds crawl parallelism. Zero means runtime.NumCPU().
	NumThreads int

	IncludeHidden  bool
	UseGitignore   bool
	IgnorePatterns []string
	Exclude        []string

	// GitReposMaxDepth limits the search for repositories.
	GitReposMaxDepth int

	// Watch keeps text channels ingesting files created after the crawl.
	Watch bool

	Matcher matcher.Config
}

// DefaultOptions returns the default options, relative to the working
// directory.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// OptionsFromConfig builds channel options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	baseDir, err := os.Getwd()
	if err != nil {
		baseDir = ""
	}
	return Options{
		BaseDir:          baseDir,
		MaxFileSize:      cfg.Channels.MaxFileSize,
		MaxLinesInMem:    cfg.Channels.MaxLinesInMem,
		AvgLinesPerFile:  cfg.Channels.AvgLinesPerFile,
		NumThreads:       cfg.Channels.NumThreads,
		IncludeHidden:    cfg.Channels.IncludeHidden,
		UseGitignore:     cfg.Channels.UseGitignore,
		IgnorePatterns:   cfg.Ignore,
		Exclude:          cfg.Exclude,
		GitReposMaxDepth: cfg.Channels.GitReposMaxDepth,
		Watch:            cfg.Channels.Watch,
		Matcher:          matcher.Config{TickBudget: cfg.Matcher.TickBudget},
	}
}

// MaxPipedFiles is how many files a files channel may hand to a text
// channel: the line budget divided by the assumed lines per file.
func MaxPipedFiles(opts Options) int64 {
	avg := opts.AvgLinesPerFile
	if avg <= 0 {
		avg = config.DefaultAvgLinesPerFile
	}
	return max(opts.MaxLinesInMem/avg, 1)
}

func (o Options) walkOptions(roots []string) fs.WalkOptions {
	wo := fs.DefaultWalkOptions()
	wo.Roots = roots
	wo.NumThreads = o.NumThreads
	wo.IgnorePatterns = o.IgnorePatterns
	wo.Exclude = o.Exclude
	wo.IncludeHidden = o.IncludeHidden
	wo.UseGitignore = o.UseGitignore
	return wo
}

// base is the part every channel shares: the index, the background task
// and its cancellation.
type base[T any] struct {
	kind    Kind
	matcher *matcher.Matcher[T]
	toEntry func(matcher.Item[T]) Entry

	cancel       context.CancelFunc
	done         chan struct{}
	shutdownOnce sync.Once
}

func newBase[T any](kind Kind, cfg matcher.Config, toEntry func(matcher.Item[T]) Entry) *base[T] {
	return &base[T]{
		kind:    kind,
		matcher: matcher.New[T](cfg),
		toEntry: toEntry,
		done:    make(chan struct{}),
	}
}

// start runs task in the background. The task owns the injector; the
// channel keeps no handle on it besides cancellation.
func (b *base[T]) start(task func(ctx context.Context, inj matcher.Injector[T])) {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	inj := b.matcher.Injector()
	go func() {
		defer close(b.done)
		task(ctx, inj)
	}()
}

func (b *base[T]) Kind() Kind { return b.kind }

func (b *base[T]) Find(pattern string) { b.matcher.Find(pattern) }

func (b *base[T]) Results(count, offset uint32) []Entry {
	b.matcher.Tick()
	items := b.matcher.Results(count, offset)
	entries := make([]Entry, len(items))
	for i, it := range items {
		entries[i] = b.toEntry(it)
	}
	return entries
}

func (b *base[T]) GetResult(index uint32) (Entry, bool) {
	it, ok := b.matcher.GetResult(index)
	if !ok {
		return Entry{}, false
	}
	return b.toEntry(it), true
}

func (b *base[T]) ResultCount() uint32 { return b.matcher.MatchedCount() }

func (b *base[T]) TotalCount() uint32 { return b.matcher.TotalCount() }

func (b *base[T]) Running() bool { return b.matcher.Running() }

// Shutdown seals the index so nothing in flight lands after it, then
// cancels the background task without waiting for it.
func (b *base[T]) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.matcher.Close()
		if b.cancel != nil {
			b.cancel()
		}
	})
}

func (b *base[T]) Done() <-chan struct{} { return b.done }

// matchRanges turns the byte offsets of matched runes into merged ranges.
func matchRanges(text string, indices []int) []MatchRange {
	if len(indices) == 0 {
		return nil
	}
	ranges := make([]MatchRange, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(text) {
			continue
		}
		_, size := utf8.DecodeRuneInString(text[idx:])
		end := idx + size
		if n := len(ranges); n > 0 && ranges[n-1].End == idx {
			ranges[n-1].End = end
			continue
		}
		ranges = append(ranges, MatchRange{Start: idx, End: end})
	}
	return ranges
}
