package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/fzgrep/internal/channels"
	"github.com/nickcecere/fzgrep/internal/config"
	"github.com/nickcecere/fzgrep/internal/history"
	"github.com/nickcecere/fzgrep/internal/preview"
)

var (
	searchQuery     string
	searchLimit     int
	searchOffset    int
	searchPipe      string
	searchPipeQuery string
	searchJSON      bool
	searchPreview   bool
	searchTimeout   time.Duration
	searchWatch     bool
	searchWorkdir   string
)

var textCmd = newChannelCmd(channels.KindText,
	"Search the lines of text files",
	`Crawl directories in parallel and fuzzy-search every line of every text file.

Binary files, files over channels.max_file_size and ignored paths are skipped.
Ingestion stops once channels.max_lines_in_mem lines are held.

Examples:
  fzgrep text -q "todo"
  fzgrep text ./src ./docs -q "config load" -m 5 -p
  fzgrep text -q "panic" --watch --timeout 30s`)

var filesCmd = newChannelCmd(channels.KindFiles,
	"Search file paths",
	`Fuzzy-search the paths of files under the given directories.

Examples:
  fzgrep files -q "walker"
  fzgrep files -q "_test.go" --pipe text --pipe-query "Eventually"`)

var dirsCmd = newChannelCmd(channels.KindDirs,
	"Search directory paths",
	`Fuzzy-search the directories under the given directories.

Examples:
  fzgrep dirs -q "internal"
  fzgrep dirs -q "cli" --pipe files`)

var gitReposCmd = newChannelCmd(channels.KindGitRepos,
	"Search git repositories",
	`Find git repositories under the given directories and fuzzy-search them.

Examples:
  fzgrep git-repos ~/src -q "fzgrep"`)

var stdinCmd = newChannelCmd(channels.KindStdin,
	"Search lines piped on stdin",
	`Fuzzy-search the lines read from standard input.

Examples:
  git log --oneline | fzgrep stdin -q "fix"`)

func newChannelCmd(kind channels.Kind, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind.String() + " [dirs...]",
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, kind, args)
		},
	}
	if kind == channels.KindStdin {
		cmd.Use = kind.String()
		cmd.Args = cobra.NoArgs
	}
	addSearchFlags(cmd)
	return cmd
}

func addSearchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&searchQuery, "query", "q", "", "fuzzy query")
	f.IntVarP(&searchLimit, "limit", "m", 20, "maximum number of results")
	f.IntVar(&searchOffset, "offset", 0, "number of results to skip")
	f.StringVar(&searchPipe, "pipe", "", "seed a new channel of this kind (text, files) with the results")
	f.StringVar(&searchPipeQuery, "pipe-query", "", "query for the piped channel")
	f.BoolVar(&searchJSON, "json", false, "output results as JSON")
	f.BoolVarP(&searchPreview, "preview", "p", false, "show a preview under each result")
	f.DurationVar(&searchTimeout, "timeout", 0, "stop waiting for indexing after this long (0 waits until done)")
	f.BoolVar(&searchWatch, "watch", false, "keep ingesting new files until interrupted or timed out (text)")
	f.StringVarP(&searchWorkdir, "workdir", "C", "", "run as if started in this directory")
}

// recordedQuery is a query to remember once results are printed.
type recordedQuery struct {
	kind  channels.Kind
	query string
}

func runSearch(cmd *cobra.Command, kind channels.Kind, args []string) error {
	if searchLimit < 0 || searchOffset < 0 {
		return errors.New("--limit and --offset must not be negative")
	}
	if int64(searchLimit) > math.MaxUint32 || int64(searchOffset) > math.MaxUint32 {
		return fmt.Errorf("--limit and --offset must not exceed %d", uint32(math.MaxUint32))
	}

	if searchWorkdir != "" {
		if err := os.Chdir(searchWorkdir); err != nil {
			return fmt.Errorf("failed to change working directory: %w", err)
		}
	}

	cfg := config.Get()
	opts := channels.OptionsFromConfig(cfg)
	if cmd.Flags().Changed("watch") {
		opts.Watch = searchWatch
	}

	var target channels.Kind
	if searchPipe != "" {
		var err error
		if target, err = channels.ParseKind(searchPipe); err != nil {
			return err
		}
	}

	roots, err := resolveRoots(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if searchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, searchTimeout)
		defer cancel()
	}

	ch, err := startChannel(cmd, kind, roots, opts)
	if err != nil {
		return err
	}
	defer func() { ch.Shutdown() }()

	log.Debug("Started channel", "kind", kind, "roots", roots, "query", searchQuery)
	ch.Find(searchQuery)
	waitForResults(ctx, ch, cfg.UI.TickRate)
	queries := []recordedQuery{{kind: kind, query: searchQuery}}

	if searchPipe != "" {
		piped, err := channels.Pipe(ch, target, opts)
		if err != nil {
			return err
		}
		ch.Shutdown()
		ch = piped

		log.Debug("Piped channel", "from", kind, "to", target, "query", searchPipeQuery)
		ch.Find(searchPipeQuery)
		waitForResults(ctx, ch, cfg.UI.TickRate)
		queries = append(queries, recordedQuery{kind: target, query: searchPipeQuery})
	}

	page := resultPage{
		Channel: ch.Kind(),
		Query:   queries[len(queries)-1].query,
		Entries: ch.Results(uint32(searchLimit), uint32(searchOffset)),
		Matched: ch.ResultCount(),
		Total:   ch.TotalCount(),
		Running: ch.Running(),
	}
	recordHistory(cfg, queries)

	out := cmd.OutOrStdout()
	if searchJSON {
		return writeJSON(out, page)
	}

	var previewer *preview.Previewer
	if searchPreview {
		formatter := preview.FormatterPlain
		if isTerminal(out) {
			formatter = preview.FormatterTrueColor
		}
		previewer = preview.New(cfg.UI.PreviewContext,
			preview.WithStyle(cfg.UI.PreviewStyle),
			preview.WithFormatter(formatter),
		)
	}
	return writeResults(out, page, previewer)
}

func startChannel(cmd *cobra.Command, kind channels.Kind, roots []string, opts channels.Options) (channels.OnAir, error) {
	if kind == channels.KindStdin {
		return channels.NewStdin(cmd.InOrStdin(), opts), nil
	}
	return channels.New(kind, roots, opts)
}

// resolveRoots makes the given directories absolute, defaulting to the
// working directory.
func resolveRoots(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	roots := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path: %w", err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("path does not exist: %w", err)
		}
		roots = append(roots, abs)
	}
	return roots, nil
}

// waitForResults ticks the channel until ingestion has ended and every
// entry is scored, or until ctx is done.
func waitForResults(ctx context.Context, ch channels.OnAir, tickRate time.Duration) {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	start := time.Now()
	for {
		ch.Results(0, 0)
		select {
		case <-ch.Done():
			for ch.Running() && ctx.Err() == nil {
				ch.Results(0, 0)
			}
			log.Debug("Channel settled",
				"matched", ch.ResultCount(),
				"total", ch.TotalCount(),
				"elapsed", time.Since(start),
			)
			return
		default:
		}

		select {
		case <-ctx.Done():
			log.Debug("Stopped waiting for results", "reason", context.Cause(ctx), "total", ch.TotalCount())
			return
		case <-ticker.C:
		}
	}
}

func recordHistory(cfg *config.Config, queries []recordedQuery) {
	if !cfg.History.Enabled {
		return
	}

	st, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Warn("Failed to open history", "error", err)
		return
	}
	defer st.Close()

	for _, q := range queries {
		if err := st.Record(q.kind.String(), q.query); err != nil {
			log.Warn("Failed to record query", "error", err)
		}
	}
}
