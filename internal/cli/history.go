package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickcecere/fzgrep/internal/channels"
	"github.com/nickcecere/fzgrep/internal/config"
	"github.com/nickcecere/fzgrep/internal/history"
	"github.com/nickcecere/fzgrep/internal/ui"
)

var historyClear bool

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [channel]",
	Short: "Show or clear recent queries",
	Long: `List the queries recently run against a channel, most recent first.
Without a channel, queries of every channel are listed.

Examples:
  # Recent queries of every channel
  fzgrep history

  # Recent text queries
  fzgrep history text

  # Forget the files history
  fzgrep history files --clear`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "delete the listed history")
}

func runHistory(cmd *cobra.Command, args []string) error {
	channel := ""
	if len(args) > 0 {
		kind, err := channels.ParseKind(args[0])
		if err != nil {
			return err
		}
		channel = kind.String()
	}

	cfg := config.Get()
	st, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if historyClear {
		n, err := st.Clear(channel)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ui.Success.Render(fmt.Sprintf("Cleared %d queries", n)))
		return nil
	}

	entries, err := st.Recent(channel, cfg.History.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, ui.Dim.Render("No history."))
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(out, "%s %s %s %s\n",
			ui.Dim.Render(fmt.Sprintf("%4d×", e.UseCount)),
			ui.Icon.Render(fmt.Sprintf("%-9s", e.Channel)),
			e.Query,
			ui.Dim.Render(e.LastUsed.Format(time.DateTime)),
		)
	}
	return nil
}
