package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickcecere/fzgrep/internal/config"
	"github.com/nickcecere/fzgrep/internal/ui"
)

var configShowPath bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long: `Display current configuration settings and config file locations.

Examples:
  # Show current configuration
  fzgrep config

  # Show config file paths
  fzgrep config --path`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configShowPath, "path", false, "show config file paths")
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg := config.Get()

	if configShowPath {
		fmt.Fprintln(out, ui.SectionTitle.Render("Configuration Paths"))
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Global config: %s\n", config.GlobalConfigPath())
		fmt.Fprintf(out, "Local config:  %s (searched from cwd upward)\n", config.RCFileName)
		fmt.Fprintf(out, "Active config: %s\n", config.ConfigFilePath())
		fmt.Fprintf(out, "History:       %s\n", cfg.History.Path)
		return nil
	}

	fmt.Fprintln(out, ui.SectionTitle.Render("Current Configuration"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, ui.Bold.Render("Channels:"))
	fmt.Fprintf(out, "  Max File Size: %d bytes\n", cfg.Channels.MaxFileSize)
	fmt.Fprintf(out, "  Max Lines In Memory: %d\n", cfg.Channels.MaxLinesInMem)
	fmt.Fprintf(out, "  Avg Lines Per File: %d\n", cfg.Channels.AvgLinesPerFile)
	threads := "auto"
	if cfg.Channels.NumThreads > 0 {
		threads = fmt.Sprint(cfg.Channels.NumThreads)
	}
	fmt.Fprintf(out, "  Threads: %s\n", threads)
	fmt.Fprintf(out, "  Include Hidden: %t\n", cfg.Channels.IncludeHidden)
	fmt.Fprintf(out, "  Use Gitignore: %t\n", cfg.Channels.UseGitignore)
	fmt.Fprintf(out, "  Git Repos Max Depth: %d\n", cfg.Channels.GitReposMaxDepth)
	fmt.Fprintf(out, "  Watch: %t\n", cfg.Channels.Watch)
	fmt.Fprintln(out)

	fmt.Fprintln(out, ui.Bold.Render("Matcher:"))
	fmt.Fprintf(out, "  Tick Budget: %d\n", cfg.Matcher.TickBudget)
	fmt.Fprintln(out)

	fmt.Fprintln(out, ui.Bold.Render("UI:"))
	fmt.Fprintf(out, "  Tick Rate: %s\n", cfg.UI.TickRate)
	fmt.Fprintf(out, "  Preview Context: %d lines\n", cfg.UI.PreviewContext)
	fmt.Fprintf(out, "  Preview Style: %s\n", cfg.UI.PreviewStyle)
	fmt.Fprintln(out)

	fmt.Fprintln(out, ui.Bold.Render("History:"))
	fmt.Fprintf(out, "  Enabled: %t\n", cfg.History.Enabled)
	fmt.Fprintf(out, "  Path: %s\n", cfg.History.Path)
	fmt.Fprintf(out, "  Limit: %d\n", cfg.History.Limit)
	fmt.Fprintln(out)

	fmt.Fprintln(out, ui.Bold.Render("Ignore Patterns:"))
	fmt.Fprintf(out, "  %d patterns configured\n", len(cfg.Ignore))
	fmt.Fprintf(out, "  %d exclude globs configured\n", len(cfg.Exclude))

	return nil
}
