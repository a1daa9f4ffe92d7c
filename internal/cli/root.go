// Package cli implements the command-line interface for fzgrep.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nickcecere/fzgrep/internal/channels"
	"github.com/nickcecere/fzgrep/internal/config"
	"github.com/nickcecere/fzgrep/internal/ui"
)

var (
	// Version information set at build time
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile string
	debug   bool
)

// stdinIsPiped reports whether something is piped into the process.
var stdinIsPiped = func() bool {
	fd := os.Stdin.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// SetVersionInfo sets the version information from build flags.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fzgrep",
	Short: "Fuzzy search over files, lines and piped input",
	Long: `fzgrep fuzzy-searches the lines of text files, file paths, directories,
git repositories or lines piped on stdin.

Results are ranked while the channel is still being indexed; the command
waits for indexing to finish (or for --timeout) and prints one page.

Examples:
  # Search lines of text under the current directory
  fzgrep text -q "handlerfunc"

  # Find files, then search the lines of the best matches
  fzgrep files -q "cli" --pipe text --pipe-query "cobra"

  # Search piped input
  ps aux | fzgrep -q "postgres"`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !stdinIsPiped() {
			return cmd.Help()
		}
		return runSearch(cmd, channels.KindStdin, nil)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			ui.SetDebug(true)
			log.Debug("Debug logging enabled")
		}

		if err := config.Load(cfgFile); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	ui.InitLogger()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/fzgrep/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	addSearchFlags(rootCmd)

	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(dirsCmd)
	rootCmd.AddCommand(gitReposCmd)
	rootCmd.AddCommand(stdinCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "fzgrep %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}
