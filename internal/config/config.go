// Package config handles configuration loading and validation for fzgrep.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config represents the complete fzgrep configuration.
type Config struct {
	Channels ChannelsConfig `mapstructure:"channels"`
	Matcher  MatcherConfig  `mapstructure:"matcher"`
	UI       UIConfig       `mapstructure:"ui"`
	History  HistoryConfig  `mapstructure:"history"`
	Ignore   []string       `mapstructure:"ignore"`
	Exclude  []string       `mapstructure:"exclude"`
}

// ChannelsConfig configures content ingestion.
type ChannelsConfig struct {
	MaxFileSize      int64 `mapstructure:"max_file_size"`
	MaxLinesInMem    int64 `mapstructure:"max_lines_in_mem"`
	AvgLinesPerFile  int64 `mapstructure:"avg_lines_per_file"`
	NumThreads       int   `mapstructure:"num_threads"`
	IncludeHidden    bool  `mapstructure:"include_hidden"`
	UseGitignore     bool  `mapstructure:"use_gitignore"`
	GitReposMaxDepth int   `mapstructure:"git_repos_max_depth"`
	Watch            bool  `mapstructure:"watch"`
}

// MatcherConfig configures the fuzzy index.
type MatcherConfig struct {
	TickBudget int `mapstructure:"tick_budget"`
}

// UIConfig configures the result loop and previews.
type UIConfig struct {
	TickRate       time.Duration `mapstructure:"tick_rate"`
	PreviewContext int           `mapstructure:"preview_context"`
	PreviewStyle   string        `mapstructure:"preview_style"`
}

// HistoryConfig configures the query history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Limit   int    `mapstructure:"limit"`
}

// Global configuration instance
var cfg *Config

// Get returns the current configuration.
func Get() *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Channels: ChannelsConfig{
			MaxFileSize:      DefaultMaxFileSize,
			MaxLinesInMem:    DefaultMaxLinesInMem,
			AvgLinesPerFile:  DefaultAvgLinesPerFile,
			UseGitignore:     true,
			GitReposMaxDepth: DefaultGitReposMaxDepth,
		},
		Matcher: MatcherConfig{
			TickBudget: DefaultTickBudget,
		},
		UI: UIConfig{
			TickRate:       DefaultTickRate,
			PreviewContext: DefaultPreviewContext,
			PreviewStyle:   DefaultPreviewStyle,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath(),
			Limit:   DefaultHistoryLimit,
		},
		Ignore: DefaultIgnorePatterns(),
	}
}

// Load reads configuration from file and environment variables.
func Load(configFile string) error {
	// Set defaults
	setDefaults()

	// Set config file if specified
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// Search for config in standard locations
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(DefaultConfigDir())

		// Also check for .fzgreprc.yaml in current directory and parents
		if rcPath := findRCFile(); rcPath != "" {
			viper.SetConfigFile(rcPath)
		}
	}

	// Environment variables
	viper.SetEnvPrefix("FZGREP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("No config file found, using defaults")
	} else {
		log.Debug("Loaded config from", "file", viper.ConfigFileUsed())
	}

	// Unmarshal into config struct
	loaded := &Config{}
	if err := viper.Unmarshal(loaded); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	cfg = loaded
	return nil
}

// Validate rejects settings the channels cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.Channels.MaxFileSize <= 0:
		return errors.New("invalid config: channels.max_file_size must be positive")
	case c.Channels.MaxLinesInMem <= 0:
		return errors.New("invalid config: channels.max_lines_in_mem must be positive")
	case c.Channels.AvgLinesPerFile <= 0:
		return errors.New("invalid config: channels.avg_lines_per_file must be positive")
	case c.Channels.NumThreads < 0:
		return errors.New("invalid config: channels.num_threads must not be negative")
	case c.Matcher.TickBudget <= 0:
		return errors.New("invalid config: matcher.tick_budget must be positive")
	case c.UI.TickRate <= 0:
		return errors.New("invalid config: ui.tick_rate must be positive")
	}
	return nil
}

// setDefaults sets default values in viper.
func setDefaults() {
	// Channels
	viper.SetDefault("channels.max_file_size", DefaultMaxFileSize)
	viper.SetDefault("channels.max_lines_in_mem", DefaultMaxLinesInMem)
	viper.SetDefault("channels.avg_lines_per_file", DefaultAvgLinesPerFile)
	viper.SetDefault("channels.num_threads", 0)
	viper.SetDefault("channels.include_hidden", false)
	viper.SetDefault("channels.use_gitignore", true)
	viper.SetDefault("channels.git_repos_max_depth", DefaultGitReposMaxDepth)
	viper.SetDefault("channels.watch", false)

	// Matcher
	viper.SetDefault("matcher.tick_budget", DefaultTickBudget)

	// UI
	viper.SetDefault("ui.tick_rate", DefaultTickRate)
	viper.SetDefault("ui.preview_context", DefaultPreviewContext)
	viper.SetDefault("ui.preview_style", DefaultPreviewStyle)

	// History
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", DefaultHistoryPath())
	viper.SetDefault("history.limit", DefaultHistoryLimit)

	// Ignore patterns
	viper.SetDefault("ignore", DefaultIgnorePatterns())
	viper.SetDefault("exclude", []string{})
}

// findRCFile searches for .fzgreprc.yaml starting from current directory.
func findRCFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		rcPath := filepath.Join(dir, RCFileName)
		if _, err := os.Stat(rcPath); err == nil {
			return rcPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// ConfigFilePath returns the path of the loaded config file, or empty string if none.
func ConfigFilePath() string {
	return viper.ConfigFileUsed()
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}
