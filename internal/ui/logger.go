// Package ui provides terminal styling and logger setup for fzgrep.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// InitLogger sends the charm logger to stderr, keeping stdout for results.
func InitLogger() {
	InitLoggerTo(os.Stderr)
}

// InitLoggerTo configures the default logger to write to w.
func InitLoggerTo(w io.Writer) {
	log.SetOutput(w)
	log.SetLevel(log.InfoLevel)
	log.SetPrefix("fzgrep")
	log.SetReportCaller(false)
	log.SetReportTimestamp(false)
}

// SetDebug toggles debug logging. Debug output also reports timestamps so
// crawl and tick progress can be followed.
func SetDebug(enabled bool) {
	if enabled {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
		return
	}
	log.SetLevel(log.InfoLevel)
	log.SetReportTimestamp(false)
}
