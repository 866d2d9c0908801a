// ABOUTME: Process-wide structured logger setup
// ABOUTME: Level and format come from LOG_LEVEL and LOG_FORMAT, output goes to stderr

package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	defaultLogger *log.Logger
	mu            sync.Mutex
)

// Setup builds the default logger from the environment and installs it.
func Setup() *log.Logger {
	l := New(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	return l
}

// New builds a logger writing to w. Unknown levels fall back to info and
// unknown formats to text.
func New(w io.Writer, level, format string) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = log.InfoLevel
	}

	var formatter log.Formatter
	switch strings.ToLower(format) {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		formatter = log.TextFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "shichen",
		ReportTimestamp: true,
		Formatter:       formatter,
	})
}

// L returns the default logger, running Setup on first use.
func L() *log.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		return Setup()
	}
	return l
}

// Or returns l when non-nil and the default logger otherwise.
func Or(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return L()
}
