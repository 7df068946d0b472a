// Package logging builds the diagnostic logger used across scoped-installer.
//
// Diagnostics go to stderr by default. With a log file they go to a
// size-rotated file instead, at debug level, so the terminal only shows the
// output of the activation and install commands themselves.
package logging

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Prefix is printed in front of every terminal log line.
const Prefix = "scoped-installer"

// Rotation defaults, overridable through the environment variables below.
const (
	DefaultMaxSizeMB  = 1
	DefaultMaxBackups = 2
	DefaultMaxAgeDays = 30

	EnvMaxSize    = "SCOPED_INSTALLER_LOG_MAX_SIZE"
	EnvMaxBackups = "SCOPED_INSTALLER_LOG_MAX_BACKUPS"
	EnvMaxAge     = "SCOPED_INSTALLER_LOG_MAX_AGE"
)

// Options selects where and how much to log.
type Options struct {
	// Verbose enables debug output on the terminal.
	Verbose bool

	// File, if set, receives all diagnostics instead of Stderr.
	File string

	// Stderr is the terminal sink. Nil means os.Stderr.
	Stderr io.Writer
}

// New returns a logger for opts. The returned closer releases the log file
// and is safe to call when no file is in use.
func New(opts Options) (*log.Logger, io.Closer) {
	if opts.File != "" {
		sink := newRotatingFile(opts.File)
		logger := log.NewWithOptions(sink, log.Options{
			Level:           log.DebugLevel,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Formatter:       log.LogfmtFormatter,
		})
		return logger, sink
	}

	w := opts.Stderr
	if w == nil {
		w = os.Stderr
	}
	level := log.InfoLevel
	if opts.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		Level:  level,
		Prefix: Prefix,
	})
	return logger, nopCloser{}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// newRotatingFile configures lumberjack from the defaults and the
// environment.
func newRotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    envInt(EnvMaxSize, DefaultMaxSizeMB, 1),
		MaxBackups: envInt(EnvMaxBackups, DefaultMaxBackups, 0),
		MaxAge:     envInt(EnvMaxAge, DefaultMaxAgeDays, 1),
	}
}

// envInt reads an integer of at least floor from key, falling back to def.
func envInt(key string, def, floor int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < floor {
		return def
	}
	return n
}
