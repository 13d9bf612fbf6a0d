// Package dlog provides the disassembler's structured logging, env-var
// configurable and file-redirectable.
//
// Grounded on _examples/Dhruvchaudhary255-reverse/internal/logging/logger.go
// (env-var level/prefix/file-output) and
// internal/reverse/log/log.go (sync.Once setup, panic recovery).
package dlog

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerCloser wraps a *log.Logger with an optional underlying file Close.
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close releases the underlying writer if it is closeable.
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// NewWithWriter builds a logger writing to w, configured from
// DASM_LOG_LEVEL and DASM_LOG_PREFIX.
func NewWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})

	switch os.Getenv("DASM_LOG_LEVEL") {
	case "debug":
		lg.SetLevel(log.DebugLevel)
	case "warn":
		lg.SetLevel(log.WarnLevel)
	case "error":
		lg.SetLevel(log.ErrorLevel)
	default:
		lg.SetLevel(log.InfoLevel)
	}

	prefix := os.Getenv("DASM_LOG_PREFIX")
	if prefix == "" {
		prefix = "dasm "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok {
		closer = c
	}

	return &LoggerCloser{Logger: lg.WithPrefix(prefix), closer: closer}
}

// New builds a logger from the environment. DASM_LOG_TO_FILE=1 redirects
// output to a timestamped file instead of stderr.
func New() *LoggerCloser {
	output := io.Writer(os.Stderr)

	if os.Getenv("DASM_LOG_TO_FILE") == "1" {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("dasm-%s-debug.log", timestamp)
		if f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644); err == nil {
			output = f
		}
	}

	return NewWithWriter(output)
}

// IsDebug reports whether DASM_LOG_LEVEL=debug.
func IsDebug() bool {
	return os.Getenv("DASM_LOG_LEVEL") == "debug"
}

var (
	defaultOnce sync.Once
	defaultLog  *LoggerCloser
)

// Default returns the process-wide logger, built once from the
// environment on first use.
func Default() *LoggerCloser {
	defaultOnce.Do(func() {
		defaultLog = New()
	})
	return defaultLog
}

// RecoverPanic recovers a panic in the calling goroutine, logs it with a
// stack trace through Default(), and runs an optional cleanup. It must be
// deferred directly by the caller to take effect.
func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		Default().Error("recovered panic", "component", name, "panic", r, "stack", string(debug.Stack()))
		if cleanup != nil {
			cleanup()
		}
	}
}
