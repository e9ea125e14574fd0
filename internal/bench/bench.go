// Package bench holds the small amount of shared plumbing the benchmark
// driver needs: argument clamping and progress logging. It favors plain
// stdlib logging over a structured logging library, since the driver is a
// demonstration harness and not a long-running service.
package bench

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Logger prints timestamped progress lines to stdout.
type Logger struct {
	l *log.Logger
}

// NewLogger returns a Logger writing to stdout with a "bench: " prefix.
func NewLogger() *Logger {
	return &Logger{l: log.New(os.Stdout, "bench: ", log.LstdFlags)}
}

// Printf logs a formatted progress line.
func (lg *Logger) Printf(format string, args ...any) {
	lg.l.Printf(format, args...)
}

// ClampPositive returns v if v > 0, otherwise fallback. Used to fall back to
// a sane default whenever a CLI-supplied worker count or key range is
// missing or non-positive.
func ClampPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// FormatDuration renders d as fractional milliseconds, the precision the
// driver's phase timings are reported at.
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d.Nanoseconds())/1e6)
}
