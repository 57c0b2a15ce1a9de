// Package log provides logging utilities including colored console output
// and connection transcript capabilities.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var red = color.New(color.FgRed).FprintfFunc()
var blue = color.New(color.FgBlue).FprintfFunc()
var faint = color.New(color.Faint).FprintfFunc()

// Logger writes colored messages to an output stream (stderr by default).
// A nil *Logger discards everything, so library code can log unconditionally.
type Logger struct {
	out     io.Writer
	prefix  string
	verbose bool
	mu      sync.Mutex
}

// NewLogger creates a logger writing to stderr. Verbose messages are only
// printed if verbose is true.
func NewLogger(verbose bool) *Logger {
	return &Logger{out: os.Stderr, verbose: verbose}
}

// WithOutput returns a copy of the logger writing to w.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{out: w, prefix: l.prefix, verbose: l.verbose}
}

// WithPrefix returns a copy of the logger that tags every message with prefix.
func (l *Logger) WithPrefix(prefix string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{out: l.out, prefix: "[" + prefix + "] ", verbose: l.verbose}
}

// IsVerbose reports whether verbose messages are printed.
func (l *Logger) IsVerbose() bool {
	return l != nil && l.verbose
}

// ErrorMsg prints an error message in red color.
func (l *Logger) ErrorMsg(format string, a ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	red(l.out, "[!] Error: "+l.prefix+format+"\n", a...)
}

// InfoMsg prints an informational message in blue color.
func (l *Logger) InfoMsg(format string, a ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	blue(l.out, "[+] "+l.prefix+format+"\n", a...)
}

// VerboseMsg prints a message only if the logger is verbose.
func (l *Logger) VerboseMsg(format string, a ...interface{}) {
	if !l.IsVerbose() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	faint(l.out, "[v] "+l.prefix+format+"\n", a...)
}

// ErrorMsg prints an error message to stderr in red color.
func ErrorMsg(format string, a ...interface{}) {
	red(os.Stderr, "[!] Error: "+format, a...)
}

// InfoMsg prints an informational message to stderr in blue color.
func InfoMsg(format string, a ...interface{}) {
	blue(os.Stderr, "[+] "+format, a...)
}
