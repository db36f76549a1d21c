package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ConsoleLogger writes color-coded log lines to a terminal. Used by the
// CLI when verbose output is requested.
type ConsoleLogger struct {
	level  Level
	fields Fields

	mu  *sync.Mutex
	out io.Writer
}

var levelColors = map[Level]*color.Color{
	DebugLevel: color.New(color.FgHiBlack),
	InfoLevel:  color.New(color.FgCyan),
	WarnLevel:  color.New(color.FgYellow),
	ErrorLevel: color.New(color.FgRed, color.Bold),
}

// NewConsoleLogger creates a logger writing to stderr
func NewConsoleLogger(level Level) *ConsoleLogger {
	return &ConsoleLogger{
		level: level,
		mu:    &sync.Mutex{},
		out:   os.Stderr,
	}
}

// NewConsoleLoggerTo creates a console logger with a custom writer
func NewConsoleLoggerTo(level Level, out io.Writer) *ConsoleLogger {
	return &ConsoleLogger{level: level, mu: &sync.Mutex{}, out: out}
}

// Debug logs a debug message
func (l *ConsoleLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(DebugLevel, msg, nil, fields)
}

// Info logs an info message
func (l *ConsoleLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(InfoLevel, msg, nil, fields)
}

// Warn logs a warning message
func (l *ConsoleLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(WarnLevel, msg, nil, fields)
}

// Error logs an error message
func (l *ConsoleLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	l.log(ErrorLevel, msg, err, fields)
}

// WithFields returns a logger that includes the given fields on every entry
func (l *ConsoleLogger) WithFields(fields Fields) Logger {
	derived := *l
	derived.fields = mergeFields(l.fields, fields)
	return &derived
}

// Close does nothing; the console is not owned by the logger
func (l *ConsoleLogger) Close() error {
	return nil
}

func (l *ConsoleLogger) log(level Level, msg string, err error, fields Fields) {
	if level < l.level {
		return
	}

	tag := levelColors[level].Sprintf("%-5s", level)
	line := fmt.Sprintf("%s %s %s", time.Now().Format("15:04:05"), tag, msg)
	if err != nil {
		line += " " + color.RedString("error=%q", err.Error())
	}

	all := mergeFields(l.fields, fields)
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line += fmt.Sprintf(" %s=%v", k, all[k])
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}
