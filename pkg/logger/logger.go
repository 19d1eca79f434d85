// Package logger configures the slog logger shared by the server and the CLI.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "request_id"
	// AccountKey is the context key for the authenticated account address.
	AccountKey contextKey = "account"
	// ChainIDKey is the context key for the chain the request is bound to.
	ChainIDKey contextKey = "chain_id"
)

// contextFields are copied from a context onto log records, in this order
var contextFields = []contextKey{RequestIDKey, AccountKey, ChainIDKey}

// Logger is a structured logger wrapper around slog
type Logger struct {
	*slog.Logger
}

// Options selects the handler. Production defaults to JSON at INFO,
// anything else to text at DEBUG; Format and Level override either.
type Options struct {
	Env    string
	Format string // "json" or "text"
	Level  string // "debug", "info", "warn", "error"
	Output io.Writer
}

// New creates a logger from opts. A nil Output writes to stdout.
func New(opts Options) *Logger {
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	production := opts.Env == "production"
	level := slog.LevelDebug
	if production {
		level = slog.LevelInfo
	}
	if opts.Level != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(opts.Level)); err == nil {
			level = parsed
		}
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: replaceAttr,
	}

	useJSON := production
	switch strings.ToLower(opts.Format) {
	case "json":
		useJSON = true
	case "text":
		useJSON = false
	}

	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(output, handlerOpts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewWithFormat creates a logger for env with an explicit format override
func NewWithFormat(env, logFormat string, output io.Writer) *Logger {
	return New(Options{Env: env, Format: logFormat, Level: os.Getenv("LOG_LEVEL"), Output: output})
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// replaceAttr formats timestamps as RFC3339 and trims sources to file:line
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format(time.RFC3339))
		}
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok {
			a.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return a
}

// WithContext adds the request id, account and chain id carried by ctx
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var args []any
	for _, key := range contextFields {
		if v := ctx.Value(key); v != nil {
			args = append(args, string(key), v)
		}
	}
	if len(args) == 0 {
		return l
	}
	return &Logger{Logger: l.With(args...)}
}

// WithComponent tags the logger with the emitting component, e.g. "ledgerctl".
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.With("component", name)}
}
