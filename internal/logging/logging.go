// Package logging builds the *slog.Logger the CLI hands to every store.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Options select the handler and level.
type Options struct {
	Verbose bool // Debug level
	Quiet   bool // Warn level; wins over Verbose
	JSON    bool // JSON lines instead of key=value text
}

// Level maps the flags to a slog level.
func (o Options) Level() slog.Level {
	switch {
	case o.Quiet:
		return slog.LevelWarn
	case o.Verbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to w. A nil writer discards everything.
func New(w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		return Discard()
	}
	ho := &slog.HandlerOptions{Level: opts.Level()}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, ho))
	}
	return slog.New(slog.NewTextHandler(w, ho))
}

// Discard returns a logger that drops all records.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// ParseFormat reports whether name selects the JSON handler.
func ParseFormat(name string) (json bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return false, true
	case "json":
		return true, true
	}
	return false, false
}
