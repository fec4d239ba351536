package logger

import (
	"io"
	"log/slog"
)

// Format selects the handler a logger writes with.
type Format int

const (
	// FormatText is slog's logfmt-style text handler.
	FormatText Format = iota
	// FormatJSON writes one JSON object per record, for log files.
	FormatJSON
	// FormatPretty is the colored charmbracelet/log handler for terminals.
	FormatPretty
)

// Option adjusts the config New builds a logger from.
type Option func(*config)

// WithLevel sets the lowest level that is written.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithDebug is WithLevel(slog.LevelDebug) when debug is set, and resets to
// Info otherwise. Commands pass their --debug flag straight through.
func WithDebug(debug bool) Option {
	if debug {
		return WithLevel(slog.LevelDebug)
	}
	return WithLevel(slog.LevelInfo)
}

// WithFormat picks the output format.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// WithPretty switches to FormatPretty. WithPretty(false) leaves the format
// alone.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		if pretty {
			c.format = FormatPretty
		}
	}
}

// WithJSON switches to FormatJSON unless pretty output was already asked for.
func WithJSON(json bool) Option {
	return func(c *config) {
		if json && c.format != FormatPretty {
			c.format = FormatJSON
		}
	}
}

// WithWriter adds w to the outputs. Without any writer New logs to stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.writers = append(c.writers, w) }
}

// WithWriters replaces the outputs with ws.
func WithWriters(ws ...io.Writer) Option {
	return func(c *config) { c.writers = ws }
}

// WithSource reports the calling file and line on each record.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}
