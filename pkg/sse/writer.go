package sse

import (
	"bufio"
	"io"
	"strings"
)

// Writer encodes events onto an SSE stream.
type Writer struct {
	w *bufio.Writer
}

// NewWriter returns a Writer that buffers output to w. Each event is flushed
// as soon as it is written.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes ev. Multi-line data is split across several "data:" lines.
func (w *Writer) Write(ev Event) error {
	if ev.ID != "" {
		w.line("id", ev.ID)
	}
	if ev.Type != "" {
		w.line("event", ev.Type)
	}
	for _, part := range strings.Split(ev.Data, "\n") {
		w.line("data", part)
	}
	w.w.WriteByte('\n')
	return w.w.Flush()
}

// Comment writes a comment line, typically used as a keep-alive.
func (w *Writer) Comment(text string) error {
	w.w.WriteString(": " + text + "\n\n")
	return w.w.Flush()
}

func (w *Writer) line(field, value string) {
	w.w.WriteString(field)
	w.w.WriteString(": ")
	w.w.WriteString(value)
	w.w.WriteByte('\n')
}
