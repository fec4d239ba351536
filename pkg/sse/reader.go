package sse

import (
	"bufio"
	"io"
	"strings"
)

const maxLineSize = 1024 * 1024

// Reader parses SSE events from an io.Reader.
type Reader struct {
	scanner *bufio.Scanner
	tee     io.Writer

	pending Event
	fields  bool
	hasData bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithTee copies every raw line read from the source to w, newline included.
func WithTee(w io.Writer) Option {
	return func(r *Reader) {
		r.tee = w
	}
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader, opts ...Option) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	r := &Reader{scanner: scanner}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next blocks until a complete event is read. It returns nil, nil once the
// source is exhausted. An event left open by a missing trailing blank line
// is still returned.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()

		if r.tee != nil {
			if _, err := io.WriteString(r.tee, line+"\n"); err != nil {
				return nil, err
			}
		}

		switch {
		case line == "":
			if r.fields {
				return r.take(), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		default:
			r.field(line)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if r.fields {
		return r.take(), nil
	}
	return nil, nil
}

// field applies one "name: value" line to the pending event. A single space
// after the colon is stripped; a line without a colon is a bare field name.
func (r *Reader) field(line string) {
	name, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch name {
	case "data":
		// Every data line after the first adds a newline, even when the
		// earlier lines were empty.
		if r.hasData {
			r.pending.Data += "\n"
		}
		r.pending.Data += value
		r.hasData = true
	case "event":
		r.pending.Type = value
	case "id":
		r.pending.ID = value
	default:
		// retry and unknown fields are ignored
		return
	}
	r.fields = true
}

func (r *Reader) take() *Event {
	ev := r.pending
	r.pending = Event{}
	r.fields = false
	r.hasData = false
	return &ev
}
