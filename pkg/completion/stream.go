package completion

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"

	"github.com/papercomputeco/reel/pkg/llm"
	"github.com/papercomputeco/reel/pkg/llm/provider"
	"github.com/papercomputeco/reel/pkg/sse"
)

const maxLineSize = 1024 * 1024

// Stream decodes a response body into chunks using the provider's framing.
// It satisfies stream.ChunkSource.
type Stream struct {
	body     io.ReadCloser
	provider provider.Provider
	decoder  llm.StreamDecoder
	logger   *slog.Logger
	tee      io.Writer

	sse   *sse.Reader
	lines *bufio.Scanner

	chunks int
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithTee copies the raw body to w while it is decoded.
func WithTee(w io.Writer) StreamOption {
	return func(s *Stream) {
		s.tee = w
	}
}

// WithLogger sets the stream's logger.
func WithLogger(l *slog.Logger) StreamOption {
	return func(s *Stream) {
		s.logger = l
	}
}

// NewStream wraps body. It is used for live responses and for replaying
// captured ones.
func NewStream(body io.ReadCloser, p provider.Provider, opts ...StreamOption) *Stream {
	s := &Stream{
		body:     body,
		provider: p,
		decoder:  provider.NewStreamDecoder(p),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	switch p.Framing() {
	case llm.FramingSSE:
		var ropts []sse.Option
		if s.tee != nil {
			ropts = append(ropts, sse.WithTee(s.tee))
		}
		s.sse = sse.NewReader(body, ropts...)
	default:
		s.lines = bufio.NewScanner(body)
		// Increase buffer size for large chunks
		s.lines.Buffer(make([]byte, 64*1024), maxLineSize)
	}
	return s
}

// Next returns the next decoded chunk, skipping payloads the provider
// ignores. It returns (nil, nil) at the end of the body.
func (s *Stream) Next() (*llm.StreamChunk, error) {
	for {
		payload, err := s.nextPayload()
		if err != nil {
			return nil, fmt.Errorf("reading %s stream: %w", s.provider.Name(), err)
		}
		if payload == nil {
			s.logger.Debug("completion stream drained",
				"provider", s.provider.Name(),
				"chunks", s.chunks,
			)
			return nil, nil
		}

		chunk, err := s.decoder.ParseStreamChunk(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding %s chunk: %w", s.provider.Name(), err)
		}
		if chunk == nil {
			continue
		}

		s.chunks++
		return chunk, nil
	}
}

// Close releases the underlying body.
func (s *Stream) Close() error {
	return s.body.Close()
}

func (s *Stream) nextPayload() ([]byte, error) {
	if s.sse != nil {
		for {
			ev, err := s.sse.Next()
			if err != nil || ev == nil {
				return nil, err
			}
			if ev.Data == "" {
				continue
			}
			return []byte(ev.Data), nil
		}
	}

	for s.lines.Scan() {
		line := s.lines.Bytes()
		if s.tee != nil {
			if _, err := s.tee.Write(line); err != nil {
				return nil, err
			}
			if _, err := io.WriteString(s.tee, "\n"); err != nil {
				return nil, err
			}
		}
		if len(line) == 0 {
			continue
		}

		payload := make([]byte, len(line))
		copy(payload, line)
		return payload, nil
	}
	return nil, s.lines.Err()
}
