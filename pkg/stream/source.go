package stream

import "github.com/papercomputeco/reel/pkg/llm"

// ChunkSource is a pull-based sequence of decoded stream chunks.
// Next returns (nil, nil) once the sequence is exhausted. Any error is
// terminal.
type ChunkSource interface {
	Next() (*llm.StreamChunk, error)
}

// sliceSource replays a fixed set of chunks.
type sliceSource struct {
	chunks []llm.StreamChunk
	pos    int
}

// FromChunks returns a ChunkSource that yields the given chunks in order.
func FromChunks(chunks ...llm.StreamChunk) ChunkSource {
	return &sliceSource{chunks: chunks}
}

func (s *sliceSource) Next() (*llm.StreamChunk, error) {
	if s.pos >= len(s.chunks) {
		return nil, nil
	}
	c := s.chunks[s.pos]
	s.pos++
	return &c, nil
}

// SourceFunc adapts a function to ChunkSource.
type SourceFunc func() (*llm.StreamChunk, error)

// Next calls f.
func (f SourceFunc) Next() (*llm.StreamChunk, error) {
	return f()
}
