package stream

import "fmt"

// MalformedChunkError is returned when a chunk violates the assumptions the
// reducer needs to attribute fragments unambiguously.
type MalformedChunkError struct {
	// Chunk is the zero-based position of the offending chunk in the stream.
	Chunk int

	// Choice is the index of the offending sub-choice, or -1 when the chunk
	// itself is the problem.
	Choice int

	Reason string
}

func (e *MalformedChunkError) Error() string {
	if e.Choice < 0 {
		return fmt.Sprintf("malformed chunk %d: %s", e.Chunk, e.Reason)
	}
	return fmt.Sprintf("malformed chunk %d, choice %d: %s", e.Chunk, e.Choice, e.Reason)
}
