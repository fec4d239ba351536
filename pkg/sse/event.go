// Package sse reads and writes Server-Sent Events.
//
// The Reader decodes the event stream of an upstream completion endpoint and
// can mirror the raw bytes to a second writer (used by `reel ask --capture`).
// The Writer encodes reduced events for the HTTP server.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event is one SSE event, terminated by a blank line on the wire.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data holds every "data:" line of the event joined with "\n".
	Data string

	// ID is the "id:" field, if present.
	ID string
}
